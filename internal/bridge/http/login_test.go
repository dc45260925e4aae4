package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
	"github.com/d64ev/humhub-bridge/internal/bridge/service"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/internal/bridge/store/drivers/sqlite"
	"github.com/d64ev/humhub-bridge/internal/bridge/token"
	"github.com/d64ev/humhub-bridge/pkg/cryptox"
	"github.com/d64ev/humhub-bridge/pkg/httpx"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test-*")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))
	// Raise the strict budget so handler tests don't trip the limiter.
	httpx.StrictLimit = httpx.RateLimitConfig{
		RequestsPerWindow: 100000,
		Window:            time.Minute,
		Burst:             100000,
	}
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type stubVerifier struct {
	profile domain.RemoteProfile
	err     error
}

func (s *stubVerifier) Verify(context.Context, string, string) (domain.RemoteProfile, error) {
	if s.err != nil {
		return domain.RemoteProfile{}, s.err
	}
	return s.profile, nil
}

func newTestRouter(t *testing.T, v service.CredentialVerifier) (*Router, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slogx.New(slogx.Config{Service: "bridge-test", Level: "error"})
	r := NewRouter("test", st, logger)
	r.Pipeline = service.NewPipeline(st, v, service.NewReconciler(st, nil), nil)
	r.Tokens = token.NewProvider([]byte("test-secret"), "bridge-test", time.Hour)
	r.ApplyRoutes()
	return r, st
}

func seedUser(t *testing.T, st store.Store, username, password string) domain.User {
	t.Helper()
	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)
	u := domain.User{
		ID:           "seed-" + username,
		Username:     username,
		Email:        username + "@example.org",
		Enabled:      true,
		PasswordHash: hash,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), u))
	return u
}

func postLogin(r *Router, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginGet_ReturnsChallengeDescriptor(t *testing.T) {
	r, _ := newTestRouter(t, &stubVerifier{err: errors.New("unused")})

	req := httptest.NewRequest(http.MethodGet, "/v1/login", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body challengeDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "humhub-authenticator", body.ID)
	require.Equal(t, []string{"username", "password"}, body.Fields)
	require.Contains(t, body.Requirements, "alternative")
}

func TestLoginPost_MissingInputIs400WithChallenge(t *testing.T) {
	r, _ := newTestRouter(t, &stubVerifier{err: errors.New("unused")})

	rec := postLogin(r, url.Values{"username": {"jane"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body struct {
		Error     string              `json:"error"`
		Challenge challengeDescriptor `json:"challenge"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "humhub-authenticator", body.Challenge.ID)
}

func TestLoginPost_RejectionIsUniform401(t *testing.T) {
	r, st := newTestRouter(t, &stubVerifier{err: errors.New("401")})
	seedUser(t, st, "jane", "hunter2")

	unknown := postLogin(r, url.Values{"username": {"nobody"}, "password": {"x"}})
	wrongPass := postLogin(r, url.Values{"username": {"jane"}, "password": {"wrong"}})

	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	require.JSONEq(t, unknown.Body.String(), wrongPass.Body.String(),
		"unknown user and wrong password must be indistinguishable")
}

func TestLoginPost_LocalSuccessIssuesToken(t *testing.T) {
	r, st := newTestRouter(t, &stubVerifier{err: errors.New("remote must not matter")})
	seedUser(t, st, "jane", "hunter2")

	rec := postLogin(r, url.Values{"username": {"jane"}, "password": {"hunter2"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)
	require.Greater(t, body.ExpiresIn, int64(0))
	require.Equal(t, "jane", body.User.Username)

	claims, err := r.Tokens.Validate(body.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "seed-jane", claims.Subject)
}

func TestLoginPost_RemoteSuccessProvisionsAndIssuesToken(t *testing.T) {
	profile := domain.RemoteProfile{
		ExternalID:  "guid-1",
		Username:    "remoteuser",
		Email:       "remote@example.org",
		DisplayName: "Remote User",
	}
	r, st := newTestRouter(t, &stubVerifier{profile: profile})

	rec := postLogin(r, url.Values{"username": {"remoteuser"}, "password": {"secret"}})
	require.Equal(t, http.StatusOK, rec.Code)

	u, err := st.Users().GetUserByUsername(context.Background(), "remoteuser")
	require.NoError(t, err)
	require.Equal(t, "guid-1", u.ID)
	require.True(t, u.EmailVerified)
}

func TestUserinfo_RequiresToken(t *testing.T) {
	r, _ := newTestRouter(t, &stubVerifier{err: errors.New("unused")})

	req := httptest.NewRequest(http.MethodGet, "/v1/userinfo", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/userinfo", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserinfo_ReturnsLocalRecord(t *testing.T) {
	r, st := newTestRouter(t, &stubVerifier{err: errors.New("unused")})
	u := seedUser(t, st, "jane", "hunter2")

	signed, _, err := r.Tokens.Issue(u)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body userinfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, u.ID, body.Sub)
	require.Equal(t, "jane", body.Username)
	require.Equal(t, "jane@example.org", body.Email)
}

func TestLivez(t *testing.T) {
	r, _ := newTestRouter(t, &stubVerifier{err: errors.New("unused")})

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "test", body.Version)
}

func TestReadyz_ReportsDatabaseDown(t *testing.T) {
	r, st := newTestRouter(t, &stubVerifier{err: errors.New("unused")})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, st.Close())
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
