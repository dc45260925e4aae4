package remote

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleBody = `{
	"guid": "c9c28a9d-91b4-4b9c-b34f-6e6c22e8d1a1",
	"display_name": "Jane Doe",
	"url": "https://social.example.org/u/jane",
	"account": {
		"username": "jane",
		"email": "jane@example.org"
	},
	"profile": {
		"firstname": "Jane",
		"lastname": "Doe",
		"image_url": "https://social.example.org/u/jane/avatar.png"
	}
}`

func TestVerify_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer srv.Close()

	v := NewVerifier(Config{BaseURL: srv.URL})
	profile, err := v.Verify(context.Background(), "jane", "secret")
	require.NoError(t, err)

	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("jane:secret"))
	require.Equal(t, wantAuth, gotAuth)

	require.Equal(t, "c9c28a9d-91b4-4b9c-b34f-6e6c22e8d1a1", profile.ExternalID)
	require.Equal(t, "jane", profile.Username)
	require.Equal(t, "jane@example.org", profile.Email)
	require.Equal(t, "Jane", profile.FirstName)
	require.Equal(t, "Doe", profile.LastName)
	require.Equal(t, "Jane Doe", profile.DisplayName)
	require.Equal(t, "https://social.example.org/u/jane", profile.ProfileURL)
	require.Equal(t, "https://social.example.org/u/jane/avatar.png", profile.ImageURL)
}

func TestVerify_MissingFieldsDefaultEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"account":{"username":"jane"}}`))
	}))
	defer srv.Close()

	v := NewVerifier(Config{BaseURL: srv.URL})
	profile, err := v.Verify(context.Background(), "jane", "secret")
	require.NoError(t, err)

	require.Equal(t, "jane", profile.Username)
	require.Empty(t, profile.ExternalID)
	require.Empty(t, profile.Email)
	require.Empty(t, profile.FirstName)
	require.Empty(t, profile.DisplayName)
}

func TestVerify_NonOKStatusFails(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		v := NewVerifier(Config{BaseURL: srv.URL})
		_, err := v.Verify(context.Background(), "jane", "wrong")
		require.ErrorIs(t, err, ErrVerificationFailed, "status %d", status)
		srv.Close()
	}
}

func TestVerify_MalformedBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	v := NewVerifier(Config{BaseURL: srv.URL})
	_, err := v.Verify(context.Background(), "jane", "secret")
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerify_UnreachableEndpointFails(t *testing.T) {
	v := NewVerifier(Config{
		BaseURL:        "http://127.0.0.1:1/api/v1/auth/current",
		ConnectTimeout: 250 * time.Millisecond,
		ReadTimeout:    250 * time.Millisecond,
	})
	_, err := v.Verify(context.Background(), "jane", "secret")
	require.ErrorIs(t, err, ErrVerificationFailed)
}

func TestVerify_SlowResponseTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	v := NewVerifier(Config{
		BaseURL:        srv.URL,
		ConnectTimeout: 100 * time.Millisecond,
		ReadTimeout:    100 * time.Millisecond,
	})

	start := time.Now()
	_, err := v.Verify(context.Background(), "jane", "secret")
	require.ErrorIs(t, err, ErrVerificationFailed)
	require.Less(t, time.Since(start), time.Second)
}
