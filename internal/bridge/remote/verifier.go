// Package remote verifies submitted credentials against the HumHub REST API
// and maps the response into a RemoteProfile.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

// ErrVerificationFailed is the single failure the verifier reports. Wrong
// credentials, unknown accounts, unreachable or misbehaving providers all
// collapse into it so the caller can't tell them apart.
var ErrVerificationFailed = errors.New("remote: verification failed")

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultReadTimeout    = 5 * time.Second

	// maxResponseBytes caps how much of a verification response we read.
	maxResponseBytes = 1 << 20
)

// Config carries the injected endpoint configuration; nothing here is a
// compile-time constant.
type Config struct {
	// BaseURL is the full URL of the credential-check endpoint, e.g.
	// https://humhub.example.org/api/v1/auth/current.
	BaseURL string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Verifier performs single-shot credential checks. It is stateless and safe
// for concurrent use; the endpoint and client are fixed at construction.
type Verifier struct {
	baseURL string
	client  *http.Client
}

func NewVerifier(cfg Config) *Verifier {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = DefaultReadTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connect,
		}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
	}

	return &Verifier{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Transport: transport,
			// Hard upper bound on the whole call, body read included.
			Timeout: connect + read,
		},
	}
}

// Verify issues one GET with HTTP Basic auth for the submitted pair. An HTTP
// 200 with a parseable JSON body yields a profile; anything else yields
// ErrVerificationFailed. No retries, at most one remote call.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) (domain.RemoteProfile, error) {
	log := slogx.FromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL, nil)
	if err != nil {
		log.Debug("remote verification request build failed", "err", err)
		return domain.RemoteProfile{}, ErrVerificationFailed
	}
	req.SetBasicAuth(identifier, secret)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		log.Debug("remote verification transport error", "err", err)
		return domain.RemoteProfile{}, ErrVerificationFailed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain a bounded amount so the connection can be reused; the body
		// is opaque failure detail and is not parsed.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		log.Debug("remote verification rejected", "status", resp.StatusCode)
		return domain.RemoteProfile{}, ErrVerificationFailed
	}

	var payload wireProfile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		log.Debug("remote verification payload unparseable", "err", err)
		return domain.RemoteProfile{}, ErrVerificationFailed
	}

	return payload.toDomain(), nil
}

// wireProfile mirrors the HumHub auth/current response shape. Absent fields
// decode to their zero values, which is exactly the defaulting we want.
type wireProfile struct {
	GUID        string `json:"guid"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	Account     struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"account"`
	Profile struct {
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		ImageURL  string `json:"image_url"`
	} `json:"profile"`
}

func (w wireProfile) toDomain() domain.RemoteProfile {
	return domain.RemoteProfile{
		ExternalID:  w.GUID,
		Username:    w.Account.Username,
		Email:       w.Account.Email,
		FirstName:   w.Profile.FirstName,
		LastName:    w.Profile.LastName,
		DisplayName: w.DisplayName,
		ProfileURL:  w.URL,
		ImageURL:    w.Profile.ImageURL,
	}
}
