// Package token issues and validates the session JWTs handed out after a
// successful login decision.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
)

// ErrInvalidToken is returned when a token is malformed, expired, or signed
// with the wrong key.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims holds the JWT claims for a bridge session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
}

// Provider issues and validates HS256 session tokens.
type Provider struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewProvider returns a Provider signing with the given shared secret. A
// non-positive ttl defaults to 1 hour.
func NewProvider(secret []byte, issuer string, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Provider{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue creates a session token for an authenticated user. Returns the token
// string and its expiry.
func (p *Provider) Issue(u domain.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(p.ttl)

	name := u.ExternalDisplayName
	if name == "" {
		name = u.Username
	}

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		PreferredUsername: u.Username,
		Email:             u.Email,
		Name:              name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate parses a session token and returns its claims.
func (p *Provider) Validate(tokenString string) (SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return SessionClaims{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}
	if claims.Issuer != p.issuer {
		return SessionClaims{}, ErrInvalidToken
	}
	return *claims, nil
}

// LoadOrGenerateSecret reads the signing secret from file, generating and
// persisting a fresh one the first time so the secret survives restarts.
func LoadOrGenerateSecret(file string) ([]byte, error) {
	file = filepath.Clean(file)
	if err := os.MkdirAll(filepath.Dir(file), 0750); err != nil {
		return nil, err
	}

	if _, err := os.Stat(file); os.IsNotExist(err) {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, err
		}
		encoded := base64.RawURLEncoding.EncodeToString(raw)
		if err := os.WriteFile(file, []byte(encoded), 0600); err != nil {
			return nil, err
		}
		return []byte(encoded), nil
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
