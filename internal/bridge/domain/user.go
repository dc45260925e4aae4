package domain

import "time"

// User is the local identity record owned by the bridge's own store. Records
// are created on first successful remote verification (or by bootstrap) and
// mutated in place on every later remote-verified login; they are never
// deleted by the bridge.
type User struct {
	ID            string
	Username      string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string // argon2 encoded
	Enabled       bool
	EmailVerified bool

	// Attributes mirrored from the remote provider. Namespaced in storage as
	// external_* so they never collide with native fields.
	ExternalID          string
	ExternalDisplayName string
	ExternalProfileURL  string
	ExternalImageURL    string

	CreatedAt time.Time
	UpdatedAt time.Time
}
