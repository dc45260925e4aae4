package store

import (
	"context"
	"errors"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and let tests swap a
// single repo without faking the whole store.
type Store interface {
	Users() Users
	LoginAudit() LoginAudit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is the primary lookup during a login attempt.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail is the secondary lookup when the submitted identifier
	// contains an '@'.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. The id is supplied by the caller
	// (remote guid or a fresh ULID). A duplicate id or username surfaces
	// as ErrAlreadyExists.
	CreateUser(ctx context.Context, u domain.User) error

	// SyncProfile re-applies the remote profile attributes onto an existing
	// record: email, names, the external_* mirror fields, and resets
	// enabled/email_verified to true. The username column is untouched.
	SyncProfile(ctx context.Context, userID string, p domain.RemoteProfile) error

	// UpdatePasswordHash sets the password_hash (argon2) and bumps updated_at.
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error

	// IsEmpty returns true if there are no users.
	IsEmpty(ctx context.Context) (bool, error)
}

type LoginAudit interface {
	// CreateEntry records one terminal login decision.
	CreateEntry(ctx context.Context, e domain.LoginAudit) error

	// DeleteOlderThan prunes audit rows created before cutoff and reports
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
