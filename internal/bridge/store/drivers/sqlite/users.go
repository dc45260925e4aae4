package sqlite

import (
	"context"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
)

type usersRepo struct {
	q querier
}

const userColumns = `id, username, email, first_name, last_name, password_hash,
	enabled, email_verified, external_id, external_display_name,
	external_profile_url, external_image_url, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY created_at LIMIT 1`, email)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (
			id, username, email, first_name, last_name, password_hash,
			enabled, email_verified, external_id, external_display_name,
			external_profile_url, external_image_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash,
		boolToInt(u.Enabled), boolToInt(u.EmailVerified),
		u.ExternalID, u.ExternalDisplayName, u.ExternalProfileURL, u.ExternalImageURL,
		now, now,
	)
	return mapConflict(err)
}

func (r *usersRepo) SyncProfile(ctx context.Context, userID string, p domain.RemoteProfile) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET
			email = ?, first_name = ?, last_name = ?,
			enabled = 1, email_verified = 1,
			external_id = ?, external_display_name = ?,
			external_profile_url = ?, external_image_url = ?,
			updated_at = ?
		WHERE id = ?`,
		p.Email, p.FirstName, p.LastName,
		p.ExternalID, p.DisplayName, p.ProfileURL, p.ImageURL,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                 domain.User
		enabled, verified int
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&enabled, &verified, &u.ExternalID, &u.ExternalDisplayName,
		&u.ExternalProfileURL, &u.ExternalImageURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Enabled = enabled != 0
	u.EmailVerified = verified != 0
	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
