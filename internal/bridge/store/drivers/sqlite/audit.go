package sqlite

import (
	"context"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
)

type loginAuditRepo struct {
	q querier
}

func (r *loginAuditRepo) CreateEntry(ctx context.Context, e domain.LoginAudit) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO login_audit (id, identifier, outcome, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Identifier, e.Outcome, e.Source, created,
	)
	return mapConflict(err)
}

func (r *loginAuditRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM login_audit WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
