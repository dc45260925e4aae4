package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/pkg/cryptox"
	"github.com/d64ev/humhub-bridge/pkg/idx"
)

// bootstrapUser seeds one local user on an empty store when both bootstrap
// env vars are set, so the service is usable before the remote provider has
// ever answered. It is a no-op once any user exists.
func (app *Application) bootstrapUser(ctx context.Context) error {
	if app.cfg.BootstrapUsername == "" || app.cfg.BootstrapPassword == "" {
		return nil
	}

	empty, err := app.db.Users().IsEmpty(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap check failed: %w", err)
	}
	if !empty {
		return nil
	}

	hash, err := cryptox.HashPassword(app.cfg.BootstrapPassword)
	if err != nil {
		return fmt.Errorf("bootstrap password hash failed: %w", err)
	}

	u := domain.User{
		ID:           idx.New().String(),
		Username:     app.cfg.BootstrapUsername,
		PasswordHash: hash,
		Enabled:      true,
	}
	if err := app.db.Users().CreateUser(ctx, u); err != nil {
		// Two replicas racing the same empty database is fine.
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("bootstrap user create failed: %w", err)
	}

	app.logger.Info("bootstrap user created", "username", u.Username, "user_id", u.ID)
	return nil
}
