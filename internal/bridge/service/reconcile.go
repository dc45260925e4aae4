package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
	"github.com/d64ev/humhub-bridge/internal/bridge/metrics"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/pkg/cryptox"
	"github.com/d64ev/humhub-bridge/pkg/idx"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

// Reconciler folds a remotely verified profile into the local store. It is
// idempotent: running it any number of times with the same profile converges
// on the same record.
type Reconciler struct {
	store   store.Store
	metrics metrics.Recorder
}

func NewReconciler(s store.Store, rec metrics.Recorder) *Reconciler {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Reconciler{store: s, metrics: rec}
}

// Reconcile creates or updates the local record for a verified remote
// profile and re-hashes the just-verified secret so the next attempt can be
// answered locally. Returns the final state of the record.
//
// The profile write and the credential write are two separate statements, not
// one transaction; a crash between them leaves a record whose stored hash no
// longer matches, which self-heals on the next successful remote login.
func (r *Reconciler) Reconcile(ctx context.Context, profile domain.RemoteProfile, secret string) (domain.User, error) {
	log := slogx.FromContext(ctx)

	existing, err := r.lookup(ctx, profile)
	switch {
	case err == nil:
		return r.update(ctx, existing, profile, secret)
	case errors.Is(err, store.ErrNotFound):
		u, err := r.create(ctx, profile, secret)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return domain.User{}, err
		}
		// Lost a create race with a concurrent first login. The row exists
		// now, so fall through to the update path.
		log.Debug("reconcile create lost race, retrying as update", "username", profile.Username)
		existing, err = r.lookup(ctx, profile)
		if err != nil {
			return domain.User{}, fmt.Errorf("refetch after create conflict: %w", err)
		}
		return r.update(ctx, existing, profile, secret)
	default:
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
}

// lookup resolves the local record for a remote profile: by the remote id
// first (stable even across a remote rename), then by username.
func (r *Reconciler) lookup(ctx context.Context, profile domain.RemoteProfile) (domain.User, error) {
	if profile.ExternalID != "" {
		u, err := r.store.Users().GetUserByID(ctx, profile.ExternalID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, err
		}
	}
	return r.store.Users().GetUserByUsername(ctx, profile.Username)
}

func (r *Reconciler) create(ctx context.Context, profile domain.RemoteProfile, secret string) (domain.User, error) {
	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	id := profile.ExternalID
	if id == "" {
		id = idx.New().String()
	}

	u := domain.User{
		ID:                  id,
		Username:            profile.Username,
		Email:               profile.Email,
		FirstName:           profile.FirstName,
		LastName:            profile.LastName,
		PasswordHash:        hash,
		Enabled:             true,
		EmailVerified:       true,
		ExternalID:          profile.ExternalID,
		ExternalDisplayName: profile.DisplayName,
		ExternalProfileURL:  profile.ProfileURL,
		ExternalImageURL:    profile.ImageURL,
	}

	if err := r.store.Users().CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}

	r.metrics.RecordReconciliation(true)
	slogx.FromContext(ctx).Info("provisioned user from remote profile",
		"user_id", u.ID, "username", u.Username)

	return r.store.Users().GetUserByID(ctx, u.ID)
}

func (r *Reconciler) update(ctx context.Context, existing domain.User, profile domain.RemoteProfile, secret string) (domain.User, error) {
	if err := r.store.Users().SyncProfile(ctx, existing.ID, profile); err != nil {
		return domain.User{}, fmt.Errorf("sync profile: %w", err)
	}

	hash, err := cryptox.HashPassword(secret)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	if err := r.store.Users().UpdatePasswordHash(ctx, existing.ID, hash); err != nil {
		return domain.User{}, fmt.Errorf("update password hash: %w", err)
	}

	r.metrics.RecordReconciliation(false)

	return r.store.Users().GetUserByID(ctx, existing.ID)
}
