// Package service holds the login decision pipeline and the identity
// reconciler. The pipeline tries the local store first and falls back to at
// most one remote verification per attempt.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/d64ev/humhub-bridge/internal/bridge/domain"
	"github.com/d64ev/humhub-bridge/internal/bridge/metrics"
	"github.com/d64ev/humhub-bridge/internal/bridge/store"
	"github.com/d64ev/humhub-bridge/pkg/cryptox"
	"github.com/d64ev/humhub-bridge/pkg/idx"
	"github.com/d64ev/humhub-bridge/pkg/slogx"
)

// Outcome is the terminal state of one login attempt.
type Outcome int

const (
	// OutcomeNeedsInput means the attempt was incomplete (missing identifier
	// or secret) and the caller should re-present the login form.
	OutcomeNeedsInput Outcome = iota

	// OutcomeAuthenticated means the credentials checked out, locally or
	// remotely, and Decision.User is populated.
	OutcomeAuthenticated

	// OutcomeRejected means the credentials were refused. The pipeline never
	// says why.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNeedsInput:
		return "needs_input"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// RejectionMessage is the single user-facing failure text. Unknown user,
// wrong password, disabled account and remote outage all read the same, so a
// caller probing the endpoint learns nothing about which one it hit.
const RejectionMessage = "invalid username or password"

// Decision is the result of one pipeline run.
type Decision struct {
	Outcome Outcome

	// User is set only when Outcome is OutcomeAuthenticated.
	User domain.User

	// Source records which check authenticated the attempt: "local" or
	// "remote". Empty unless authenticated.
	Source string
}

// CredentialVerifier checks a credential pair against the remote provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (domain.RemoteProfile, error)
}

// Pipeline runs login attempts. Safe for concurrent use.
type Pipeline struct {
	store      store.Store
	verifier   CredentialVerifier
	reconciler *Reconciler
	metrics    metrics.Recorder
}

func NewPipeline(s store.Store, v CredentialVerifier, r *Reconciler, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.Noop{}
	}
	return &Pipeline{store: s, verifier: v, reconciler: r, metrics: rec}
}

// Decide runs one login attempt to a terminal outcome.
//
// Order of checks: missing input short-circuits; then a local lookup (by
// username, then by email when the identifier looks like one) followed by a
// local password check; only when the local check cannot authenticate does
// the pipeline make its single remote verification call. A remote success is
// reconciled into the store before the decision is returned.
//
// Store read errors propagate as errors rather than rejections: an operator
// problem must not look like a credentials problem.
func (p *Pipeline) Decide(ctx context.Context, identifier, secret string) (Decision, error) {
	log := slogx.FromContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return Decision{Outcome: OutcomeNeedsInput}, nil
	}

	local, err := p.lookupLocal(ctx, identifier)
	switch {
	case err == nil:
		if verr := cryptox.VerifyPassword(secret, local.PasswordHash); verr == nil {
			if !local.Enabled {
				log.Info("login rejected for disabled user", "user_id", local.ID)
				return p.reject(ctx, identifier, domain.AuditSourceLocal), nil
			}
			log.Info("login authenticated locally", "user_id", local.ID)
			p.metrics.RecordDecision(OutcomeAuthenticated.String(), domain.AuditSourceLocal)
			p.audit(ctx, identifier, domain.AuditOutcomeAuthenticated, domain.AuditSourceLocal)
			return Decision{
				Outcome: OutcomeAuthenticated,
				User:    local,
				Source:  domain.AuditSourceLocal,
			}, nil
		}
		// Local mismatch is not terminal: the password may have changed on
		// the remote side since we last cached it.
	case errors.Is(err, store.ErrNotFound):
		// Unknown locally, remote gets to answer.
	default:
		return Decision{}, fmt.Errorf("local lookup: %w", err)
	}

	started := time.Now()
	profile, err := p.verifier.Verify(ctx, identifier, secret)
	p.metrics.RecordRemoteVerification(err == nil, time.Since(started))
	if err != nil {
		log.Info("login rejected after remote verification", "identifier", identifier)
		return p.reject(ctx, identifier, domain.AuditSourceRemote), nil
	}

	user, err := p.reconciler.Reconcile(ctx, profile, secret)
	if err != nil {
		return Decision{}, fmt.Errorf("reconcile verified identity: %w", err)
	}

	log.Info("login authenticated remotely", "user_id", user.ID)
	p.metrics.RecordDecision(OutcomeAuthenticated.String(), domain.AuditSourceRemote)
	p.audit(ctx, identifier, domain.AuditOutcomeAuthenticated, domain.AuditSourceRemote)
	return Decision{
		Outcome: OutcomeAuthenticated,
		User:    user,
		Source:  domain.AuditSourceRemote,
	}, nil
}

// lookupLocal resolves an identifier to a local user: username first, and
// when the identifier contains an '@', email as a fallback.
func (p *Pipeline) lookupLocal(ctx context.Context, identifier string) (domain.User, error) {
	u, err := p.store.Users().GetUserByUsername(ctx, identifier)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.User{}, err
	}
	if !strings.Contains(identifier, "@") {
		return domain.User{}, store.ErrNotFound
	}
	return p.store.Users().GetUserByEmail(ctx, identifier)
}

func (p *Pipeline) reject(ctx context.Context, identifier, source string) Decision {
	p.metrics.RecordDecision(OutcomeRejected.String(), source)
	p.audit(ctx, identifier, domain.AuditOutcomeRejected, source)
	return Decision{Outcome: OutcomeRejected}
}

// audit is best effort. A failed audit write is logged and swallowed; the
// login decision stands either way.
func (p *Pipeline) audit(ctx context.Context, identifier, outcome, source string) {
	err := p.store.LoginAudit().CreateEntry(ctx, domain.LoginAudit{
		ID:         idx.New().String(),
		Identifier: identifier,
		Outcome:    outcome,
		Source:     source,
	})
	if err != nil {
		slogx.FromContext(ctx).Warn("audit write failed", "err", err)
	}
}
