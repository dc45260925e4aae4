package domain

import "time"

// Login audit outcomes. Only terminal decisions are recorded; a
// needs-input challenge is a normal re-entrant state, not an attempt.
const (
	AuditOutcomeAuthenticated = "authenticated"
	AuditOutcomeRejected      = "rejected"
)

// Sources describe which credential check produced the terminal decision.
const (
	AuditSourceLocal  = "local"
	AuditSourceRemote = "remote"
)

// LoginAudit is one row per completed login attempt. It never carries the
// submitted secret, only the identifier and the outcome.
type LoginAudit struct {
	ID         string
	Identifier string
	Outcome    string
	Source     string
	CreatedAt  time.Time
}
