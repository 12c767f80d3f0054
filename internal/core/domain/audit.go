package domain

import "time"

// AuditAction names a security-relevant event.
type AuditAction string

const (
	AuditStateIssued    AuditAction = "state.issued"
	AuditStateConsumed  AuditAction = "state.consumed"
	AuditStateRejected  AuditAction = "state.rejected"
	AuditTokenRefreshed AuditAction = "token.refreshed"
	AuditRefreshFailed  AuditAction = "token.refresh_failed"
	AuditRevoked        AuditAction = "integration.revoked"
	AuditConnected      AuditAction = "integration.connected"
)

// AuditOutcome classifies how the audited operation ended.
type AuditOutcome string

const (
	OutcomeOK     AuditOutcome = "ok"
	OutcomeDenied AuditOutcome = "denied"
	OutcomeError  AuditOutcome = "error"
)

// AuditEvent is one append-only entry in the security audit trail.
// Detail must never contain token material.
type AuditEvent struct {
	ID       string       `json:"id"`
	Time     time.Time    `json:"time"`
	UserID   string       `json:"user_id,omitempty"`
	Provider Provider     `json:"provider,omitempty"`
	Action   AuditAction  `json:"action"`
	Outcome  AuditOutcome `json:"outcome"`
	Detail   string       `json:"detail,omitempty"`
}
