package driving

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// SecurityService issues and validates the CSRF state tokens for the
// authorization-code flow and maintains the security audit trail.
type SecurityService interface {
	// IssueState creates a random, unguessable state bound to the flow
	// parameters and stores it with expiry.
	IssueState(ctx context.Context, state *domain.AuthState) (string, error)

	// ConsumeState performs the one-time read. Fails with
	// domain.ErrInvalidState if the state is unknown, expired, or already
	// consumed; every outcome is audit-logged.
	ConsumeState(ctx context.Context, state string) (*domain.AuthState, error)

	// AuditTrail returns recent security events for a user, newest first.
	AuditTrail(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error)
}
