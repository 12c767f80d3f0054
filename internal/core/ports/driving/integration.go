package driving

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// IntegrationService tracks integration lifecycle and exposes list/sync/revoke
// operations for the settings surface.
type IntegrationService interface {
	// CreateOrReplace activates a new integration for (user, provider),
	// transitioning any prior active one to revoked. The single-active
	// invariant holds even under concurrent callback handling.
	CreateOrReplace(ctx context.Context, integration *domain.Integration, record *domain.TokenRecord) (*domain.Integration, error)

	// Get returns an integration. Callers serving external requests must check
	// UserID against the authenticated user before acting on it.
	Get(ctx context.Context, id string) (*domain.Integration, error)

	// Sync re-validates token freshness, marking the integration expired when
	// validation fails irrecoverably.
	Sync(ctx context.Context, id string) error

	// Revoke revokes the integration and records the reason in the audit trail.
	Revoke(ctx context.Context, id, reason string) error

	// ListForUser is a read-only projection for UI/settings consumption.
	ListForUser(ctx context.Context, userID string, filter driven.IntegrationFilter) ([]*domain.IntegrationSummary, error)
}
