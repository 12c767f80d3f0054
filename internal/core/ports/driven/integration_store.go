package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// IntegrationFilter narrows ListForUser results.
type IntegrationFilter struct {
	// Provider limits results to one provider when non-empty.
	Provider domain.Provider

	// ActiveOnly limits results to status=active.
	ActiveOnly bool
}

// IntegrationStore persists integrations. Integrations are never hard-deleted;
// revoked rows are retained for the audit trail.
type IntegrationStore interface {
	// Save stores a new integration.
	Save(ctx context.Context, integration *domain.Integration) error

	// Get retrieves an integration by ID.
	// Returns domain.ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Integration, error)

	// GetActive retrieves the active integration for a (user, provider) pair.
	// Returns nil, nil when none exists.
	GetActive(ctx context.Context, userID string, provider domain.Provider) (*domain.Integration, error)

	// ListForUser returns summaries for a user, optionally filtered.
	ListForUser(ctx context.Context, userID string, filter IntegrationFilter) ([]*domain.IntegrationSummary, error)

	// ReplaceActive atomically revokes any active integration for the pair and
	// saves the new one as active. Returns the ID of the replaced integration,
	// or empty when there was none. The store must guarantee the single-active
	// invariant even under concurrent callers.
	ReplaceActive(ctx context.Context, integration *domain.Integration) (replacedID string, err error)

	// UpdateStatus transitions an integration's status.
	UpdateStatus(ctx context.Context, id string, status domain.IntegrationStatus) error

	// UpdateExpiry records the current access token expiry after a refresh.
	UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error

	// MarkSynced records a successful sync.
	MarkSynced(ctx context.Context, id string, at time.Time) error

	// ListExpiring returns active integrations whose access token expires
	// within the window. Used by the periodic sweep.
	ListExpiring(ctx context.Context, within time.Duration) ([]*domain.Integration, error)
}
