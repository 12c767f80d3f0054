package driven

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// AuditLog records security-relevant events. Append-only: entries are never
// updated or deleted.
type AuditLog interface {
	// Record appends an event. Implementations fill ID and Time when unset.
	Record(ctx context.Context, event *domain.AuditEvent) error

	// ListForUser returns the most recent events for a user, newest first.
	ListForUser(ctx context.Context, userID string, limit int) ([]*domain.AuditEvent, error)
}
