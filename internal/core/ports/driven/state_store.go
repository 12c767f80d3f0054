package driven

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// AuthStateStore manages authorization flow state for CSRF protection.
// States are single-use and expire after a short window.
type AuthStateStore interface {
	// Save stores a new state. The state typically expires in 10 minutes.
	Save(ctx context.Context, state *domain.AuthState) error

	// ConsumeOnce atomically retrieves and deletes the state, guaranteeing
	// single-use semantics. Returns nil, nil if the state doesn't exist,
	// has expired, or was already consumed.
	ConsumeOnce(ctx context.Context, state string) (*domain.AuthState, error)

	// Cleanup removes expired states. Called periodically by the sweep.
	Cleanup(ctx context.Context) error
}
