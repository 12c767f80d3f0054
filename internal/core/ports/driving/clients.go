package driving

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// ClientFactory produces ready-to-use, token-backed provider clients scoped
// to a user. Agent tools call GetUserClient before performing any provider
// operation and handle domain.ErrNotConnected by prompting (re)authorization.
type ClientFactory interface {
	// GetUserClient returns a live client for the user's active integration,
	// transparently refreshing the access token when needed. Construction for
	// a given (user, provider) is serialized so concurrent tool calls don't
	// trigger duplicate token fetches.
	//
	// Fails with domain.ErrNotConnected when no usable integration exists,
	// including when the stored token is expired beyond refresh.
	GetUserClient(ctx context.Context, userID string, provider domain.Provider) (*driven.ProviderClient, error)

	// Invalidate drops any cached client for the pair. Called after every
	// token refresh and integration revoke.
	Invalidate(userID string, provider domain.Provider)
}
