package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// TokenService orchestrates token validity, refresh-on-demand, and revocation.
type TokenService interface {
	// GetValidToken returns an access token guaranteed valid for at least the
	// service's safety margin, refreshing first when needed. The returned
	// expiry is zero for non-expiring tokens.
	//
	// Fails with domain.ErrTokenExpired when no valid token can be produced
	// (no refresh token, or the provider rejected the refresh) and with
	// domain.ErrProviderUnavailable on transient failure.
	GetValidToken(ctx context.Context, integrationID string) (token string, expiresAt time.Time, err error)

	// Refresh forces a refresh. Concurrent refreshes for the same integration
	// collapse into a single provider call.
	Refresh(ctx context.Context, integrationID string) (*domain.TokenRecord, error)

	// Store encrypts and persists a new token record for an integration.
	Store(ctx context.Context, record *domain.TokenRecord) error

	// Revoke best-effort revokes the token at the provider, then destroys the
	// local record and marks the integration revoked regardless of the remote
	// outcome. Idempotent.
	Revoke(ctx context.Context, integrationID string) error

	// SetInvalidator wires the client-cache invalidation hook. The client
	// factory depends on this service, so the hook is attached after both
	// sides are constructed.
	SetInvalidator(inv ClientInvalidator)
}

// ClientInvalidator is notified whenever stored tokens change so cached
// provider clients are never reused with a superseded token.
type ClientInvalidator interface {
	Invalidate(userID string, provider domain.Provider)
}
