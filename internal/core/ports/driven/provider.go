package driven

import (
	"net/http"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// ProviderToken is the raw token response from a provider's token endpoint.
type ProviderToken struct {
	AccessToken string

	// RefreshToken is empty when the provider doesn't issue one (Notion) or
	// didn't rotate it on refresh (Google, unless re-consented).
	RefreshToken string

	TokenType string

	// Scope is the space-separated scope string actually granted.
	Scope string

	// ExpiresIn is the access token lifetime in seconds, 0 for non-expiring.
	ExpiresIn int
}

// ProviderIdentity identifies the provider-side account behind a token.
type ProviderIdentity struct {
	ID    string
	Email string
	Name  string

	// Extra carries provider-specific attributes (workspace name, etc.)
	Extra map[string]string
}

// ProviderClient is a ready-to-use, user-scoped handle to a provider API.
// HTTP carries the bearer token on every request. Clients are process-local,
// owned by the client factory, and invalidated on refresh or revoke.
type ProviderClient struct {
	UserID        string
	Provider      domain.Provider
	IntegrationID string

	// HTTP is the authenticated client. Callers must not retain it past the
	// request at hand; the factory may invalidate the handle at any time.
	HTTP *http.Client
}
