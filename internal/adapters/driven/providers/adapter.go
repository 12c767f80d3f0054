package providers

import (
	"context"
	"strings"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// SplitScopes parses an RFC 6749 space-delimited scope string.
func SplitScopes(scope string) []string {
	return strings.Fields(scope)
}

// Credentials are the OAuth application credentials for one provider,
// supplied via process configuration and never persisted.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both credential halves are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Defaults captures a provider's endpoints and quirks.
type Defaults struct {
	// AuthURL is the authorization endpoint.
	AuthURL string

	// TokenURL is the token exchange/refresh endpoint.
	TokenURL string

	// RevokeURL is the revocation endpoint, empty when the provider has none.
	RevokeURL string

	// IdentityURL is the endpoint identifying the token's account.
	IdentityURL string

	// Scopes are the default scopes to request.
	Scopes []string

	// SupportsPKCE indicates if the provider supports PKCE.
	SupportsPKCE bool

	// RotatesRefreshToken indicates the provider invalidates the previous
	// refresh token on every refresh (Microsoft). When false, a refresh
	// response without a refresh token means the old one stays valid.
	RotatesRefreshToken bool
}

// Adapter provides OAuth operations for a specific provider.
// Each provider (Google, Microsoft, Notion, YouTube) has its own
// implementation encoding that vendor's endpoint and scope quirks.
// Provider-specific failures are normalized into the domain error taxonomy
// at this boundary: domain.ErrInvalidGrant for rejected codes/tokens and
// domain.ErrProviderUnavailable for transient failures.
type Adapter interface {
	// Provider returns the provider this adapter serves.
	Provider() domain.Provider

	// BuildAuthURL constructs the authorization URL. Pure, no I/O.
	// codeChallenge is the S256 PKCE challenge, empty when PKCE is unused.
	BuildAuthURL(scopes []string, redirectURI, state, codeChallenge string) string

	// ExchangeCode exchanges an authorization code for tokens.
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error)

	// Refresh exchanges a refresh token for new tokens. Fails with
	// domain.ErrInvalidGrant when the provider reports the token
	// revoked/invalid, so callers can mark the integration expired
	// instead of retrying.
	Refresh(ctx context.Context, refreshToken string) (*driven.ProviderToken, error)

	// Revoke invalidates a token at the provider. Idempotent; failures are
	// returned for logging but callers treat revocation as best-effort.
	Revoke(ctx context.Context, token string) error

	// FetchIdentity returns the account behind the access token.
	FetchIdentity(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error)

	// Defaults returns the provider's endpoints and behavior flags.
	Defaults() Defaults

	// Configured reports whether OAuth app credentials are present.
	Configured() bool
}
