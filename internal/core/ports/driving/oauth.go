package driving

import (
	"context"
	"fmt"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// AuthorizeRequest starts an authorization flow for a user.
type AuthorizeRequest struct {
	UserID   string
	Provider domain.Provider

	// Scopes to request. Empty means the provider adapter's defaults.
	Scopes []string
}

// AuthorizeResponse carries the URL to redirect the user to.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	ExpiresAt        string `json:"expires_at"`
}

// CallbackRequest is the provider redirect back to us.
type CallbackRequest struct {
	State string
	Code  string

	// Error fields set when the provider reports a failure instead of a code.
	Error            string
	ErrorDescription string
}

// CallbackResponse reports the completed connection.
type CallbackResponse struct {
	Integration *domain.IntegrationSummary `json:"integration"`
	Message     string                     `json:"message"`
}

// OAuthError wraps a provider-reported OAuth error.
type OAuthError struct {
	Code        string
	Description string
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth error: %s - %s", e.Code, e.Description)
	}
	return fmt.Sprintf("oauth error: %s", e.Code)
}

// OAuthService drives the authorization-code flow.
type OAuthService interface {
	// Authorize issues a CSRF state and returns the provider authorization URL.
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)

	// Callback validates state, exchanges the code, and activates the
	// integration, replacing any prior active one for the pair.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)
}
