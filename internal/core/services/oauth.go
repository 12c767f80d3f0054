package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

// Ensure oauthService implements OAuthService
var _ driving.OAuthService = (*oauthService)(nil)

// OAuthServiceConfig holds configuration for the OAuth flow service.
type OAuthServiceConfig struct {
	// Registry resolves provider adapters.
	Registry *providers.Registry

	// Security issues and consumes CSRF states.
	Security driving.SecurityService

	// Integrations activates the connected integration on callback.
	Integrations driving.IntegrationService

	// BaseURL is this deployment's externally reachable base URL, used to
	// derive per-provider callback redirect URIs.
	BaseURL string

	Logger *slog.Logger
}

type oauthService struct {
	registry     *providers.Registry
	security     driving.SecurityService
	integrations driving.IntegrationService
	baseURL      string
	logger       *slog.Logger
}

// NewOAuthService creates a new OAuth flow service.
func NewOAuthService(cfg OAuthServiceConfig) driving.OAuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &oauthService{
		registry:     cfg.Registry,
		security:     cfg.Security,
		integrations: cfg.Integrations,
		baseURL:      cfg.BaseURL,
		logger:       logger,
	}
}

// Authorize issues a single-use CSRF state and builds the provider
// authorization URL, with a PKCE challenge when the provider supports it.
func (s *oauthService) Authorize(ctx context.Context, req driving.AuthorizeRequest) (*driving.AuthorizeResponse, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}

	adapter := s.registry.Get(req.Provider)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, req.Provider)
	}
	if !adapter.Configured() {
		return nil, fmt.Errorf("%w: %s has no credentials configured", domain.ErrUnsupportedProvider, req.Provider)
	}

	defaults := adapter.Defaults()
	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = defaults.Scopes
	}
	redirectURI := s.redirectURI(req.Provider)

	authState := &domain.AuthState{
		UserID:      req.UserID,
		Provider:    req.Provider,
		Scopes:      scopes,
		RedirectURI: redirectURI,
	}

	var codeChallenge string
	if defaults.SupportsPKCE {
		verifier, err := generateRandomToken(32)
		if err != nil {
			return nil, fmt.Errorf("generate code verifier: %w", err)
		}
		authState.CodeVerifier = verifier
		codeChallenge = generateCodeChallenge(verifier)
	}

	state, err := s.security.IssueState(ctx, authState)
	if err != nil {
		return nil, err
	}

	return &driving.AuthorizeResponse{
		AuthorizationURL: adapter.BuildAuthURL(scopes, redirectURI, state, codeChallenge),
		State:            state,
		ExpiresAt:        authState.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Callback completes the flow: validate state, exchange the code, identify
// the account, and activate the integration.
func (s *oauthService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	if req.Error != "" {
		// The user denied consent or the provider failed before issuing a
		// code. Still burn the state if one came back.
		if req.State != "" {
			if _, err := s.security.ConsumeState(ctx, req.State); err != nil {
				s.logger.Warn("failed to consume state on provider error", "error", err)
			}
		}
		return nil, &driving.OAuthError{Code: req.Error, Description: req.ErrorDescription}
	}
	if req.Code == "" || req.State == "" {
		return nil, fmt.Errorf("%w: code and state are required", domain.ErrInvalidInput)
	}

	authState, err := s.security.ConsumeState(ctx, req.State)
	if err != nil {
		return nil, err
	}

	adapter := s.registry.Get(authState.Provider)
	if adapter == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, authState.Provider)
	}

	token, err := adapter.ExchangeCode(ctx, req.Code, authState.RedirectURI, authState.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	identity, err := adapter.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		s.logger.Warn("failed to fetch provider identity",
			"provider", authState.Provider,
			"error", err,
		)
		identity = &driven.ProviderIdentity{}
	}

	scopes := authState.Scopes
	if token.Scope != "" {
		// Providers may grant fewer scopes than requested. Record the grant.
		scopes = providers.SplitScopes(token.Scope)
	}

	record := &domain.TokenRecord{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Scopes:       scopes,
	}
	if token.ExpiresIn > 0 {
		record.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	integration := &domain.Integration{
		UserID:    authState.UserID,
		Provider:  authState.Provider,
		Scopes:    scopes,
		AccountID: identity.ID,
		Metadata:  identityMetadata(identity),
	}

	created, err := s.integrations.CreateOrReplace(ctx, integration, record)
	if err != nil {
		return nil, err
	}

	return &driving.CallbackResponse{
		Integration: created.ToSummary(),
		Message:     fmt.Sprintf("%s connected", created.Provider.DisplayName()),
	}, nil
}

func (s *oauthService) redirectURI(provider domain.Provider) string {
	return fmt.Sprintf("%s/api/v1/oauth/%s/callback", s.baseURL, provider)
}

func identityMetadata(identity *driven.ProviderIdentity) map[string]string {
	meta := make(map[string]string)
	if identity.Email != "" {
		meta["email"] = identity.Email
	}
	if identity.Name != "" {
		meta["name"] = identity.Name
	}
	for k, v := range identity.Extra {
		meta[k] = v
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
