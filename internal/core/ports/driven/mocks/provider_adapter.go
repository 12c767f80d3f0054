package mocks

import (
	"context"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure MockProviderAdapter implements Adapter
var _ providers.Adapter = (*MockProviderAdapter)(nil)

// MockProviderAdapter is a mock implementation of the provider Adapter for
// testing, with custom behavior injection per operation.
type MockProviderAdapter struct {
	ProviderValue domain.Provider
	DefaultsValue providers.Defaults
	NotConfigured bool

	BuildAuthURLFn  func(scopes []string, redirectURI, state, codeChallenge string) string
	ExchangeCodeFn  func(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error)
	RefreshFn       func(ctx context.Context, refreshToken string) (*driven.ProviderToken, error)
	RevokeFn        func(ctx context.Context, token string) error
	FetchIdentityFn func(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error)
}

// NewMockProviderAdapter creates a mock adapter for the given provider.
func NewMockProviderAdapter(provider domain.Provider) *MockProviderAdapter {
	return &MockProviderAdapter{
		ProviderValue: provider,
		DefaultsValue: providers.Defaults{
			AuthURL:      "https://auth.example.com/authorize",
			TokenURL:     "https://auth.example.com/token",
			Scopes:       []string{"read"},
			SupportsPKCE: true,
		},
	}
}

func (m *MockProviderAdapter) Provider() domain.Provider {
	return m.ProviderValue
}

func (m *MockProviderAdapter) BuildAuthURL(scopes []string, redirectURI, state, codeChallenge string) string {
	if m.BuildAuthURLFn != nil {
		return m.BuildAuthURLFn(scopes, redirectURI, state, codeChallenge)
	}
	return m.DefaultsValue.AuthURL + "?state=" + state
}

func (m *MockProviderAdapter) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error) {
	if m.ExchangeCodeFn != nil {
		return m.ExchangeCodeFn(ctx, code, redirectURI, codeVerifier)
	}
	return &driven.ProviderToken{
		AccessToken:  "mock-access-token",
		RefreshToken: "mock-refresh-token",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}, nil
}

func (m *MockProviderAdapter) Refresh(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
	if m.RefreshFn != nil {
		return m.RefreshFn(ctx, refreshToken)
	}
	return &driven.ProviderToken{
		AccessToken: "mock-refreshed-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
	}, nil
}

func (m *MockProviderAdapter) Revoke(ctx context.Context, token string) error {
	if m.RevokeFn != nil {
		return m.RevokeFn(ctx, token)
	}
	return nil
}

func (m *MockProviderAdapter) FetchIdentity(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error) {
	if m.FetchIdentityFn != nil {
		return m.FetchIdentityFn(ctx, accessToken)
	}
	return &driven.ProviderIdentity{ID: "mock-account", Email: "user@example.com"}, nil
}

func (m *MockProviderAdapter) Defaults() providers.Defaults {
	return m.DefaultsValue
}

func (m *MockProviderAdapter) Configured() bool {
	return !m.NotConfigured
}
