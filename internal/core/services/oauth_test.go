package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

type oauthFixture struct {
	svc          *oauthService
	states       *mocks.MockAuthStateStore
	integrations *mocks.MockIntegrationStore
	tokens       *mocks.MockTokenStore
	audit        *mocks.MockAuditLog
	adapter      *mocks.MockProviderAdapter
}

func newOAuthFixture(t *testing.T) *oauthFixture {
	t.Helper()

	states := mocks.NewMockAuthStateStore()
	integrations := mocks.NewMockIntegrationStore()
	tokens := mocks.NewMockTokenStore()
	audit := mocks.NewMockAuditLog()
	adapter := mocks.NewMockProviderAdapter(domain.ProviderGoogle)
	registry := providers.NewRegistry()
	registry.Register(adapter)

	security := NewSecurityService(SecurityServiceConfig{
		StateStore: states,
		AuditLog:   audit,
	})
	tokenSvc := NewTokenService(TokenServiceConfig{
		IntegrationStore: integrations,
		TokenStore:       tokens,
		AuditLog:         audit,
		Registry:         registry,
	})
	integrationSvc := NewIntegrationService(IntegrationServiceConfig{
		IntegrationStore: integrations,
		TokenStore:       tokens,
		AuditLog:         audit,
		TokenService:     tokenSvc,
	})

	svc := NewOAuthService(OAuthServiceConfig{
		Registry:     registry,
		Security:     security,
		Integrations: integrationSvc,
		BaseURL:      "https://aide.example.com",
	}).(*oauthService)

	return &oauthFixture{
		svc:          svc,
		states:       states,
		integrations: integrations,
		tokens:       tokens,
		audit:        audit,
		adapter:      adapter,
	}
}

func TestOAuthService_Authorize(t *testing.T) {
	f := newOAuthFixture(t)

	var gotRedirect, gotChallenge string
	f.adapter.BuildAuthURLFn = func(scopes []string, redirectURI, state, codeChallenge string) string {
		gotRedirect = redirectURI
		gotChallenge = codeChallenge
		return "https://auth.example.com/authorize?state=" + url.QueryEscape(state)
	}

	resp, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if resp.State == "" {
		t.Fatal("expected a state token")
	}
	if !strings.Contains(resp.AuthorizationURL, url.QueryEscape(resp.State)) {
		t.Error("authorization URL must carry the issued state")
	}
	if gotRedirect != "https://aide.example.com/api/v1/oauth/google/callback" {
		t.Errorf("unexpected redirect URI: %s", gotRedirect)
	}
	// The mock adapter supports PKCE.
	if gotChallenge == "" {
		t.Error("expected a PKCE code challenge")
	}
	if f.states.Len() != 1 {
		t.Errorf("expected 1 stored state, got %d", f.states.Len())
	}
}

func TestOAuthService_Authorize_DefaultScopes(t *testing.T) {
	f := newOAuthFixture(t)

	var gotScopes []string
	f.adapter.BuildAuthURLFn = func(scopes []string, redirectURI, state, codeChallenge string) string {
		gotScopes = scopes
		return "https://auth.example.com/authorize"
	}

	if _, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	}); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if len(gotScopes) != 1 || gotScopes[0] != "read" {
		t.Errorf("expected adapter default scopes, got %v", gotScopes)
	}

	if _, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
		Scopes:   []string{"calendar", "mail"},
	}); err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}
	if len(gotScopes) != 2 {
		t.Errorf("expected requested scopes to win, got %v", gotScopes)
	}
}

func TestOAuthService_Authorize_UnknownProvider(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderNotion, // not registered in this fixture
	})
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestOAuthService_Authorize_Unconfigured(t *testing.T) {
	f := newOAuthFixture(t)
	f.adapter.NotConfigured = true

	_, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	})
	if !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Errorf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestOAuthService_Callback(t *testing.T) {
	f := newOAuthFixture(t)

	resp, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	var gotVerifier string
	f.adapter.ExchangeCodeFn = func(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error) {
		if code != "auth-code" {
			t.Errorf("unexpected code: %s", code)
		}
		gotVerifier = codeVerifier
		return &driven.ProviderToken{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "Bearer",
			Scope:        "calendar mail",
			ExpiresIn:    3600,
		}, nil
	}

	result, err := f.svc.Callback(context.Background(), driving.CallbackRequest{
		State: resp.State,
		Code:  "auth-code",
	})
	if err != nil {
		t.Fatalf("Callback failed: %v", err)
	}
	if gotVerifier == "" {
		t.Error("expected the PKCE verifier from the stored state")
	}
	if result.Integration.Status != domain.StatusActive {
		t.Errorf("expected active integration, got %s", result.Integration.Status)
	}
	if len(result.Integration.Scopes) != 2 {
		t.Errorf("expected granted scopes recorded, got %v", result.Integration.Scopes)
	}
	if result.Integration.AccountID != "mock-account" {
		t.Errorf("expected provider identity recorded, got %q", result.Integration.AccountID)
	}

	// Tokens are stored under the new integration.
	record, err := f.tokens.Get(context.Background(), result.Integration.ID)
	if err != nil {
		t.Fatalf("expected stored token record: %v", err)
	}
	if record.AccessToken != "access-1" || record.RefreshToken != "refresh-1" {
		t.Error("stored record does not match the exchanged tokens")
	}
}

func TestOAuthService_Callback_InvalidState(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.svc.Callback(context.Background(), driving.CallbackRequest{
		State: "forged",
		Code:  "auth-code",
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestOAuthService_Callback_StateReplay(t *testing.T) {
	f := newOAuthFixture(t)

	resp, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	if _, err := f.svc.Callback(context.Background(), driving.CallbackRequest{
		State: resp.State,
		Code:  "auth-code",
	}); err != nil {
		t.Fatalf("first callback failed: %v", err)
	}

	_, err = f.svc.Callback(context.Background(), driving.CallbackRequest{
		State: resp.State,
		Code:  "auth-code",
	})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on replay, got %v", err)
	}
}

func TestOAuthService_Callback_ProviderError(t *testing.T) {
	f := newOAuthFixture(t)

	resp, err := f.svc.Authorize(context.Background(), driving.AuthorizeRequest{
		UserID:   "user-1",
		Provider: domain.ProviderGoogle,
	})
	if err != nil {
		t.Fatalf("Authorize failed: %v", err)
	}

	_, err = f.svc.Callback(context.Background(), driving.CallbackRequest{
		State:            resp.State,
		Error:            "access_denied",
		ErrorDescription: "user denied consent",
	})
	var oauthErr *driving.OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("expected OAuthError, got %v", err)
	}
	if oauthErr.Code != "access_denied" {
		t.Errorf("unexpected error code: %s", oauthErr.Code)
	}
	// The state was burned with the failed attempt.
	if f.states.Len() != 0 {
		t.Error("expected the state to be consumed on provider error")
	}
}

func TestOAuthService_Callback_MissingParams(t *testing.T) {
	f := newOAuthFixture(t)

	_, err := f.svc.Callback(context.Background(), driving.CallbackRequest{})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
