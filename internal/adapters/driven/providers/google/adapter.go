package google

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ providers.Adapter = (*Adapter)(nil)

// Adapter handles OAuth operations for Google.
//
// Google only issues a refresh token on the initial consented authorization
// (access_type=offline, prompt=consent) and does not rotate it on refresh:
// a refresh response without a refresh_token means the stored one stays valid.
type Adapter struct {
	provider   domain.Provider
	creds      providers.Credentials
	scopes     []string
	httpClient *http.Client
}

// New creates a Google OAuth adapter.
func New(creds providers.Credentials) *Adapter {
	return &Adapter{
		provider: domain.ProviderGoogle,
		creds:    creds,
		scopes: []string{
			"openid",
			"email",
			"https://www.googleapis.com/auth/calendar",
			"https://www.googleapis.com/auth/gmail.modify",
		},
		httpClient: providers.NewHTTPClient(),
	}
}

// NewForProvider creates a Google-protocol adapter serving another provider
// identity with its own default scopes. YouTube uses Google's OAuth stack.
func NewForProvider(provider domain.Provider, creds providers.Credentials, scopes []string) *Adapter {
	return &Adapter{
		provider:   provider,
		creds:      creds,
		scopes:     scopes,
		httpClient: providers.NewHTTPClient(),
	}
}

// Provider returns the provider identity this adapter serves.
func (a *Adapter) Provider() domain.Provider {
	return a.provider
}

// Configured reports whether OAuth app credentials are present.
func (a *Adapter) Configured() bool {
	return a.creds.Configured()
}

// BuildAuthURL constructs the Google authorization URL.
// access_type=offline and prompt=consent force a refresh token grant.
func (a *Adapter) BuildAuthURL(scopes []string, redirectURI, state, codeChallenge string) string {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(scopes, " ")},
		"response_type": {"code"},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	if codeChallenge != "" {
		params.Set("code_challenge", codeChallenge)
		params.Set("code_challenge_method", "S256")
	}
	return a.Defaults().AuthURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
func (a *Adapter) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error) {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"client_secret": {a.creds.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"grant_type":    {"authorization_code"},
	}
	if codeVerifier != "" {
		params.Set("code_verifier", codeVerifier)
	}
	return providers.PostTokenForm(ctx, a.httpClient, a.Defaults().TokenURL, params, nil)
}

// Refresh exchanges a refresh token for a new access token.
func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"client_secret": {a.creds.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return providers.PostTokenForm(ctx, a.httpClient, a.Defaults().TokenURL, params, nil)
}

// Revoke invalidates a token. Google's endpoint accepts either an access or
// refresh token and revokes the whole grant.
func (a *Adapter) Revoke(ctx context.Context, token string) error {
	return providers.PostRevoke(ctx, a.httpClient, a.Defaults().RevokeURL, url.Values{
		"token": {token},
	})
}

// FetchIdentity returns the Google account behind the token.
func (a *Adapter) FetchIdentity(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error) {
	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := providers.GetJSON(ctx, a.httpClient, a.Defaults().IdentityURL, accessToken, nil, &info); err != nil {
		return nil, err
	}
	return &driven.ProviderIdentity{
		ID:    info.Sub,
		Email: info.Email,
		Name:  info.Name,
	}, nil
}

// Defaults returns Google's endpoints and behavior flags.
func (a *Adapter) Defaults() providers.Defaults {
	return providers.Defaults{
		AuthURL:             "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:            "https://oauth2.googleapis.com/token",
		RevokeURL:           "https://oauth2.googleapis.com/revoke",
		IdentityURL:         "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:              a.scopes,
		SupportsPKCE:        true,
		RotatesRefreshToken: false,
	}
}
