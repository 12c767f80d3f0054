package microsoft

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

// Adapter handles OAuth operations for the Microsoft identity platform (v2.0).
//
// Microsoft rotates refresh tokens: every refresh response carries a new
// refresh token and the presented one is invalidated. Presenting a superseded
// refresh token fails with invalid_grant, which is why refreshes for one
// integration must be single-flighted upstream.
type Adapter struct {
	creds      providers.Credentials
	httpClient *http.Client
}

// New creates a Microsoft OAuth adapter.
func New(creds providers.Credentials) *Adapter {
	return &Adapter{
		creds:      creds,
		httpClient: providers.NewHTTPClient(),
	}
}

// Provider returns domain.ProviderMicrosoft.
func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderMicrosoft
}

// Configured reports whether OAuth app credentials are present.
func (a *Adapter) Configured() bool {
	return a.creds.Configured()
}

// withOfflineAccess ensures the offline_access scope is present; without it
// the identity platform issues no refresh token.
func withOfflineAccess(scopes []string) []string {
	for _, s := range scopes {
		if s == "offline_access" {
			return scopes
		}
	}
	out := make([]string, 0, len(scopes)+1)
	out = append(out, scopes...)
	return append(out, "offline_access")
}

// BuildAuthURL constructs the Microsoft authorization URL.
func (a *Adapter) BuildAuthURL(scopes []string, redirectURI, state, codeChallenge string) string {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"scope":         {strings.Join(withOfflineAccess(scopes), " ")},
		"response_type": {"code"},
		"response_mode": {"query"},
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

// Refresh exchanges a refresh token for new tokens. The response always
// carries a rotated refresh token.
func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"client_secret": {a.creds.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return providers.PostTokenForm(ctx, a.httpClient, a.Defaults().TokenURL, params, nil)
}

// Revoke is a no-op: the identity platform has no token revocation endpoint
// for this flow. Tokens lapse at expiry; local revocation is the real cleanup.
func (a *Adapter) Revoke(ctx context.Context, token string) error {
	return nil
}

// FetchIdentity returns the Microsoft account behind the token via Graph.
func (a *Adapter) FetchIdentity(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error) {
	var me struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := providers.GetJSON(ctx, a.httpClient, a.Defaults().IdentityURL, accessToken, nil, &me); err != nil {
		return nil, err
	}
	email := me.Mail
	if email == "" {
		email = me.UserPrincipalName
	}
	return &driven.ProviderIdentity{
		ID:    me.ID,
		Email: email,
		Name:  me.DisplayName,
	}, nil
}

// Defaults returns Microsoft's endpoints and behavior flags.
func (a *Adapter) Defaults() providers.Defaults {
	return providers.Defaults{
		AuthURL:     "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		IdentityURL: "https://graph.microsoft.com/v1.0/me",
		Scopes: []string{
			"User.Read",
			"Calendars.ReadWrite",
			"Mail.ReadWrite",
			"Mail.Send",
			"offline_access",
		},
		SupportsPKCE:        true,
		RotatesRefreshToken: true,
	}
}
