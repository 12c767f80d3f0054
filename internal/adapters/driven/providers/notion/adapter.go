package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
)

// Ensure Adapter implements the interface.
var _ providers.Adapter = (*Adapter)(nil)

// notionVersion is the API version header Notion requires on every call.
const notionVersion = "2022-06-28"

// Adapter handles OAuth operations for Notion.
//
// Notion quirks: the token endpoint authenticates with HTTP basic auth
// rather than body credentials, access tokens never expire, and there is
// no refresh or revocation endpoint. Token records from Notion are stored
// non-refreshable.
type Adapter struct {
	creds      providers.Credentials
	httpClient *http.Client
}

// New creates a Notion OAuth adapter.
func New(creds providers.Credentials) *Adapter {
	return &Adapter{
		creds:      creds,
		httpClient: providers.NewHTTPClient(),
	}
}

// Provider returns domain.ProviderNotion.
func (a *Adapter) Provider() domain.Provider {
	return domain.ProviderNotion
}

// Configured reports whether OAuth app credentials are present.
func (a *Adapter) Configured() bool {
	return a.creds.Configured()
}

// BuildAuthURL constructs the Notion authorization URL. Notion has no scope
// parameter; capabilities are fixed by the integration's configuration.
func (a *Adapter) BuildAuthURL(scopes []string, redirectURI, state, codeChallenge string) string {
	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"redirect_uri":  {redirectURI},
		"state":         {state},
		"response_type": {"code"},
		"owner":         {"user"},
	}
	return a.Defaults().AuthURL + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for an access token.
func (a *Adapter) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*driven.ProviderToken, error) {
	params := url.Values{
		"code":         {code},
		"redirect_uri": {redirectURI},
		"grant_type":   {"authorization_code"},
	}
	return providers.PostTokenForm(ctx, a.httpClient, a.Defaults().TokenURL, params, &a.creds)
}

// Refresh always fails: Notion issues non-expiring tokens without refresh.
func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (*driven.ProviderToken, error) {
	return nil, fmt.Errorf("notion: %w", domain.ErrNotRefreshable)
}

// Revoke is a no-op: Notion has no revocation endpoint. Connections are
// removed from the user's workspace settings.
func (a *Adapter) Revoke(ctx context.Context, token string) error {
	return nil
}

// FetchIdentity returns the bot/user behind the token.
func (a *Adapter) FetchIdentity(ctx context.Context, accessToken string) (*driven.ProviderIdentity, error) {
	var me struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Bot  struct {
			Owner struct {
				User struct {
					ID     string `json:"id"`
					Name   string `json:"name"`
					Person struct {
						Email string `json:"email"`
					} `json:"person"`
				} `json:"user"`
			} `json:"owner"`
			WorkspaceName string `json:"workspace_name"`
		} `json:"bot"`
	}
	headers := map[string]string{"Notion-Version": notionVersion}
	if err := providers.GetJSON(ctx, a.httpClient, a.Defaults().IdentityURL, accessToken, headers, &me); err != nil {
		return nil, err
	}

	identity := &driven.ProviderIdentity{
		ID:   me.ID,
		Name: me.Name,
	}
	if owner := me.Bot.Owner.User; owner.ID != "" {
		identity.ID = owner.ID
		identity.Email = owner.Person.Email
		if owner.Name != "" {
			identity.Name = owner.Name
		}
	}
	if me.Bot.WorkspaceName != "" {
		identity.Extra = map[string]string{"workspace_name": me.Bot.WorkspaceName}
	}
	return identity, nil
}

// Defaults returns Notion's endpoints and behavior flags.
func (a *Adapter) Defaults() providers.Defaults {
	return providers.Defaults{
		AuthURL:             "https://api.notion.com/v1/oauth/authorize",
		TokenURL:            "https://api.notion.com/v1/oauth/token",
		IdentityURL:         "https://api.notion.com/v1/users/me",
		Scopes:              nil,
		SupportsPKCE:        false,
		RotatesRefreshToken: false,
	}
}
