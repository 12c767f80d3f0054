package google

import (
	"net/url"
	"strings"
	"testing"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/core/domain"
)

func newTestAdapter() *Adapter {
	return New(providers.Credentials{ClientID: "client-id", ClientSecret: "client-secret"})
}

func TestBuildAuthURL(t *testing.T) {
	a := newTestAdapter()

	raw := a.BuildAuthURL([]string{"openid", "email"}, "https://app.example.com/callback", "state-123", "challenge-abc")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	if !strings.HasPrefix(raw, a.Defaults().AuthURL+"?") {
		t.Errorf("unexpected base URL: %s", raw)
	}

	q := u.Query()
	if q.Get("client_id") != "client-id" {
		t.Errorf("unexpected client_id: %s", q.Get("client_id"))
	}
	if q.Get("state") != "state-123" {
		t.Errorf("unexpected state: %s", q.Get("state"))
	}
	if q.Get("redirect_uri") != "https://app.example.com/callback" {
		t.Errorf("unexpected redirect_uri: %s", q.Get("redirect_uri"))
	}
	if q.Get("scope") != "openid email" {
		t.Errorf("unexpected scope: %s", q.Get("scope"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("unexpected response_type: %s", q.Get("response_type"))
	}
	// Offline access with forced consent is what makes Google return a
	// refresh token.
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Errorf("expected offline access with consent prompt, got %s", raw)
	}
	if q.Get("code_challenge") != "challenge-abc" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("expected S256 PKCE parameters, got %s", raw)
	}
}

func TestBuildAuthURL_WithoutPKCE(t *testing.T) {
	a := newTestAdapter()

	raw := a.BuildAuthURL([]string{"openid"}, "https://app.example.com/callback", "state-123", "")

	u, _ := url.Parse(raw)
	if u.Query().Has("code_challenge") || u.Query().Has("code_challenge_method") {
		t.Errorf("PKCE parameters must be absent without a challenge: %s", raw)
	}
}

func TestDefaults(t *testing.T) {
	d := newTestAdapter().Defaults()

	if !d.SupportsPKCE {
		t.Error("google supports PKCE")
	}
	if d.RotatesRefreshToken {
		t.Error("google does not rotate refresh tokens")
	}
	if len(d.Scopes) == 0 {
		t.Error("expected default scopes")
	}
	if d.RevokeURL == "" {
		t.Error("expected a revocation endpoint")
	}
}

func TestNewForProvider(t *testing.T) {
	scopes := []string{"https://www.googleapis.com/auth/youtube.readonly"}
	a := NewForProvider(domain.ProviderYouTube, providers.Credentials{ClientID: "id", ClientSecret: "s"}, scopes)

	if a.Provider() != domain.ProviderYouTube {
		t.Errorf("unexpected provider: %s", a.Provider())
	}
	if got := a.Defaults().Scopes; len(got) != 1 || got[0] != scopes[0] {
		t.Errorf("unexpected scopes: %v", got)
	}
}
