package microsoft

import (
	"context"
	"net/url"
	"testing"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
)

func newTestAdapter() *Adapter {
	return New(providers.Credentials{ClientID: "client-id", ClientSecret: "client-secret"})
}

func TestBuildAuthURL_InjectsOfflineAccess(t *testing.T) {
	a := newTestAdapter()

	raw := a.BuildAuthURL([]string{"User.Read"}, "https://app.example.com/callback", "state-123", "")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse auth URL: %v", err)
	}
	if got := u.Query().Get("scope"); got != "User.Read offline_access" {
		t.Errorf("offline_access must be appended, got scope %q", got)
	}
}

func TestBuildAuthURL_KeepsExplicitOfflineAccess(t *testing.T) {
	a := newTestAdapter()

	raw := a.BuildAuthURL([]string{"offline_access", "User.Read"}, "https://app.example.com/callback", "state-123", "")

	u, _ := url.Parse(raw)
	if got := u.Query().Get("scope"); got != "offline_access User.Read" {
		t.Errorf("scope list must not be duplicated, got %q", got)
	}
}

func TestBuildAuthURL_PKCE(t *testing.T) {
	a := newTestAdapter()

	raw := a.BuildAuthURL([]string{"User.Read"}, "https://app.example.com/callback", "state-123", "challenge-abc")

	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("code_challenge") != "challenge-abc" || q.Get("code_challenge_method") != "S256" {
		t.Errorf("expected S256 PKCE parameters, got %s", raw)
	}
	if q.Get("response_mode") != "query" {
		t.Errorf("expected query response mode, got %s", raw)
	}
}

func TestRevokeIsNoOp(t *testing.T) {
	if err := newTestAdapter().Revoke(context.Background(), "at-1"); err != nil {
		t.Errorf("revoke must be a no-op, got %v", err)
	}
}

func TestDefaults(t *testing.T) {
	d := newTestAdapter().Defaults()

	if !d.RotatesRefreshToken {
		t.Error("the identity platform rotates refresh tokens")
	}
	if !d.SupportsPKCE {
		t.Error("the identity platform supports PKCE")
	}
	if d.RevokeURL != "" {
		t.Error("no revocation endpoint exists for this flow")
	}
}
