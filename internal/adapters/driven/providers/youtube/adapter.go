package youtube

import (
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers/google"
	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// Ensure the adapter implements the interface.
var _ providers.Adapter = (*Adapter)(nil)

// Adapter handles OAuth operations for YouTube. YouTube rides Google's OAuth
// stack end to end; only the provider identity and default scopes differ, so
// a separately configured OAuth app can be used for YouTube-only grants.
type Adapter struct {
	*google.Adapter
}

// New creates a YouTube OAuth adapter.
func New(creds providers.Credentials) *Adapter {
	return &Adapter{
		Adapter: google.NewForProvider(domain.ProviderYouTube, creds, []string{
			"openid",
			"email",
			"https://www.googleapis.com/auth/youtube.readonly",
			"https://www.googleapis.com/auth/youtube.force-ssl",
		}),
	}
}
