package domain

import "time"

// Provider identifies an OAuth provider.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderNotion    Provider = "notion"
	ProviderYouTube   Provider = "youtube"
)

// AllProviders lists every supported provider.
var AllProviders = []Provider{
	ProviderGoogle,
	ProviderMicrosoft,
	ProviderNotion,
	ProviderYouTube,
}

// ParseProvider validates and converts a provider string.
// Returns ErrUnsupportedProvider for unknown values.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	for _, known := range AllProviders {
		if p == known {
			return p, nil
		}
	}
	return "", ErrUnsupportedProvider
}

// DisplayName returns a human-readable name for the provider.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderMicrosoft:
		return "Microsoft"
	case ProviderNotion:
		return "Notion"
	case ProviderYouTube:
		return "YouTube"
	default:
		return string(p)
	}
}

// IntegrationStatus is the lifecycle state of an integration.
type IntegrationStatus string

const (
	// StatusPending means the authorization flow has started but not completed.
	StatusPending IntegrationStatus = "pending"

	// StatusActive means tokens are stored and usable.
	StatusActive IntegrationStatus = "active"

	// StatusExpired means the provider rejected the refresh token or no
	// refresh is possible. The user must reconnect.
	StatusExpired IntegrationStatus = "expired"

	// StatusRevoked means the integration was revoked, either by the user or
	// because a newer authorization replaced it. Revoked integrations are
	// retained for the audit trail and never hard-deleted.
	StatusRevoked IntegrationStatus = "revoked"
)

// Integration represents a user's authorized link to one OAuth provider.
// At most one integration per (user, provider) pair may be active at a time;
// a new authorization transitions the prior active one to revoked.
type Integration struct {
	ID       string            `json:"id"`
	UserID   string            `json:"user_id"`
	Provider Provider          `json:"provider"`
	Status   IntegrationStatus `json:"status"`

	// Scopes actually granted by the provider (may differ from requested)
	Scopes []string `json:"scopes,omitempty"`

	// AccountID is the provider-side account identifier (email, workspace id).
	// Used for display and duplicate detection.
	AccountID string `json:"account_id,omitempty"`

	// Metadata holds provider-specific key-value data (workspace name, etc.)
	Metadata map[string]string `json:"metadata,omitempty"`

	// ExpiresAt mirrors the access token expiry for cheap freshness queries
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// IntegrationSummary is a safe projection for listing in UI/settings.
type IntegrationSummary struct {
	ID         string            `json:"id"`
	Provider   Provider          `json:"provider"`
	Status     IntegrationStatus `json:"status"`
	Scopes     []string          `json:"scopes,omitempty"`
	AccountID  string            `json:"account_id,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastSyncAt *time.Time        `json:"last_sync_at,omitempty"`
}

// ToSummary converts an Integration to its listing projection.
func (i *Integration) ToSummary() *IntegrationSummary {
	return &IntegrationSummary{
		ID:         i.ID,
		Provider:   i.Provider,
		Status:     i.Status,
		Scopes:     i.Scopes,
		AccountID:  i.AccountID,
		ExpiresAt:  i.ExpiresAt,
		CreatedAt:  i.CreatedAt,
		LastSyncAt: i.LastSyncAt,
	}
}

// IsActive reports whether the integration is usable.
func (i *Integration) IsActive() bool {
	return i.Status == StatusActive
}

// NearingExpiry reports whether the access token expires within the window.
// Integrations without an expiry never near it.
func (i *Integration) NearingExpiry(window time.Duration) bool {
	if i.ExpiresAt == nil {
		return false
	}
	return time.Until(*i.ExpiresAt) < window
}
