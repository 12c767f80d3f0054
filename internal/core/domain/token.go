package domain

import "time"

// TokenRecord is the credential material for one integration.
// Access and refresh tokens are plaintext only in memory; the token store
// encrypts them before persisting and they must never be logged.
type TokenRecord struct {
	// IntegrationID is the owning integration (1:1).
	IntegrationID string

	AccessToken  string
	RefreshToken string
	TokenType    string

	// ExpiresAt is when the access token stops being valid. Zero means the
	// provider issued a non-expiring token (Notion).
	ExpiresAt time.Time

	// Scopes actually granted by the provider.
	Scopes []string

	// Version is the optimistic-concurrency counter for compare-and-swap
	// writes. Incremented by the store on every successful update.
	Version int64
}

// Refreshable reports whether a refresh can be attempted at all.
// Records without a refresh token fail fast instead of retrying.
func (t *TokenRecord) Refreshable() bool {
	return t.RefreshToken != ""
}

// Expiring reports whether the access token expires within the margin.
// Non-expiring tokens never do.
func (t *TokenRecord) Expiring(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Until(t.ExpiresAt) < margin
}

// Expired reports whether the access token is past its expiry.
func (t *TokenRecord) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}
