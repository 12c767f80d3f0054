package domain

import "time"

// AuthState is a single-use CSRF nonce bound to a pending authorization flow.
// A callback presenting an unknown, expired, or already-consumed state is
// rejected with ErrInvalidState.
type AuthState struct {
	// State is the cryptographically random token carried through the
	// provider redirect.
	State string

	UserID   string
	Provider Provider

	// Scopes requested when the authorization URL was issued.
	Scopes []string

	// RedirectURI that must be presented again during code exchange.
	RedirectURI string

	// CodeVerifier is the PKCE verifier, empty for providers without PKCE.
	CodeVerifier string

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the state is past its validity window.
func (s *AuthState) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}
