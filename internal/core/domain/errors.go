package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupportedProvider indicates the provider is not registered or configured
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrInvalidGrant indicates the provider rejected an authorization code or
	// refresh token. Terminal: the user must reconnect the integration.
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrTokenExpired indicates no valid access token can be produced locally.
	// Distinct from ErrInvalidGrant: this is our determination, not the provider's.
	ErrTokenExpired = errors.New("token expired")

	// ErrNotRefreshable indicates the token record has no refresh token
	ErrNotRefreshable = errors.New("token not refreshable")

	// ErrProviderUnavailable indicates a transient network or provider failure.
	// Callers may retry with backoff.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrInvalidState indicates an unknown, expired, or replayed authorization
	// state token. Always terminal and audit-logged as a security event.
	ErrInvalidState = errors.New("invalid authorization state")

	// ErrNotConnected indicates no integration exists for the (user, provider) pair
	ErrNotConnected = errors.New("not connected")

	// ErrRevoked indicates the integration has been revoked
	ErrRevoked = errors.New("integration revoked")

	// ErrConflict indicates a concurrent update won a compare-and-swap write
	ErrConflict = errors.New("conflicting update")

	// ErrTokenInvalid indicates an auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")
)
