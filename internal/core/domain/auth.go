package domain

// TokenClaims are the identity claims carried by a bearer token at the
// HTTP boundary. Issuance is handled by the surrounding application; this
// core only needs the user identity to scope integration operations.
type TokenClaims struct {
	UserID    string
	Email     string
	IssuedAt  int64
	ExpiresAt int64
}
