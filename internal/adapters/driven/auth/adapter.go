package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/custodia-labs/aide-core/internal/core/domain"
)

// jwtClaims is the wire shape of a bearer token.
type jwtClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (c *jwtClaims) toDomain() *domain.TokenClaims {
	claims := &domain.TokenClaims{
		UserID: c.UserID,
		Email:  c.Email,
	}
	if c.IssuedAt != nil {
		claims.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Unix()
	}
	return claims
}

// Adapter validates the bearer tokens issued by the surrounding application
// so integration operations can be scoped to the calling user. Token
// issuance lives with the application's auth service; this core only needs
// GenerateToken for tests and local tooling.
type Adapter struct {
	jwtSecret []byte
}

// NewAdapter creates an adapter signing and verifying with the given secret.
func NewAdapter(jwtSecret string) *Adapter {
	return &Adapter{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken signs an HS256 JWT carrying the given claims.
func (a *Adapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		UserID: claims.UserID,
		Email:  claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Unix(claims.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		},
	})
	return token.SignedString(a.jwtSecret)
}

// ParseToken verifies a JWT and returns its claims. Any verification
// failure, including a non-HMAC signing method, maps to ErrTokenInvalid.
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(*jwt.Token) (any, error) { return a.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}
	return claims.toDomain(), nil
}
