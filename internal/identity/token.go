// Package identity maps the bearer tokens minted by the backend's
// authentication service onto actor descriptions. The gateway never
// issues credentials itself; it only verifies and reads them.
package identity

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/assistenza/helpdesk-gateway/internal/domain"
)

// TokenManager validates JWT tokens and extracts the acting account.
type TokenManager struct {
	secret []byte
}

// NewTokenManager builds a manager around the shared HMAC secret.
func NewTokenManager(secret string) *TokenManager {
	return &TokenManager{secret: []byte(secret)}
}

// Claims describes the JWT payload the backend issues.
type Claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// ParseToken validates the token and returns the claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Actor builds the domain actor from validated claims. Unknown role
// names are dropped; an actor without any recognized role acts as a
// plain USER.
func (tm *TokenManager) Actor(claims *Claims) domain.Actor {
	roles := make([]domain.Role, 0, len(claims.Roles))
	for _, name := range claims.Roles {
		if role, ok := domain.ParseRole(name); ok {
			roles = append(roles, role)
		}
	}
	return domain.Actor{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: roles,
	}
}

// Expired reports whether the claims carry a past expiry.
func Expired(claims *Claims) bool {
	return claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now())
}
