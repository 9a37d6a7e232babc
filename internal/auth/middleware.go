// Package auth validates the bearer tokens of incoming requests and
// exposes the acting account to handlers. Tokens are minted by the
// backend's authentication service; this gateway only verifies them and
// forwards them on outgoing calls.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/assistenza/helpdesk-gateway/internal/backend"
	"github.com/assistenza/helpdesk-gateway/internal/domain"
	"github.com/assistenza/helpdesk-gateway/internal/identity"
	apperrors "github.com/assistenza/helpdesk-gateway/pkg/util"
)

const actorKey = "auth_actor"

// Middleware validates bearer tokens and loads the actor.
type Middleware struct {
	tokens *identity.TokenManager
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *identity.TokenManager) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle enforces authentication for protected routes. The raw token is
// kept on the request context so backend calls run with the caller's
// own authority.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if identity.Expired(claims) {
		return apperrors.NewUnauthorized("token expired")
	}

	actor := m.tokens.Actor(claims)
	if actor.ID == "" {
		return apperrors.NewUnauthorized("unknown subject")
	}

	c.Locals(actorKey, actor)
	c.SetUserContext(backend.WithToken(c.UserContext(), parts[1]))
	return c.Next()
}

// ActorFromContext retrieves the authenticated account.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, bool) {
	actor, ok := c.Locals(actorKey).(domain.Actor)
	return actor, ok
}

// RequireStaff rejects requests from plain USER accounts.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !actor.IsStaff() {
			return apperrors.NewAuthorizationError("staff role required")
		}
		return c.Next()
	}
}
