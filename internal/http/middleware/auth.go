package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	// ActorEmailLocalKey is the context-locals key carrying the authenticated
	// actor's email for downstream handlers.
	ActorEmailLocalKey = "actor_email"
	// ActorIDLocalKey carries the authenticated actor's user id.
	ActorIDLocalKey = "actor_id"
)

// TokenVerifier validates a bearer token and yields the actor identity.
// Implemented by the auth service.
type TokenVerifier interface {
	VerifyBearer(token string) (userID, email string, isAdmin bool, err error)
}

// RequireAuth returns a middleware that rejects requests without a valid
// Bearer token. The verified actor's id and email are placed in context
// locals. requireAdmin additionally rejects non-admin tokens with 403.
func RequireAuth(verifier TokenVerifier, requireAdmin bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return unauthorized(c, "malformed authorization header")
		}

		userID, email, isAdmin, err := verifier.VerifyBearer(parts[1])
		if err != nil {
			return unauthorized(c, "invalid or expired token")
		}
		if requireAdmin && !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}

		c.Locals(ActorIDLocalKey, userID)
		c.Locals(ActorEmailLocalKey, email)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": msg})
}
