package middleware

import (
	"strings"

	"orderdesk/internal/models"
	"orderdesk/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// LocalIdentity is the Fiber locals key holding the caller's models.Identity.
const LocalIdentity = "identity"

// TokenResolver turns a bearer token into a caller identity.
type TokenResolver interface {
	Resolve(token string) (models.Identity, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
// Every failure produces the same 401 body.
func AuthRequired(resolver TokenResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return unauthorized(c)
		}

		identity, err := resolver.Resolve(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug().Err(err).Str("path", c.Path()).Msg("token rejected")
			return unauthorized(c)
		}

		c.Locals(LocalIdentity, identity)
		return c.Next()
	}
}

// RequireRole rejects authenticated callers whose role is not listed.
// It must run after AuthRequired.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return unauthorized(c)
		}
		for _, r := range roles {
			if identity.Role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "insufficient role",
		})
	}
}

// CurrentIdentity returns the identity stored by AuthRequired.
func CurrentIdentity(c *fiber.Ctx) (models.Identity, bool) {
	identity, ok := c.Locals(LocalIdentity).(models.Identity)
	return identity, ok
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"message": services.ErrInvalidToken.Error(),
	})
}
