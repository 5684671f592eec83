package middleware

import (
	"strings"

	"go-factory-ops/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// ActorContext extracts the optional actor identity from a bearer token and
// stores it in the request context for the audit trail. A missing or invalid
// token never blocks the request; the service records the "unknown" sentinel
// instead.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Next()
		}

		claims, err := jwt.ValidateToken(parts[1])
		if err != nil {
			return c.Next()
		}

		c.Locals("actor_id", claims.ActorID)
		c.Locals("actor_name", claims.Name)
		return c.Next()
	}
}
