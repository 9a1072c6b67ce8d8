// Package middleware provides HTTP middleware for the v1 API
package middleware

import (
	"strings"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/shaggydog-ai/shaggydog/internal/services"
)

// ownerIDKey is the fiber locals key holding the authenticated user's ID
const ownerIDKey = "owner_id"

// OwnerID returns the authenticated user's ID, or 0 when the request did not
// pass the auth middleware.
func OwnerID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(ownerIDKey).(uint); ok {
		return id
	}
	return 0
}

// RequireAuth returns a middleware that resolves the bearer token to a user
// and stores the owner ID in the request locals.
func RequireAuth(users *services.User) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or malformed bearer token",
			})
		}

		user, err := users.GetByToken(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid token",
			})
		}

		c.Locals(ownerIDKey, user.ID)
		return c.Next()
	}
}
