package middleware

import (
	"time"

	fiber "github.com/gofiber/fiber/v2"

	log "github.com/shaggydog-ai/shaggydog/internal/logger"
)

// Logger returns a middleware that logs HTTP requests. Rejections and
// failures are logged at elevated levels so operators can filter for them,
// and authenticated requests carry the acting user's ID.
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		fields := map[string]interface{}{
			"method":   c.Method(),
			"path":     c.Path(),
			"route":    c.Route().Name,
			"status":   status,
			"duration": time.Since(start).String(),
			"ip":       c.IP(),
		}
		// Set by the auth middleware; zero on unauthenticated routes
		if ownerID := OwnerID(c); ownerID != 0 {
			fields["owner_id"] = ownerID
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			log.ErrorWithFields("Request failed", fields)
		case status >= fiber.StatusBadRequest:
			log.WarnWithFields("Request rejected", fields)
		default:
			log.InfoWithFields("Request", fields)
		}

		return err
	}
}
