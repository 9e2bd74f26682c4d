package middleware

import (
	"crm-backoffice/logger"

	"github.com/gofiber/fiber/v2"
)

// RequestContext copies the request id set by fiber's requestid middleware
// into the user context so service logs carry it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals("requestid").(string); ok && id != "" {
			c.SetUserContext(logger.WithRequestID(c.UserContext(), id))
		}
		return c.Next()
	}
}
