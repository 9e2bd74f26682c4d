package middleware

import (
	"strings"

	"crm-backoffice/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
	LocalProfile   = "profile"
)

// UserContextMiddleware extracts the caller identity set by the Gateway.
// Routes that need a caller enforce it with RequireRole.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)

		logger.Debug(c.UserContext(), "[USER_CTX] caller",
			zap.String("user_id", userID),
			zap.Strings("roles", roles),
			zap.String("path", c.Path()),
		)
		return c.Next()
	}
}

// UserID returns the caller id stored by UserContextMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
