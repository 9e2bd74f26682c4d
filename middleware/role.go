package middleware

import (
	"context"
	"errors"

	"crm-backoffice/logger"
	"crm-backoffice/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProfileLookup resolves the caller's profile, typically through the profile cache.
type ProfileLookup interface {
	Lookup(ctx context.Context, id string) (*models.Profile, error)
}

// RequireRole admits callers whose stored profile role is one of roles.
// The role comes from the profile record, not from gateway headers.
func RequireRole(profiles ProfileLookup, notFound error, roles ...models.Role) fiber.Handler {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		profile, err := profiles.Lookup(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, notFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"success": false,
					"error":   "unknown caller",
				})
			}
			logger.Error(c.UserContext(), "[AUTH] caller lookup failed", zap.String("user_id", userID), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "failed to resolve caller",
				"details": err.Error(),
			})
		}

		if !allowed[profile.Role] {
			logger.Warn(c.UserContext(), "[AUTH] role denied",
				zap.String("user_id", userID),
				zap.String("role", string(profile.Role)),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "insufficient permissions",
			})
		}

		c.Locals(LocalProfile, profile)
		return c.Next()
	}
}
