package services

import (
	"errors"

	"crm-backoffice/bridge"

	"github.com/gofiber/fiber/v2"
)

func fail(c *fiber.Ctx, status int, msg string, err error) error {
	body := fiber.Map{"success": false, "error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

// providerFailure maps Bridge client errors onto HTTP statuses.
func providerFailure(c *fiber.Ctx, msg string, err error) error {
	if errors.Is(err, bridge.ErrNotConfigured) {
		return fail(c, fiber.StatusServiceUnavailable, msg, err)
	}
	var pe *bridge.ProviderError
	if errors.As(err, &pe) && !pe.Retryable() {
		body := fiber.Map{"success": false, "error": msg, "details": err.Error(), "provider": pe.Body}
		return c.Status(fiber.StatusBadGateway).JSON(body)
	}
	return fail(c, fiber.StatusInternalServerError, msg, err)
}
