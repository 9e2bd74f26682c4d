// handlers/profile_routes.go
package handlers

import (
	"crm-backoffice/middleware"
	"crm-backoffice/models"
	"crm-backoffice/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, profiles *services.ProfileService) {
	admins := middleware.RequireRole(profiles, services.ErrProfileNotFound, models.RoleAdmin, models.RoleSuperAdmin)
	group := app.Group("/api/profiles", middleware.UserContextMiddleware(), admins)

	group.Get("/:userId", profiles.GetProfile)
	group.Post("/:userId/bridge-customer", profiles.CreateBridgeCustomer)
	group.Post("/:userId/kyc/refresh", profiles.RefreshProfileKYC)
}

func SetupAnalyticsRoutes(app *fiber.App, profiles *services.ProfileService, analytics *services.AnalyticsService) {
	admins := middleware.RequireRole(profiles, services.ErrProfileNotFound, models.RoleAdmin, models.RoleSuperAdmin)
	group := app.Group("/api/analytics", middleware.UserContextMiddleware(), admins)

	group.Get("/billing", analytics.GetBillingAnalytics)
}
