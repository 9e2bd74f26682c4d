// handlers/wallet_routes.go
package handlers

import (
	"crm-backoffice/middleware"
	"crm-backoffice/models"
	"crm-backoffice/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWalletRoutes mounts wallet history, reconciliation and wallet admin.
// Every route requires a super_admin caller.
func SetupWalletRoutes(app *fiber.App, profiles *services.ProfileService, wallets *services.WalletService, exports *services.ExportService) {
	superAdmin := middleware.RequireRole(profiles, services.ErrProfileNotFound, models.RoleSuperAdmin)
	group := app.Group("/api/wallets", middleware.UserContextMiddleware(), superAdmin)

	group.Get("/:userId", wallets.ListProfileWallets)
	group.Post("/:userId", wallets.ProvisionWallet)

	group.Get("/:userId/:walletId", wallets.GetWalletTransactions)
	group.Post("/:userId/:walletId", wallets.SyncWalletTransactions)
	group.Patch("/:userId/:walletId/deactivate", wallets.DeactivateWallet)
	group.Post("/:userId/:walletId/export", exports.ExportWalletTransactions)
}
