package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/logger"
	"crm-backoffice/models"
	"crm-backoffice/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// WalletProvider is the Bridge wallet API.
type WalletProvider interface {
	CreateWallet(ctx context.Context, customerID, chain string) (*bridge.Wallet, error)
	ListWallets(ctx context.Context) ([]bridge.Wallet, error)
}

type WalletService struct {
	DB         *gorm.DB
	Reconciler *Reconciler
	Provider   WalletProvider
}

func NewWalletService(db *gorm.DB, reconciler *Reconciler, provider WalletProvider) *WalletService {
	return &WalletService{DB: db, Reconciler: reconciler, Provider: provider}
}

// OwnedWallet loads a wallet and checks it belongs to the profile.
func OwnedWallet(db *gorm.DB, profileID, walletID string) (*models.Wallet, error) {
	w, err := FindWallet(db, walletID)
	if err != nil {
		return nil, err
	}
	if w.ProfileID != profileID {
		return nil, ErrWalletNotFound
	}
	return w, nil
}

func filterParams(c *fiber.Ctx) FilterParams {
	return FilterParams{
		DateFrom:    c.Query("dateFrom"),
		DateTo:      c.Query("dateTo"),
		MinAmount:   c.Query("minAmount"),
		MaxAmount:   c.Query("maxAmount"),
		Currency:    c.Query("currency"),
		PaymentRail: c.Query("paymentRail"),
	}
}

// GetWalletTransactions handles GET /api/wallets/:userId/:walletId.
func (s *WalletService) GetWalletTransactions(c *fiber.Ctx) error {
	db := s.DB.WithContext(c.UserContext())

	wallet, err := OwnedWallet(db, c.Params("userId"), c.Params("walletId"))
	if err != nil {
		return walletError(c, err)
	}

	page, err := utils.ParsePagination(c.Query("page"), c.Query("limit"), defaultPageLimit, maxPageLimit)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid pagination", err)
	}
	filter, err := ParseTransactionFilter(filterParams(c))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid filter", err)
	}

	query := filter.Apply(db.Model(&models.Transaction{}).Where("wallet_id = ?", wallet.ID))

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to count transactions", err)
	}
	page.SetTotal(total)

	transactions := []models.Transaction{}
	if err := utils.ApplyPagination(query.Session(&gorm.Session{}), page).
		Order("provider_created_at DESC").
		Find(&transactions).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to load transactions", err)
	}

	lastSync, err := LatestSync(db, wallet.ID)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to load sync status", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"wallet":       wallet,
			"transactions": transactions,
			"pagination":   page,
			"lastSync":     lastSync,
		},
	})
}

// SyncWalletTransactions handles POST /api/wallets/:userId/:walletId. The
// reconciliation runs inside the request.
func (s *WalletService) SyncWalletTransactions(c *fiber.Ctx) error {
	wallet, err := OwnedWallet(s.DB.WithContext(c.UserContext()), c.Params("userId"), c.Params("walletId"))
	if err != nil {
		return walletError(c, err)
	}

	result, err := s.Reconciler.SyncWallet(c.UserContext(), wallet)
	if errors.Is(err, ErrSyncInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "A sync for this wallet is already running",
			"details": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Failed to sync transactions: " + err.Error(),
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
		"message": fmt.Sprintf("Synced %d transactions (%d new)", result.TransactionsFound, result.NewTransactionsFound),
	})
}

type walletSummary struct {
	models.Wallet
	LastSync *models.TransactionSync `json:"lastSync"`
}

// ListProfileWallets handles GET /api/wallets/:userId.
func (s *WalletService) ListProfileWallets(c *fiber.Ctx) error {
	db := s.DB.WithContext(c.UserContext())
	userID := c.Params("userId")

	if err := requireProfile(db, userID); err != nil {
		return walletError(c, err)
	}

	var wallets []models.Wallet
	if err := db.Where("profile_id = ?", userID).Order("created_at ASC").Find(&wallets).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to load wallets", err)
	}

	out := make([]walletSummary, 0, len(wallets))
	for _, w := range wallets {
		last, err := LatestSync(db, w.ID)
		if err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to load sync status", err)
		}
		out = append(out, walletSummary{Wallet: w, LastSync: last})
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

// ProvisionWallet handles POST /api/wallets/:userId.
func (s *WalletService) ProvisionWallet(c *fiber.Ctx) error {
	var body struct {
		Chain string `json:"chain"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body", err)
	}
	chain := models.Chain(body.Chain)
	if !chain.Valid() {
		return fail(c, fiber.StatusBadRequest, "unsupported chain", fmt.Errorf("chain %q", body.Chain))
	}

	db := s.DB.WithContext(c.UserContext())
	if !isUUID(c.Params("userId")) {
		return walletError(c, ErrProfileNotFound)
	}
	var profile models.Profile
	if err := db.Where("id = ?", c.Params("userId")).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return walletError(c, ErrProfileNotFound)
		}
		return fail(c, fiber.StatusInternalServerError, "failed to load profile", err)
	}
	if profile.BridgeCustomerID == nil || *profile.BridgeCustomerID == "" {
		return fail(c, fiber.StatusUnprocessableEntity, "profile has no bridge customer", ErrNoBridgeCustomer)
	}

	remote, err := s.Provider.CreateWallet(c.UserContext(), *profile.BridgeCustomerID, string(chain))
	if err != nil {
		return providerFailure(c, "failed to create wallet at bridge", err)
	}

	wallet := WalletFromProvider(profile.ID, *remote)
	if err := db.Create(&wallet).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to store wallet", err)
	}

	logger.Info(c.UserContext(), "[WALLET] provisioned",
		zap.String("profile_id", profile.ID),
		zap.String("external_id", wallet.ExternalID),
		zap.String("chain", string(wallet.Chain)),
	)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": wallet})
}

// DeactivateWallet handles PATCH /api/wallets/:userId/:walletId/deactivate.
func (s *WalletService) DeactivateWallet(c *fiber.Ctx) error {
	db := s.DB.WithContext(c.UserContext())
	wallet, err := OwnedWallet(db, c.Params("userId"), c.Params("walletId"))
	if err != nil {
		return walletError(c, err)
	}

	if wallet.IsActive {
		if err := db.Model(wallet).Update("is_active", false).Error; err != nil {
			return fail(c, fiber.StatusInternalServerError, "failed to deactivate wallet", err)
		}
		wallet.IsActive = false
		logger.Info(c.UserContext(), "[WALLET] deactivated", zap.String("wallet_id", wallet.ID))
	}
	return c.JSON(fiber.Map{"success": true, "data": wallet})
}

// WalletFromProvider maps a Bridge wallet onto a new local row.
func WalletFromProvider(profileID string, remote bridge.Wallet) models.Wallet {
	w := models.Wallet{
		ProfileID:  profileID,
		ExternalID: remote.ID,
		Chain:      models.Chain(remote.Chain),
		Address:    remote.Address,
		Tag:        models.WalletTagGeneralUse,
		IsActive:   true,
	}
	for _, tag := range remote.Tags {
		if models.WalletTag(tag) == models.WalletTagLiquidation {
			w.Tag = models.WalletTagLiquidation
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, remote.CreatedAt); err == nil {
		t = t.UTC()
		w.ProviderCreatedAt = &t
	}
	if t, err := time.Parse(time.RFC3339Nano, remote.UpdatedAt); err == nil {
		t = t.UTC()
		w.ProviderUpdatedAt = &t
	}
	return w
}

// isUUID guards primary-key lookups; Postgres rejects malformed uuids with an error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func requireProfile(db *gorm.DB, id string) error {
	if !isUUID(id) {
		return ErrProfileNotFound
	}
	var n int64
	if err := db.Model(&models.Profile{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func walletError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrWalletNotFound):
		return fail(c, fiber.StatusNotFound, "wallet not found for this user", err)
	case errors.Is(err, ErrProfileNotFound):
		return fail(c, fiber.StatusNotFound, "profile not found", err)
	}
	return fail(c, fiber.StatusInternalServerError, "failed to load wallet", err)
}
