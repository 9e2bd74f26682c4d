package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"crm-backoffice/logger"
	"crm-backoffice/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxExportRows = 50000

var ErrStorageDisabled = errors.New("object storage is not configured")

// ObjectStore receives rendered exports. utils.R2Storage implements it.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) (string, error)
}

type ExportService struct {
	DB    *gorm.DB
	Store ObjectStore // nil disables exports
	now   func() time.Time
}

func NewExportService(db *gorm.DB, store ObjectStore) *ExportService {
	return &ExportService{DB: db, Store: store, now: time.Now}
}

type ExportResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}

var csvHeader = []string{
	"external_id", "provider_created_at", "amount", "developer_fee", "customer_id",
	"source_payment_rail", "source_currency", "destination_payment_rail", "destination_currency",
}

// ExportWallet renders the wallet's filtered history as CSV and uploads it.
func (s *ExportService) ExportWallet(ctx context.Context, profile *models.Profile, wallet *models.Wallet, filter TransactionFilter) (*ExportResult, error) {
	if s.Store == nil {
		return nil, ErrStorageDisabled
	}

	var transactions []models.Transaction
	err := filter.Apply(s.DB.WithContext(ctx).Where("wallet_id = ?", wallet.ID)).
		Order("provider_created_at ASC").
		Limit(maxExportRows).
		Find(&transactions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	body, err := renderCSV(transactions)
	if err != nil {
		return nil, err
	}

	key := exportKey(profile, wallet, s.now())
	url, err := s.Store.Put(ctx, key, "text/csv", body)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "[EXPORT] wallet history exported",
		zap.String("wallet_id", wallet.ID),
		zap.String("key", key),
		zap.Int("rows", len(transactions)),
	)
	return &ExportResult{Key: key, URL: url, Rows: len(transactions)}, nil
}

func exportKey(profile *models.Profile, wallet *models.Wallet, at time.Time) string {
	owner := slug.Make(profile.DisplayName())
	if owner == "" {
		owner = profile.ID
	}
	return fmt.Sprintf("exports/%s/%s-%d.csv", owner, wallet.ExternalID, at.Unix())
}

func renderCSV(transactions []models.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, t := range transactions {
		fee := ""
		if t.DeveloperFee != nil {
			fee = *t.DeveloperFee
		}
		if err := w.Write([]string{
			t.ExternalID,
			t.ProviderCreatedAt.UTC().Format(time.RFC3339Nano),
			t.Amount,
			fee,
			t.CustomerID,
			t.SourcePaymentRail,
			t.SourceCurrency,
			t.DestinationPaymentRail,
			t.DestinationCurrency,
		}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to render csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportWalletTransactions handles POST /api/wallets/:userId/:walletId/export.
func (s *ExportService) ExportWalletTransactions(c *fiber.Ctx) error {
	if s.Store == nil {
		return fail(c, fiber.StatusServiceUnavailable, "exports are disabled", ErrStorageDisabled)
	}
	db := s.DB.WithContext(c.UserContext())

	wallet, err := OwnedWallet(db, c.Params("userId"), c.Params("walletId"))
	if err != nil {
		return walletError(c, err)
	}
	var profile models.Profile
	if err := db.Where("id = ?", wallet.ProfileID).First(&profile).Error; err != nil {
		return fail(c, fiber.StatusInternalServerError, "failed to load profile", err)
	}

	filter, err := ParseTransactionFilter(filterParams(c))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid filter", err)
	}

	res, err := s.ExportWallet(c.UserContext(), &profile, wallet, filter)
	if err != nil {
		return fail(c, fiber.StatusInternalServerError, "export failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": res})
}
