package services

import (
	"fmt"
	"strings"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/models"

	"github.com/shopspring/decimal"
)

// DeriveTransactionID builds the local de-dup key for a Bridge history record.
// Bridge exposes no id for these records, so two genuine transactions on one
// wallet with the same created_at and amount collapse into one row.
func DeriveTransactionID(providerWalletID, providerCreatedAt, amount string) string {
	return providerWalletID + "_" + providerCreatedAt + "_" + amount
}

// parseProviderTime accepts the ISO forms Bridge emits.
func parseProviderTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// MapTransaction converts a Bridge history record into a local transaction row.
func MapTransaction(providerWalletID, localWalletID string, rec bridge.Transaction) (models.Transaction, error) {
	if strings.TrimSpace(rec.CreatedAt) == "" {
		return models.Transaction{}, fmt.Errorf("transaction on wallet %s has no created_at", providerWalletID)
	}
	createdAt, err := parseProviderTime(rec.CreatedAt)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid created_at %q: %w", rec.CreatedAt, err)
	}
	if _, err := decimal.NewFromString(rec.Amount); err != nil {
		return models.Transaction{}, fmt.Errorf("invalid amount %q: %w", rec.Amount, err)
	}

	tx := models.Transaction{
		ExternalID:             DeriveTransactionID(providerWalletID, rec.CreatedAt, rec.Amount),
		WalletID:               localWalletID,
		Amount:                 rec.Amount,
		DeveloperFee:           rec.DeveloperFee,
		CustomerID:             rec.CustomerID,
		SourcePaymentRail:      rec.Source.PaymentRail,
		SourceCurrency:         rec.Source.Currency,
		DestinationPaymentRail: rec.Destination.PaymentRail,
		DestinationCurrency:    rec.Destination.Currency,
		ProviderCreatedAt:      createdAt,
		RawPayload:             models.RawJSON(rec.Raw),
	}

	if rec.UpdatedAt != "" {
		updatedAt, err := parseProviderTime(rec.UpdatedAt)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("invalid updated_at %q: %w", rec.UpdatedAt, err)
		}
		tx.ProviderUpdatedAt = &updatedAt
	}
	return tx, nil
}
