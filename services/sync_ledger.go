package services

import (
	"errors"
	"time"

	"crm-backoffice/models"

	"gorm.io/gorm"
)

// LatestSync returns the most recent ledger entry for a wallet, or nil if the
// wallet was never synced.
func LatestSync(db *gorm.DB, walletID string) (*models.TransactionSync, error) {
	var entry models.TransactionSync
	err := db.Where("wallet_id = ?", walletID).
		Order("synced_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// LatestWatermark returns the watermark of the most recent successful entry
// that recorded one.
func LatestWatermark(db *gorm.DB, walletID string) (*time.Time, error) {
	var entry models.TransactionSync
	err := db.Where("wallet_id = ? AND status = ? AND last_transaction_at IS NOT NULL", walletID, models.SyncStatusSuccess).
		Order("synced_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry.LastTransactionAt, nil
}

// appendSync writes one ledger entry. Entries are never updated.
func appendSync(db *gorm.DB, entry *models.TransactionSync) error {
	if entry.SyncedAt.IsZero() {
		entry.SyncedAt = time.Now().UTC()
	}
	return db.Create(entry).Error
}
