package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"crm-backoffice/bridge"
	"crm-backoffice/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedWallet(t *testing.T, db *gorm.DB) (*models.Profile, *models.Wallet) {
	t.Helper()
	first, last := "Ada", "Lovelace"
	profile := &models.Profile{Email: "ada@example.com", FirstName: &first, LastName: &last, Role: models.RoleUser}
	require.NoError(t, db.Create(profile).Error)

	wallet := &models.Wallet{
		ProfileID:  profile.ID,
		ExternalID: "wal_123",
		Chain:      models.ChainSolana,
		Address:    "So1anaAddr",
		IsActive:   true,
	}
	require.NoError(t, db.Create(wallet).Error)
	return profile, wallet
}

// record builds a history record the way the client decodes one, raw bytes included.
func record(t *testing.T, createdAt, amount string) bridge.Transaction {
	t.Helper()
	payload := fmt.Sprintf(`{
		"amount":%q,"customer_id":"cus_1",
		"source":{"payment_rail":"ach","currency":"usd"},
		"destination":{"payment_rail":"solana","currency":"usdc"},
		"created_at":%q,"updated_at":%q}`, amount, createdAt, createdAt)
	var rec bridge.Transaction
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))
	return rec
}

type historyCall struct {
	walletID     string
	limit        int
	updatedAfter *int64
}

// fakeLedger serves a fixed batch and records every call.
type fakeLedger struct {
	mu    sync.Mutex
	batch []bridge.Transaction
	err   error
	calls []historyCall
}

func (f *fakeLedger) set(batch ...bridge.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batch = batch
}

func (f *fakeLedger) GetWalletHistory(_ context.Context, walletID string, limit int, updatedAfterMs *int64) (*bridge.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, historyCall{walletID: walletID, limit: limit, updatedAfter: updatedAfterMs})
	if f.err != nil {
		return nil, f.err
	}
	data := append([]bridge.Transaction{}, f.batch...)
	return &bridge.HistoryResponse{Count: len(data), Data: data}, nil
}

func (f *fakeLedger) lastCall() historyCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func countTransactions(t *testing.T, db *gorm.DB, walletID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("wallet_id = ?", walletID).Count(&n).Error)
	return n
}

func syncEntries(t *testing.T, db *gorm.DB, walletID string) []models.TransactionSync {
	t.Helper()
	var entries []models.TransactionSync
	require.NoError(t, db.Where("wallet_id = ?", walletID).Order("synced_at ASC").Find(&entries).Error)
	return entries
}
