// models/transaction_sync.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusError   SyncStatus = "error"
)

// TransactionSync is one reconciliation attempt for a wallet. Append-only.
// LastTransactionAt is the watermark: the newest provider created_at seen so far.
type TransactionSync struct {
	ID                   string     `gorm:"primaryKey;type:uuid" json:"id"`
	WalletID             string     `gorm:"type:uuid;not null;index:idx_tx_sync_wallet_time,priority:1" json:"walletId"`
	SyncedAt             time.Time  `gorm:"not null;index:idx_tx_sync_wallet_time,priority:2" json:"syncedAt"`
	TransactionsFound    int        `gorm:"not null" json:"transactionsFound"`
	NewTransactionsFound int        `gorm:"not null" json:"newTransactionsFound"`
	Status               SyncStatus `gorm:"type:varchar(16);not null" json:"status"`
	ErrorMessage         *string    `gorm:"type:text" json:"errorMessage,omitempty"`
	LastTransactionAt    *time.Time `json:"lastTransactionAt,omitempty"`
}

func (s *TransactionSync) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// All lists every model owned by this service, in migration order.
func All() []interface{} {
	return []interface{}{
		&Profile{},
		&Wallet{},
		&Transaction{},
		&TransactionSync{},
	}
}
