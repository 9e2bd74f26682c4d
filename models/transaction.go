// models/transaction.go
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RawJSON is provider JSON kept verbatim; it is emitted unquoted in API responses.
type RawJSON string

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == "" || !json.Valid([]byte(r)) {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// Transaction is one ledger movement on a wallet. Rows are written only by
// reconciliation and never updated; ExternalID is the de-duplication key.
type Transaction struct {
	ID                     string     `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalID             string     `gorm:"type:varchar(255);not null;uniqueIndex" json:"externalId"`
	WalletID               string     `gorm:"type:uuid;not null;index" json:"walletId"`
	Amount                 string     `gorm:"type:varchar(64);not null" json:"amount"`
	DeveloperFee           *string    `gorm:"type:varchar(64)" json:"developerFee,omitempty"`
	CustomerID             string     `gorm:"type:varchar(128);index" json:"customerId"`
	SourcePaymentRail      string     `gorm:"type:varchar(32)" json:"sourcePaymentRail"`
	SourceCurrency         string     `gorm:"type:varchar(16)" json:"sourceCurrency"`
	DestinationPaymentRail string     `gorm:"type:varchar(32)" json:"destinationPaymentRail"`
	DestinationCurrency    string     `gorm:"type:varchar(16)" json:"destinationCurrency"`
	ProviderCreatedAt      time.Time  `gorm:"not null;index" json:"providerCreatedAt"`
	ProviderUpdatedAt      *time.Time `json:"providerUpdatedAt,omitempty"`
	RawPayload             RawJSON    `gorm:"type:text" json:"rawPayload"`
	CreatedAt              time.Time  `json:"createdAt"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
