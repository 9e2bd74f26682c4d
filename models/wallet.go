// models/wallet.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Chain string

const (
	ChainEthereum  Chain = "ethereum"
	ChainSolana    Chain = "solana"
	ChainBase      Chain = "base"
	ChainPolygon   Chain = "polygon"
	ChainArbitrum  Chain = "arbitrum"
	ChainAvalanche Chain = "avalanche_c_chain"
	ChainOptimism  Chain = "optimism"
	ChainTron      Chain = "tron"
	ChainStellar   Chain = "stellar"
)

var supportedChains = map[Chain]bool{
	ChainEthereum: true, ChainSolana: true, ChainBase: true, ChainPolygon: true, ChainArbitrum: true,
	ChainAvalanche: true, ChainOptimism: true, ChainTron: true, ChainStellar: true,
}

func (c Chain) Valid() bool { return supportedChains[c] }

type WalletTag string

const (
	WalletTagGeneralUse  WalletTag = "general_use"
	WalletTagLiquidation WalletTag = "liquidation_address"
)

// Wallet is a Bridge custody account on one chain for one profile.
// Wallets are never hard-deleted; IsActive=false marks a deactivated one.
type Wallet struct {
	ID                string     `gorm:"primaryKey;type:uuid" json:"id"`
	ProfileID         string     `gorm:"type:uuid;not null;index" json:"profileId"`
	ExternalID        string     `gorm:"type:varchar(128);not null;uniqueIndex" json:"externalId"`
	Chain             Chain      `gorm:"type:varchar(32);not null;index" json:"chain"`
	Address           string     `gorm:"type:varchar(128);not null" json:"address"`
	Tag               WalletTag  `gorm:"type:varchar(32);not null" json:"tag"`
	IsActive          bool       `gorm:"not null" json:"isActive"`
	ProviderCreatedAt *time.Time `json:"providerCreatedAt,omitempty"`
	ProviderUpdatedAt *time.Time `json:"providerUpdatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Tag == "" {
		w.Tag = WalletTagGeneralUse
	}
	return nil
}
