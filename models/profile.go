// models/profile.go
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin" // highest administrative role
)

// KYCStatus mirrors the Bridge customer status.
type KYCStatus string

const (
	KYCStatusNotStarted  KYCStatus = "not_started"
	KYCStatusIncomplete  KYCStatus = "incomplete"
	KYCStatusUnderReview KYCStatus = "under_review"
	KYCStatusAwaitingUBO KYCStatus = "awaiting_ubo"
	KYCStatusPaused      KYCStatus = "paused"
	KYCStatusApproved    KYCStatus = "active"
	KYCStatusRejected    KYCStatus = "rejected"
	KYCStatusOffboarded  KYCStatus = "offboarded"
)

// IsFinal reports whether the provider will not move the status on its own.
func (s KYCStatus) IsFinal() bool {
	switch s {
	case KYCStatusApproved, KYCStatusRejected, KYCStatusOffboarded:
		return true
	}
	return false
}

const (
	KYCTypeIndividual = "individual"
	KYCTypeBusiness   = "business" // KYB
)

// Profile is a platform user as seen by the back office.
type Profile struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	FirstName        *string    `json:"firstName,omitempty"`
	LastName         *string    `json:"lastName,omitempty"`
	BusinessName     *string    `json:"businessName,omitempty"`
	Role             Role       `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	BridgeCustomerID *string    `gorm:"type:varchar(128);uniqueIndex" json:"bridgeCustomerId,omitempty"`
	KYCStatus        KYCStatus  `gorm:"type:varchar(32);not null;default:'not_started'" json:"kycStatus"`
	KYCType          string     `gorm:"type:varchar(16);not null;default:'individual'" json:"kycType"`
	KYCSyncedAt      *time.Time `json:"kycSyncedAt,omitempty"`

	Wallets []Wallet `gorm:"foreignKey:ProfileID" json:"wallets,omitempty"`

	Timestamps
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DisplayName prefers the business name, then the person's name, then email.
func (p *Profile) DisplayName() string {
	if p.BusinessName != nil && strings.TrimSpace(*p.BusinessName) != "" {
		return strings.TrimSpace(*p.BusinessName)
	}
	var parts []string
	if p.FirstName != nil && *p.FirstName != "" {
		parts = append(parts, *p.FirstName)
	}
	if p.LastName != nil && *p.LastName != "" {
		parts = append(parts, *p.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return p.Email
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updatedAt" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
