// workers/wallet_discovery_worker.go
package workers

import (
	"context"
	"fmt"

	"crm-backoffice/logger"
	"crm-backoffice/models"
	"crm-backoffice/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DiscoveryStats struct {
	Seen     int `json:"seen"`
	Inserted int `json:"inserted"`
	Orphaned int `json:"orphaned"` // customer id not linked to any profile
}

// WalletDiscoveryWorker mirrors Bridge wallets that were created outside this
// service into the local wallets table. Existing rows are left untouched.
type WalletDiscoveryWorker struct {
	db       *gorm.DB
	provider services.WalletProvider
}

func NewWalletDiscoveryWorker(db *gorm.DB, provider services.WalletProvider) *WalletDiscoveryWorker {
	return &WalletDiscoveryWorker{db: db, provider: provider}
}

func (w *WalletDiscoveryWorker) RunOnce(ctx context.Context) (DiscoveryStats, error) {
	var stats DiscoveryStats

	remote, err := w.provider.ListWallets(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list bridge wallets: %w", err)
	}
	stats.Seen = len(remote)
	if len(remote) == 0 {
		logger.Info(ctx, "[DISCOVERY] no bridge wallets")
		return stats, nil
	}

	customerIDs := make([]string, 0, len(remote))
	for _, rw := range remote {
		if rw.CustomerID != "" {
			customerIDs = append(customerIDs, rw.CustomerID)
		}
	}

	var profiles []models.Profile
	if len(customerIDs) > 0 {
		if err := w.db.WithContext(ctx).
			Select("id", "bridge_customer_id").
			Where("bridge_customer_id IN ?", customerIDs).
			Find(&profiles).Error; err != nil {
			return stats, fmt.Errorf("failed to resolve customers: %w", err)
		}
	}
	owners := make(map[string]string, len(profiles))
	for _, p := range profiles {
		if p.BridgeCustomerID != nil {
			owners[*p.BridgeCustomerID] = p.ID
		}
	}

	for _, rw := range remote {
		profileID, ok := owners[rw.CustomerID]
		if !ok {
			stats.Orphaned++
			continue
		}
		wallet := services.WalletFromProvider(profileID, rw)
		res := w.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(&wallet)
		if res.Error != nil {
			logger.Error(ctx, "[DISCOVERY] failed to insert wallet",
				zap.String("external_id", rw.ID),
				zap.Error(res.Error),
			)
			continue
		}
		if res.RowsAffected > 0 {
			stats.Inserted++
		}
	}

	logger.Info(ctx, "[DISCOVERY] bridge wallets mirrored",
		zap.Int("seen", stats.Seen),
		zap.Int("inserted", stats.Inserted),
		zap.Int("orphaned", stats.Orphaned),
	)
	return stats, nil
}
