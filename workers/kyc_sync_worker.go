// workers/kyc_sync_worker.go
package workers

import (
	"context"
	"fmt"

	"crm-backoffice/logger"
	"crm-backoffice/models"
	"crm-backoffice/services"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var finalKYCStatuses = []models.KYCStatus{
	models.KYCStatusApproved,
	models.KYCStatusRejected,
	models.KYCStatusOffboarded,
}

// KYCSyncWorker refreshes the status of profiles whose verification is
// still moving at Bridge.
type KYCSyncWorker struct {
	db        *gorm.DB
	profiles  *services.ProfileService
	batchSize int
}

func NewKYCSyncWorker(db *gorm.DB, profiles *services.ProfileService) *KYCSyncWorker {
	return &KYCSyncWorker{db: db, profiles: profiles, batchSize: 200}
}

// RunOnce refreshes pending profiles, least recently synced first. A failing
// profile is logged and skipped.
func (w *KYCSyncWorker) RunOnce(ctx context.Context) (refreshed, failed int, err error) {
	var pending []models.Profile
	if err := w.db.WithContext(ctx).
		Where("bridge_customer_id IS NOT NULL AND bridge_customer_id <> ''").
		Where("kyc_status NOT IN ?", finalKYCStatuses).
		// Never-synced profiles first; Postgres sorts NULLs last by default.
		Order("kyc_synced_at IS NOT NULL, kyc_synced_at ASC").
		Limit(w.batchSize).
		Find(&pending).Error; err != nil {
		return 0, 0, fmt.Errorf("failed to load pending profiles: %w", err)
	}

	for i := range pending {
		if ctx.Err() != nil {
			return refreshed, failed, ctx.Err()
		}
		if err := w.profiles.RefreshKYC(ctx, &pending[i]); err != nil {
			failed++
			logger.Warn(ctx, "[KYC] refresh failed",
				zap.String("profile_id", pending[i].ID),
				zap.Error(err),
			)
			continue
		}
		refreshed++
	}

	if len(pending) > 0 {
		logger.Info(ctx, "[KYC] pending profiles refreshed",
			zap.Int("refreshed", refreshed),
			zap.Int("failed", failed),
		)
	}
	return refreshed, failed, nil
}
