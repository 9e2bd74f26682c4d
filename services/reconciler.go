package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/lock"
	"crm-backoffice/logger"
	"crm-backoffice/metrics"
	"crm-backoffice/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	historyPageSize = 100
	defaultLockWait = 10 * time.Second
)

var (
	ErrSyncInProgress = errors.New("a sync for this wallet is already running")
	ErrWalletNotFound = errors.New("wallet not found")
)

// LedgerClient is the part of the Bridge client reconciliation needs.
type LedgerClient interface {
	GetWalletHistory(ctx context.Context, walletID string, limit int, updatedAfterMs *int64) (*bridge.HistoryResponse, error)
}

type SyncResult struct {
	TransactionsFound    int        `json:"transactionsFound"`
	NewTransactionsFound int        `json:"newTransactionsFound"`
	LastTransactionAt    *time.Time `json:"lastTransactionAt"`
}

// Reconciler pulls wallet history from Bridge into the local ledger.
// At most one run per wallet is in flight at a time.
type Reconciler struct {
	DB       *gorm.DB
	Ledger   LedgerClient
	Locker   lock.Locker
	LockWait time.Duration
}

func NewReconciler(db *gorm.DB, ledger LedgerClient, locker lock.Locker) *Reconciler {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Reconciler{DB: db, Ledger: ledger, Locker: locker, LockWait: defaultLockWait}
}

// SyncWallet runs one reconciliation for wallet. A failed run still leaves an
// error entry in the sync ledger, and the original error is returned.
func (r *Reconciler) SyncWallet(ctx context.Context, wallet *models.Wallet) (*SyncResult, error) {
	// The run finishes even if the caller goes away; only the lock wait honours ctx.
	runCtx := context.WithoutCancel(ctx)

	lockCtx, cancel := context.WithTimeout(ctx, r.LockWait)
	defer cancel()
	unlock, err := r.Locker.Lock(lockCtx, "wallet-sync:"+wallet.ID)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues("busy").Inc()
		if errors.Is(err, lock.ErrLocked) {
			logger.Warn(ctx, "[SYNC] wallet busy", zap.String("wallet_id", wallet.ID))
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	defer unlock()

	started := time.Now()
	defer func() { metrics.SyncDuration.Observe(time.Since(started).Seconds()) }()

	prev, err := LatestWatermark(r.DB.WithContext(runCtx), wallet.ID)
	if err != nil {
		err = fmt.Errorf("failed to read sync watermark: %w", err)
		r.recordFailure(runCtx, wallet, nil, err)
		return nil, err
	}

	result, err := r.run(runCtx, wallet, prev)
	if err != nil {
		r.recordFailure(runCtx, wallet, prev, err)
		return nil, err
	}

	entry := &models.TransactionSync{
		WalletID:             wallet.ID,
		TransactionsFound:    result.TransactionsFound,
		NewTransactionsFound: result.NewTransactionsFound,
		Status:               models.SyncStatusSuccess,
		LastTransactionAt:    result.LastTransactionAt,
	}
	if err := appendSync(r.DB.WithContext(runCtx), entry); err != nil {
		err = fmt.Errorf("failed to write sync ledger: %w", err)
		r.recordFailure(runCtx, wallet, prev, err)
		return nil, err
	}

	metrics.SyncRunsTotal.WithLabelValues(string(models.SyncStatusSuccess)).Inc()
	metrics.SyncNewTransactionsTotal.Add(float64(result.NewTransactionsFound))
	logger.Info(ctx, "[SYNC] wallet reconciled",
		zap.String("wallet_id", wallet.ID),
		zap.String("external_id", wallet.ExternalID),
		zap.Int("found", result.TransactionsFound),
		zap.Int("new", result.NewTransactionsFound),
		zap.Duration("took", time.Since(started)),
	)
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, wallet *models.Wallet, prev *time.Time) (*SyncResult, error) {
	var updatedAfter *int64
	if prev != nil {
		ms := prev.UnixMilli()
		updatedAfter = &ms
	}

	history, err := r.Ledger.GetWalletHistory(ctx, wallet.ExternalID, historyPageSize, updatedAfter)
	if err != nil {
		return nil, err
	}

	if history.Count > len(history.Data) {
		// Only one page is read per run; if Bridge lists newest first the
		// watermark skips past the remainder.
		logger.Warn(ctx, "[SYNC] history truncated to one page",
			zap.String("wallet_id", wallet.ID),
			zap.Int("count", history.Count),
			zap.Int("received", len(history.Data)),
		)
	}

	result := &SyncResult{TransactionsFound: len(history.Data), LastTransactionAt: prev}
	db := r.DB.WithContext(ctx)

	for _, rec := range history.Data {
		createdAt, err := parseProviderTime(rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", rec.CreatedAt, err)
		}
		if result.LastTransactionAt == nil || createdAt.After(*result.LastTransactionAt) {
			ts := createdAt
			result.LastTransactionAt = &ts
		}

		externalID := DeriveTransactionID(wallet.ExternalID, rec.CreatedAt, rec.Amount)
		var existing int64
		if err := db.Model(&models.Transaction{}).Where("external_id = ?", externalID).Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to look up transaction %s: %w", externalID, err)
		}
		if existing > 0 {
			continue
		}

		tx, err := MapTransaction(wallet.ExternalID, wallet.ID, rec)
		if err != nil {
			return nil, err
		}
		// A concurrent writer on another instance may have inserted it since the lookup.
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			DoNothing: true,
		}).Create(&tx)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to insert transaction %s: %w", externalID, res.Error)
		}
		if res.RowsAffected > 0 {
			result.NewTransactionsFound++
		}
	}
	return result, nil
}

// recordFailure appends an error entry that carries the previous watermark.
// A failure to write it is logged and otherwise ignored.
func (r *Reconciler) recordFailure(ctx context.Context, wallet *models.Wallet, prev *time.Time, cause error) {
	metrics.SyncRunsTotal.WithLabelValues(string(models.SyncStatusError)).Inc()
	logger.Error(ctx, "[SYNC] wallet reconciliation failed",
		zap.String("wallet_id", wallet.ID),
		zap.String("external_id", wallet.ExternalID),
		zap.Error(cause),
	)

	msg := cause.Error()
	entry := &models.TransactionSync{
		WalletID:          wallet.ID,
		Status:            models.SyncStatusError,
		ErrorMessage:      &msg,
		LastTransactionAt: prev,
	}
	if err := appendSync(r.DB.WithContext(ctx), entry); err != nil {
		logger.Error(ctx, "[SYNC] failed to record sync error",
			zap.String("wallet_id", wallet.ID),
			zap.Error(err),
		)
	}
}

// FindWallet resolves a wallet by local id or Bridge wallet id.
func FindWallet(db *gorm.DB, id string) (*models.Wallet, error) {
	var w models.Wallet
	q := db.Where("external_id = ?", id)
	if isUUID(id) {
		q = db.Where("id = ? OR external_id = ?", id, id)
	}
	err := q.First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
