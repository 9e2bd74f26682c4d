package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-backoffice/bridge"
	"crm-backoffice/cache"
	"crm-backoffice/config"
	"crm-backoffice/lock"
	"crm-backoffice/logger"
	"crm-backoffice/models"
	"crm-backoffice/services"
	"crm-backoffice/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// syncLockTTL bounds how long a crashed instance can keep a wallet locked.
const syncLockTTL = 5 * time.Minute

// deps is everything the commands share.
type deps struct {
	cfg      *config.Config
	db       *gorm.DB
	bridge   *bridge.Client
	profiles cache.ProfileCache
	locker   lock.Locker
	redis    *redis.Client
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.Join(config.ErrMissingRequired, errors.New("DATABASE_URL"))
	}
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func newDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	d := &deps{
		cfg: cfg,
		db:  db,
		bridge: bridge.New(bridge.Options{
			BaseURL:   cfg.Bridge.BaseURL,
			APIKey:    cfg.Bridge.APIKey,
			RateLimit: cfg.Bridge.RateLimit,
		}),
	}
	if !d.bridge.Configured() {
		logger.Warn(ctx, "[BRIDGE] BRIDGE_API_KEY not set, wallet history reads return no data")
	}

	if cfg.Redis.URL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		d.redis = rdb
		d.profiles = cache.NewRedisCache(rdb, cfg.ProfileCacheTTL)
		d.locker = lock.NewRedisLocker(rdb, syncLockTTL)
		logger.Info(ctx, "[BOOT] using redis for profile cache and sync locks")
	} else {
		d.profiles = cache.NewMemoryCache(cfg.ProfileCacheTTL)
		d.locker = lock.NewKeyedMutex()
	}
	return d, nil
}

func (d *deps) objectStore(ctx context.Context) services.ObjectStore {
	if !d.cfg.R2.Enabled() {
		logger.Warn(ctx, "[BOOT] R2 not configured, exports disabled")
		return nil
	}
	store, err := utils.NewR2Storage(ctx, d.cfg.R2, "")
	if err != nil {
		logger.Error(ctx, "[BOOT] R2 init failed, exports disabled", zap.Error(err))
		return nil
	}
	return store
}

func (d *deps) reconciler() *services.Reconciler {
	return services.NewReconciler(d.db, d.bridge, d.locker)
}

func (d *deps) close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if sqlDB, err := d.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
