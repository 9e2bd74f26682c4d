// workers/scheduler.go
package workers

import (
	"context"
	"time"

	"crm-backoffice/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Purger is implemented by caches that keep expired entries around.
type Purger interface {
	Purge() int
}

type SchedulerConfig struct {
	WalletDiscoveryInterval time.Duration
	KYCSyncInterval         time.Duration
	CachePurgeInterval      time.Duration
}

// Scheduler runs the background maintenance jobs. A zero interval, or a nil
// worker, leaves that job out. Wallet reconciliation is never scheduled here.
type Scheduler struct {
	sched gocron.Scheduler
}

func NewScheduler(cfg SchedulerConfig, discovery *WalletDiscoveryWorker, kyc *KYCSyncWorker, purger Purger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	add := func(name string, every time.Duration, fn func(ctx context.Context)) error {
		if every <= 0 {
			return nil
		}
		_, err := sched.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), every)
				defer cancel()
				fn(ctx)
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err == nil {
			logger.Info(context.Background(), "[Scheduler] job registered", zap.String("job", name), zap.Duration("every", every))
		}
		return err
	}

	if discovery != nil {
		if err := add("wallet-discovery", cfg.WalletDiscoveryInterval, func(ctx context.Context) {
			if _, err := discovery.RunOnce(ctx); err != nil {
				logger.Error(ctx, "[Scheduler] wallet discovery failed", zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
	}
	if kyc != nil {
		if err := add("kyc-sync", cfg.KYCSyncInterval, func(ctx context.Context) {
			if _, _, err := kyc.RunOnce(ctx); err != nil {
				logger.Error(ctx, "[Scheduler] kyc sync failed", zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
	}
	if purger != nil {
		if err := add("profile-cache-purge", cfg.CachePurgeInterval, func(ctx context.Context) {
			if n := purger.Purge(); n > 0 {
				logger.Debug(ctx, "[Scheduler] purged profile cache", zap.Int("entries", n))
			}
		}); err != nil {
			return nil, err
		}
	}

	return &Scheduler{sched: sched}, nil
}

func (s *Scheduler) Start() { s.sched.Start() }

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int { return len(s.sched.Jobs()) }

func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }
