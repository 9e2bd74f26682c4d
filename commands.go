package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crm-backoffice/config"
	"crm-backoffice/handlers"
	"crm-backoffice/logger"
	"crm-backoffice/metrics"
	"crm-backoffice/middleware"
	"crm-backoffice/services"
	"crm-backoffice/workers"

	"github.com/fatih/color"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP API and background jobs",
		Action: func(cctx *cli.Context) error {
			if err := cfg.RequireServer(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := newDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer d.close()
			if err := migrate(d.db); err != nil {
				return err
			}
			metrics.MustRegister()

			profileService := services.NewProfileService(d.db, d.profiles, d.bridge)
			walletService := services.NewWalletService(d.db, d.reconciler(), d.bridge)
			exportService := services.NewExportService(d.db, d.objectStore(ctx))
			analyticsService := services.NewAnalyticsService(d.db)

			app := fiber.New(fiber.Config{
				AppName:      "crm-backoffice",
				BodyLimit:    1 * 1024 * 1024,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 2 * time.Minute, // sync runs inside the request
			})
			app.Use(recover.New())
			app.Use(requestid.New())
			app.Use(middleware.RequestContext())
			app.Use(cors.New(cors.Config{
				AllowOrigins:  strings.Join(cfg.AllowedOrigins, ","),
				AllowMethods:  "GET,POST,PATCH,OPTIONS",
				AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-User-ID, X-User-Roles",
				ExposeHeaders: "Content-Length, Content-Type, X-Request-ID",
				MaxAge:        86400,
			}))

			// Scraped directly, not through the gateway.
			app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
			app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

			app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

			handlers.SetupWalletRoutes(app, profileService, walletService, exportService)
			handlers.SetupProfileRoutes(app, profileService)
			handlers.SetupAnalyticsRoutes(app, profileService, analyticsService)

			var purger workers.Purger
			if p, ok := d.profiles.(workers.Purger); ok {
				purger = p
			}
			sched, err := workers.NewScheduler(workers.SchedulerConfig{
				WalletDiscoveryInterval: cfg.Workers.WalletDiscoveryInterval,
				KYCSyncInterval:         cfg.Workers.KYCSyncInterval,
				CachePurgeInterval:      cfg.ProfileCacheTTL,
			},
				workers.NewWalletDiscoveryWorker(d.db, d.bridge),
				workers.NewKYCSyncWorker(d.db, profileService),
				purger,
			)
			if err != nil {
				return fmt.Errorf("failed to build scheduler: %w", err)
			}
			sched.Start()
			defer func() {
				if err := sched.Shutdown(); err != nil {
					logger.Warn(ctx, "[Scheduler] shutdown", zap.Error(err))
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				errCh <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
			}()
			logger.Info(ctx, "[BOOT] server running",
				zap.Int("port", cfg.Port),
				zap.Strings("origins", cfg.AllowedOrigins),
				zap.Bool("bridge_configured", d.bridge.Configured()),
			)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			logger.Info(context.Background(), "[BOOT] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return app.ShutdownWithContext(shutdownCtx)
		},
	}
}

func migrateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create or update the database schema",
		Action: func(cctx *cli.Context) error {
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			if err := migrate(db); err != nil {
				return err
			}
			color.Green("schema up to date")
			return nil
		},
	}
}

func syncCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "reconcile one wallet against Bridge",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "wallet",
				Usage:    "local wallet id or Bridge wallet id",
				Required: true,
			},
		},
		Action: func(cctx *cli.Context) error {
			d, err := newDeps(cctx.Context, cfg)
			if err != nil {
				return err
			}
			defer d.close()

			wallet, err := services.FindWallet(d.db, cctx.String("wallet"))
			if err != nil {
				return err
			}

			res, err := d.reconciler().SyncWallet(cctx.Context, wallet)
			if errors.Is(err, services.ErrSyncInProgress) {
				color.Yellow("wallet %s is already being synced", wallet.ExternalID)
				return nil
			}
			if err != nil {
				color.Red("sync failed: %v", err)
				return err
			}

			color.Green("wallet %s synced", wallet.ExternalID)
			fmt.Printf("  found:     %d\n", res.TransactionsFound)
			fmt.Printf("  new:       %s\n", color.CyanString("%d", res.NewTransactionsFound))
			if res.LastTransactionAt != nil {
				fmt.Printf("  watermark: %s\n", res.LastTransactionAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func discoverWalletsCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "discover-wallets",
		Usage: "mirror Bridge wallets that are missing locally",
		Action: func(cctx *cli.Context) error {
			d, err := newDeps(cctx.Context, cfg)
			if err != nil {
				return err
			}
			defer d.close()

			stats, err := workers.NewWalletDiscoveryWorker(d.db, d.bridge).RunOnce(cctx.Context)
			if err != nil {
				color.Red("discovery failed: %v", err)
				return err
			}
			color.Green("seen %d, inserted %d", stats.Seen, stats.Inserted)
			if stats.Orphaned > 0 {
				color.Yellow("%d wallet(s) belong to customers without a profile", stats.Orphaned)
			}
			return nil
		},
	}
}
