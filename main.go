package main

import (
	"log"
	"os"

	"crm-backoffice/config"
	"crm-backoffice/logger"

	"github.com/urfave/cli/v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init("crm-backoffice", cfg.LogLevel)
	defer logger.Sync()

	app := &cli.App{
		Name:  "crm-backoffice",
		Usage: "back-office CRM: profiles, Bridge wallets and ledger reconciliation",
		Commands: []*cli.Command{
			serveCmd(cfg),
			migrateCmd(cfg),
			syncCmd(cfg),
			discoverWalletsCmd(cfg),
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
