package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"forma/internal/ingest"
	"forma/internal/storage"
	"forma/pkg/database"
	"forma/pkg/logger"
	"forma/pkg/utils"
)

func main() {
	os.Exit(run())
}

func run() int {
	utils.LoadDotEnv()
	dryRun := flag.Bool("dry-run", false, "report planned retirements without writing")
	logMode := flag.String("log", os.Getenv("FORMA_LOG_MODE"), "log mode: dev or prod")
	flag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	dbCfg := database.DefaultConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Error("catalog store unavailable", "db", dbCfg.Path, "error", err)
		return 1
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Error("db migrate failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := ingest.CleanupCatalog(ctx, storage.NewSQLite(db), ingest.CleanupOptions{DryRun: *dryRun}, log)
	log.Info("dedupe summary",
		"dry_run", *dryRun,
		"collision_groups", res.Groups,
		"retired", len(res.Retired),
		"errors", len(res.Errors),
	)
	if err != nil {
		log.Error("dedupe failed", "error", err)
		return 1
	}
	if len(res.Errors) > 0 {
		return 1
	}
	return 0
}
