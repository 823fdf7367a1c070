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
	cfg := utils.LoadIngestConfig()

	flag.StringVar(&cfg.InputDir, "input", cfg.InputDir, "directory of JSON source files")
	flag.IntVar(&cfg.BatchSize, "batch", cfg.BatchSize, "records per commit transaction")
	flag.StringVar(&cfg.SourceNamespace, "namespace", cfg.SourceNamespace, "prefix for synthesized external ids")
	flag.BoolVar(&cfg.IsEgyptianDefault, "egyptian", cfg.IsEgyptianDefault, "default is_egyptian for records without the flag")
	flag.StringVar(&cfg.SourcesFile, "sources", cfg.SourcesFile, "optional YAML file with per-source overrides")
	cleanup := flag.Bool("cleanup", false, "merge case-colliding catalog rows before committing")
	flag.Parse()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}
	overrides, err := utils.LoadSources(cfg.SourcesFile)
	if err != nil {
		log.Error("load sources failed", "error", err)
		return 1
	}

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

	opts := buildOptions(cfg, overrides)
	opts.Cleanup = *cleanup

	p := ingest.NewPipeline(storage.NewSQLite(db), opts, log)
	sum, err := p.Run(ctx)
	sum.Log(log)
	if err != nil {
		log.Error("ingest failed", "run_id", sum.RunID, "error", err)
		return 1
	}
	if sum.Failed() {
		return 1
	}
	return 0
}

func buildOptions(cfg utils.IngestConfig, overrides []utils.SourceOverride) ingest.Options {
	def := ingest.SourceOptions{
		Namespace:  cfg.SourceNamespace,
		IsEgyptian: cfg.IsEgyptianDefault,
	}
	opts := ingest.Options{
		InputDir:  cfg.InputDir,
		BatchSize: cfg.BatchSize,
		Default:   def,
		Sources:   make(map[string]ingest.SourceOptions, len(overrides)),
	}
	for _, o := range overrides {
		src := def
		if o.Namespace != "" {
			src.Namespace = o.Namespace
		}
		if o.IsEgyptian != nil {
			src.IsEgyptian = *o.IsEgyptian
		}
		src.ArrayKey = o.ArrayKey
		opts.Sources[o.File] = src
	}
	return opts
}
