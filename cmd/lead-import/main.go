package main

import (
	"context"
	"flag"
	"os"

	"archi_crm_backend/internal/leads/repository"
	"archi_crm_backend/platform/config"
	"archi_crm_backend/platform/db"
	"archi_crm_backend/platform/logger"
)

func main() {
	file := flag.String("file", "", "CSV file with a header row")
	dryRun := flag.Bool("dry-run", false, "parse and report without writing")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	if *file == "" {
		log.Error("missing -file")
		os.Exit(2)
	}
	log.Info("starting lead import", "file", *file, "dryRun", *dryRun)

	f, err := os.Open(*file)
	if err != nil {
		log.Error("failed to open file", "error", err)
		os.Exit(1)
	}
	defer f.Close()

	rows, rejected, err := parseRows(f)
	if err != nil {
		log.Error("failed to parse csv", "error", err)
		os.Exit(1)
	}
	for _, r := range rejected {
		log.Warn("row rejected", "line", r.line, "reason", r.reason)
	}
	if *dryRun {
		log.Info("dry run complete", "valid", len(rows), "rejected", len(rejected))
		return
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	stats := importRows(ctx, repository.New(pool), rows, log)
	log.Info("lead import complete",
		"imported", stats.imported,
		"duplicates", stats.duplicates,
		"failed", stats.failed,
		"rejected", len(rejected),
	)
}
