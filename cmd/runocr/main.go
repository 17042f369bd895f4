package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
	repo "github.com/joseph-ayodele/sical-tracker/internal/repository"
	"github.com/joseph-ayodele/sical-tracker/internal/server"
	"github.com/joseph-ayodele/sical-tracker/internal/services/extraction"
)

// runocr extracts one screenshot and prints the resolved record with the
// provenance of every field. With -commit the record is also written to the ledger.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	commit := flag.Bool("commit", false, "commit the record and its processed marker")
	flag.Parse()

	_ = common.LoadDotEnv()
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := common.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-config file.yaml] [-commit] <image>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read image", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = common.WithAttemptID(ctx, uuid.New())

	svc, err := extraction.NewService(ctx, cfg, logger)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	start := time.Now()
	ex, err := svc.Extract(ctx, entity.NewSourceImage(path, data))
	dur := time.Since(start)
	if err != nil {
		logger.Error("extraction failed", "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	if *commit {
		db, err := server.ConnectDB(ctx, cfg.Database, logger)
		if err != nil {
			os.Exit(1)
		}
		defer db.Close()
		ledger := repo.NewLedger(db, repo.NewRecordRepository(db, logger), repo.NewProcessedFileRepository(db, logger), logger)
		id, err := ledger.Commit(ctx, ex.Record)
		if err != nil {
			logger.Error("commit failed", "error", err)
			os.Exit(1)
		}
		logger.Info("record committed", "record_id", id)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ex); err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}
	logger.Info("extraction OK",
		"best", ex.BestSource,
		"candidates", ex.Candidates,
		"combinations", ex.Combinations,
		"found", ex.Record.Found(),
		"missing", ex.Record.Missing(),
		"duration_ms", dur.Milliseconds(),
	)
}
