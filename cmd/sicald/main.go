package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/ingest"
	repo "github.com/joseph-ayodele/sical-tracker/internal/repository"
	"github.com/joseph-ayodele/sical-tracker/internal/server"
	"github.com/joseph-ayodele/sical-tracker/internal/services/extraction"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	if err := common.LoadDotEnv(*envFile); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("sicald stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("sicald stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := extraction.NewService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("failed to close recognition engines", "error", err)
		}
	}()

	ledger := repo.NewLedger(db, repo.NewRecordRepository(db, logger), repo.NewProcessedFileRepository(db, logger), logger)

	var opts []ingest.Option
	if cfg.Server.HealthAddr != "" {
		hs := server.NewHealthServer(cfg.Server.HealthAddr, logger)
		if err := hs.Start(); err != nil {
			return err
		}
		defer hs.Stop()
		opts = append(opts, ingest.WithStatus(hs.SetServing))
	}

	controller := ingest.NewController(ingest.ConfigFrom(cfg.Watch), svc, ledger, logger, opts...)
	logger.Info("starting sicald",
		"watch_dir", cfg.Watch.Dir,
		"archive_dir", cfg.Watch.ArchiveDir,
		"engines", cfg.OCR.Engines,
		"dialect", db.Dialect(),
	)
	return controller.Run(ctx)
}
