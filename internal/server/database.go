package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	repo "github.com/joseph-ayodele/sical-tracker/internal/repository"
)

// ConnectDB opens the ledger database, pings it and makes sure the schema exists.
// Any failure here is fatal for the caller.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repo.Open(ctx, repo.ConfigFrom(cfg), logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if err := PingDB(ctx, db, logger, cfg); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, common.NewAppError("DB_ERROR", "migrate", err)
	}
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, cfg common.DatabaseConfig) error {
	logger.Debug("pinging database")
	if err := db.HealthCheck(ctx, cfg.HealthTimeout); err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}
