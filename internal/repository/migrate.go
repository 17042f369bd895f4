package repository

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
)

const (
	tableRecords        = "records"
	tableProcessedFiles = "processed_files"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		"timestamp" DATETIME NOT NULL,
		image_file TEXT NOT NULL,
		year INTEGER,
		concept TEXT,
		concept_description TEXT,
		saldo_inicial_deudor TEXT,
		saldo_inicial_acreedor TEXT,
		total_haber TEXT,
		total_debe TEXT,
		propuestas_mp TEXT,
		saldo_pendiente_acreedor TEXT,
		saldo_pendiente_deudor TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_concept_timestamp ON records (concept, "timestamp")`,
	`CREATE TABLE IF NOT EXISTS processed_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		processed_at DATETIME NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
		"timestamp" TIMESTAMPTZ NOT NULL,
		image_file TEXT NOT NULL,
		year INTEGER,
		concept TEXT,
		concept_description TEXT,
		saldo_inicial_deudor TEXT,
		saldo_inicial_acreedor TEXT,
		total_haber TEXT,
		total_debe TEXT,
		propuestas_mp TEXT,
		saldo_pendiente_acreedor TEXT,
		saldo_pendiente_deudor TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_records_concept_timestamp ON records (concept, "timestamp")`,
	`CREATE TABLE IF NOT EXISTS processed_files (
		id BIGSERIAL PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		processed_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the ledger tables when missing. Existing tables are left untouched.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := sqliteSchema
	if d.Dialect() == dialect.Postgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		var res sql.Result
		if err := d.Driver.Exec(ctx, stmt, []any{}, &res); err != nil {
			d.logger.Error("migration failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	d.logger.Info("database schema ready", "dialect", d.Dialect())
	return nil
}
