package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

type ProcessedFileRepository interface {
	IsProcessed(ctx context.Context, filename string) (bool, error)
	Get(ctx context.Context, filename string) (*entity.ProcessedFile, error)
	InsertIfAbsent(ctx context.Context, filename string, at time.Time) error
	InsertIfAbsentTx(ctx context.Context, tx dialect.ExecQuerier, filename string, at time.Time) error
}

type processedFileRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewProcessedFileRepository(db *DB, logger *slog.Logger) ProcessedFileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &processedFileRepo{
		db:     db,
		logger: logger,
	}
}

// IsProcessed reports whether a marker exists for filename.
func (r *processedFileRepo) IsProcessed(ctx context.Context, filename string) (bool, error) {
	pf, err := r.Get(ctx, filename)
	if err != nil {
		if common.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return pf != nil, nil
}

// Get returns the marker for filename or ErrNotFound.
func (r *processedFileRepo) Get(ctx context.Context, filename string) (*entity.ProcessedFile, error) {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.Select("id", "filename", "processed_at").
		From(b.Table(tableProcessedFiles)).
		Where(entsql.EQ("filename", filename)).
		Limit(1).
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to query processed file", "filename", filename, "error", err)
		return nil, fmt.Errorf("get processed file: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get processed file: %w", err)
		}
		return nil, common.NewAppError("NOT_FOUND", filename, common.ErrNotFound)
	}
	var (
		pf entity.ProcessedFile
		at dbTime
	)
	if err := rows.Scan(&pf.ID, &pf.Filename, &at); err != nil {
		return nil, fmt.Errorf("get processed file: scan: %w", err)
	}
	pf.ProcessedAt = at.Time
	return &pf, nil
}

// InsertIfAbsent writes the marker for filename. An existing marker yields ErrAlreadyProcessed.
func (r *processedFileRepo) InsertIfAbsent(ctx context.Context, filename string, at time.Time) error {
	return r.InsertIfAbsentTx(ctx, r.db.Driver, filename, at)
}

func (r *processedFileRepo) InsertIfAbsentTx(ctx context.Context, tx dialect.ExecQuerier, filename string, at time.Time) error {
	if filename == "" {
		return common.NewAppError("DB_ERROR", "empty filename", common.ErrInvalidInput)
	}
	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(tableProcessedFiles).
		Columns("filename", "processed_at").
		Values(filename, at.UTC()).
		OnConflict(entsql.ConflictColumns("filename"), entsql.DoNothing()).
		Query()

	var res sql.Result
	if err := tx.Exec(ctx, q, args, &res); err != nil {
		r.logger.Error("failed to insert processed file", "filename", filename, "error", err)
		return fmt.Errorf("insert processed file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert processed file: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", filename, common.ErrAlreadyProcessed)
	}
	return nil
}
