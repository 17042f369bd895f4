package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// Ledger commits a record together with the processed marker of its source image.
type Ledger struct {
	db      *DB
	records RecordRepository
	markers ProcessedFileRepository
	now     func() time.Time
	logger  *slog.Logger
}

type LedgerOption func(*Ledger)

// WithLedgerClock overrides the clock used for processed_at.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(db *DB, records RecordRepository, markers ProcessedFileRepository, logger *slog.Logger, opts ...LedgerOption) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Ledger{
		db:      db,
		records: records,
		markers: markers,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsProcessed reports whether the marker for filename exists.
func (l *Ledger) IsProcessed(ctx context.Context, filename string) (bool, error) {
	return l.markers.IsProcessed(ctx, filename)
}

// Commit inserts rec and the marker for rec.ImageFile in one transaction.
// Either both rows are written or neither is.
func (l *Ledger) Commit(ctx context.Context, rec *entity.Record) (int64, error) {
	if rec == nil || rec.ImageFile == "" {
		return 0, common.NewAppError("DB_ERROR", "commit requires a record with an image file", common.ErrInvalidInput)
	}

	tx, err := l.db.Driver.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", errors.Join(common.ErrDatabase, err))
	}
	rollback := func(cause error) error {
		rec.ID = 0
		if rerr := tx.Rollback(); rerr != nil {
			l.logger.Error("rollback failed", "file", rec.ImageFile, "error", rerr)
			return errors.Join(cause, rerr)
		}
		return cause
	}

	id, err := l.records.InsertTx(ctx, tx, rec)
	if err != nil {
		return 0, rollback(err)
	}
	if err := l.markers.InsertIfAbsentTx(ctx, tx, rec.ImageFile, l.now()); err != nil {
		return 0, rollback(err)
	}
	if err := tx.Commit(); err != nil {
		rec.ID = 0
		l.logger.Error("commit failed", "file", rec.ImageFile, "error", err)
		return 0, fmt.Errorf("commit: %w", errors.Join(common.ErrDatabase, err))
	}
	l.logger.Debug("ledger commit", "file", rec.ImageFile, "record_id", id)
	return id, nil
}
