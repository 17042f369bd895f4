package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// recordColumns is the select/insert order of the records table. Tracked fields
// follow constants.AllFields.
var recordColumns = []string{
	"id",
	"timestamp",
	"image_file",
	string(constants.FieldYear),
	string(constants.FieldConcept),
	string(constants.FieldConceptDescription),
	string(constants.FieldSaldoInicialDeudor),
	string(constants.FieldSaldoInicialAcreedor),
	string(constants.FieldTotalHaber),
	string(constants.FieldTotalDebe),
	string(constants.FieldPropuestasMP),
	string(constants.FieldSaldoPendienteAcreedor),
	string(constants.FieldSaldoPendienteDeudor),
}

type RecordRepository interface {
	Insert(ctx context.Context, rec *entity.Record) (int64, error)
	InsertTx(ctx context.Context, tx dialect.ExecQuerier, rec *entity.Record) (int64, error)
	ListAll(ctx context.Context) ([]*entity.Record, error)
	ListByConcept(ctx context.Context, concept string) ([]*entity.Record, error)
	ListConcepts(ctx context.Context) ([]entity.ConceptSummary, error)
	Latest(ctx context.Context, concept string, limit int) ([]*entity.Record, error)
}

type recordRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewRecordRepository(db *DB, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepo{
		db:     db,
		logger: logger,
	}
}

// Insert appends rec to the ledger and returns the assigned id.
func (r *recordRepo) Insert(ctx context.Context, rec *entity.Record) (int64, error) {
	return r.InsertTx(ctx, r.db.Driver, rec)
}

// InsertTx appends rec through tx, which may be the driver itself or an open transaction.
func (r *recordRepo) InsertTx(ctx context.Context, tx dialect.ExecQuerier, rec *entity.Record) (int64, error) {
	if rec == nil {
		return 0, common.NewAppError("DB_ERROR", "insert record", common.ErrInvalidInput)
	}
	if rec.Timestamp.IsZero() || rec.ImageFile == "" {
		return 0, common.NewAppError("DB_ERROR", "record requires timestamp and image file", common.ErrInvalidInput)
	}

	values := []any{
		rec.Timestamp.UTC(),
		rec.ImageFile,
		nullInt(rec.Year),
		nullString(rec.Concept),
		nullString(rec.ConceptDescription),
	}
	for _, f := range constants.AmountFields() {
		values = append(values, nullDecimal(*rec.Amount(f)))
	}

	q, args := entsql.Dialect(r.db.Dialect()).
		Insert(tableRecords).
		Columns(recordColumns[1:]...).
		Values(values...).
		Returning("id").
		Query()

	rows := &entsql.Rows{}
	if err := tx.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to insert record", "image_file", rec.ImageFile, "error", err)
		return 0, fmt.Errorf("insert record: %w", err)
	}
	defer rows.Close()

	var id int64
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("insert record: %w", err)
		}
		return 0, fmt.Errorf("insert record: no id returned")
	}
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("insert record: scan id: %w", err)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}
	rec.ID = id
	r.logger.Debug("record inserted", "id", id, "image_file", rec.ImageFile)
	return id, nil
}

// ListAll returns every record ordered by concept, then timestamp.
func (r *recordRepo) ListAll(ctx context.Context) ([]*entity.Record, error) {
	s := r.selectRecords().OrderBy(string(constants.FieldConcept), "timestamp", "id")
	return r.query(ctx, s)
}

// ListByConcept returns the history of one concept ordered by timestamp.
func (r *recordRepo) ListByConcept(ctx context.Context, concept string) ([]*entity.Record, error) {
	s := r.selectRecords().
		Where(entsql.EQ(string(constants.FieldConcept), concept)).
		OrderBy("timestamp", "id")
	return r.query(ctx, s)
}

// Latest returns up to limit records of a concept, newest first.
func (r *recordRepo) Latest(ctx context.Context, concept string, limit int) ([]*entity.Record, error) {
	if limit <= 0 {
		return nil, common.NewAppError("DB_ERROR", "limit must be positive", common.ErrInvalidInput)
	}
	s := r.selectRecords().
		Where(entsql.EQ(string(constants.FieldConcept), concept)).
		OrderBy(entsql.Desc("timestamp"), entsql.Desc("id")).
		Limit(limit)
	return r.query(ctx, s)
}

// ListConcepts returns the distinct concepts with their record count and the most
// recent description seen for each.
func (r *recordRepo) ListConcepts(ctx context.Context) ([]entity.ConceptSummary, error) {
	b := entsql.Dialect(r.db.Dialect())
	q, args := b.Select(string(constants.FieldConcept), string(constants.FieldConceptDescription)).
		From(b.Table(tableRecords)).
		Where(entsql.NotNull(string(constants.FieldConcept))).
		OrderBy(string(constants.FieldConcept), "timestamp", "id").
		Query()

	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to list concepts", "error", err)
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()

	var out []entity.ConceptSummary
	for rows.Next() {
		var (
			concept string
			desc    sql.NullString
		)
		if err := rows.Scan(&concept, &desc); err != nil {
			return nil, fmt.Errorf("list concepts: scan: %w", err)
		}
		if n := len(out); n == 0 || out[n-1].Concept != concept {
			out = append(out, entity.ConceptSummary{Concept: concept})
		}
		cur := &out[len(out)-1]
		cur.Records++
		if desc.Valid {
			d := desc.String
			cur.Description = &d
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	return out, nil
}

func (r *recordRepo) selectRecords() *entsql.Selector {
	b := entsql.Dialect(r.db.Dialect())
	return b.Select(recordColumns...).From(b.Table(tableRecords))
}

func (r *recordRepo) query(ctx context.Context, s *entsql.Selector) ([]*entity.Record, error) {
	q, args := s.Query()
	rows := &entsql.Rows{}
	if err := r.db.Driver.Query(ctx, q, args, rows); err != nil {
		r.logger.Error("failed to query records", "error", err)
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []*entity.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	return out, nil
}

func scanRecord(rows *entsql.Rows) (*entity.Record, error) {
	var (
		rec     entity.Record
		ts      dbTime
		year    sql.NullInt64
		concept sql.NullString
		desc    sql.NullString
		amounts = make([]decimal.NullDecimal, len(constants.AmountFields()))
	)
	dest := []any{&rec.ID, &ts, &rec.ImageFile, &year, &concept, &desc}
	for i := range amounts {
		dest = append(dest, &amounts[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.Timestamp = ts.Time
	if year.Valid {
		y := int(year.Int64)
		rec.Year = &y
	}
	if concept.Valid {
		c := concept.String
		rec.Concept = &c
	}
	if desc.Valid {
		d := desc.String
		rec.ConceptDescription = &d
	}
	for i, f := range constants.AmountFields() {
		if amounts[i].Valid {
			v := amounts[i].Decimal
			*rec.Amount(f) = &v
		}
	}
	return &rec, nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// nullDecimal stores amounts as exact decimal strings.
func nullDecimal(v *decimal.Decimal) any {
	if v == nil {
		return nil
	}
	return v.String()
}

// dbTime scans timestamps returned either as time.Time (pgx, typed SQLite
// columns) or as text.
type dbTime struct {
	Time time.Time
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			t.Time = ts.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}
