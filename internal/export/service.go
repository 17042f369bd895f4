package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
	"github.com/joseph-ayodele/sical-tracker/internal/repository"
)

// SheetName is the worksheet holding the exported records.
const SheetName = "Registros"

// Service is a tiny façade over the record repository that produces XLSX bytes for exports.
type Service struct {
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewService(records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger}
}

// Headers returns the workbook column titles.
func Headers() []string {
	headers := []string{"Fecha", "Imagen"}
	for _, f := range constants.AllFields() {
		headers = append(headers, f.Label())
	}
	return headers
}

// ExportRecordsXLSX returns an XLSX workbook (as bytes) with the ledger records.
// An empty concept exports every record ordered by concept and time; otherwise
// only that concept's history. Absent fields are left blank.
func (s *Service) ExportRecordsXLSX(ctx context.Context, concept string) ([]byte, error) {
	start := time.Now()

	var (
		recs []*entity.Record
		err  error
	)
	if concept == "" {
		recs, err = s.records.ListAll(ctx)
	} else {
		recs, err = s.records.ListByConcept(ctx, concept)
	}
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}

	for i, h := range Headers() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(Headers()))
	_ = f.SetCellStyle(SheetName, "A1", last+"1", bold)

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, r.Timestamp.UTC().Format("2006-01-02 15:04:05"))
		write(2, r.ImageFile)
		if r.Year != nil {
			write(3, *r.Year)
		}
		if r.Concept != nil {
			write(4, *r.Concept)
		}
		if r.ConceptDescription != nil {
			write(5, *r.ConceptDescription)
		}
		for i, fld := range constants.AmountFields() {
			if v := *r.Amount(fld); v != nil {
				write(6+i, v.InexactFloat64())
			}
		}
		row++
	}
	if len(recs) > 0 {
		first, _ := excelize.CoordinatesToCellName(6, 2)
		lastCell, _ := excelize.CoordinatesToCellName(len(Headers()), row-1)
		_ = f.SetCellStyle(SheetName, first, lastCell, amount)
	}

	// Widen a few columns
	_ = f.SetColWidth(SheetName, "A", "A", 20) // timestamp
	_ = f.SetColWidth(SheetName, "B", "B", 28) // image
	_ = f.SetColWidth(SheetName, "E", "E", 40) // description
	_ = f.SetColWidth(SheetName, "F", last, 18)
	_ = f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"concept", concept,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
