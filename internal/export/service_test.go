package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// stubRecords serves fixed records and remembers which query ran.
type stubRecords struct {
	all       []*entity.Record
	byConcept map[string][]*entity.Record
	err       error
	lastQuery string
}

func (s *stubRecords) Insert(context.Context, *entity.Record) (int64, error) { return 0, nil }
func (s *stubRecords) InsertTx(context.Context, dialect.ExecQuerier, *entity.Record) (int64, error) {
	return 0, nil
}
func (s *stubRecords) ListAll(context.Context) ([]*entity.Record, error) {
	s.lastQuery = "all"
	return s.all, s.err
}
func (s *stubRecords) ListByConcept(_ context.Context, c string) ([]*entity.Record, error) {
	s.lastQuery = "concept:" + c
	return s.byConcept[c], s.err
}
func (s *stubRecords) ListConcepts(context.Context) ([]entity.ConceptSummary, error) {
	return nil, nil
}
func (s *stubRecords) Latest(context.Context, string, int) ([]*entity.Record, error) {
	return nil, nil
}

func record(file, concept string) *entity.Record {
	year := 2024
	desc := "Retribuciones básicas"
	haber := decimal.RequireFromString("880033.27")
	return &entity.Record{
		Timestamp:          time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		ImageFile:          file,
		Year:               &year,
		Concept:            &concept,
		ConceptDescription: &desc,
		TotalHaber:         &haber,
	}
}

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func cell(t *testing.T, f *excelize.File, axis string) string {
	t.Helper()
	v, err := f.GetCellValue(SheetName, axis, excelize.Options{RawCellValue: true})
	if err != nil {
		t.Fatalf("GetCellValue(%s): %v", axis, err)
	}
	return v
}

func TestExportRecordsXLSX_All(t *testing.T) {
	repo := &stubRecords{all: []*entity.Record{record("a.png", "30012"), {
		Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		ImageFile: "blank.png",
	}}}
	data, err := NewService(repo, nil).ExportRecordsXLSX(context.Background(), "")
	if err != nil {
		t.Fatalf("ExportRecordsXLSX: %v", err)
	}
	if repo.lastQuery != "all" {
		t.Fatalf("query = %q", repo.lastQuery)
	}

	f := openWorkbook(t, data)
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != SheetName {
		t.Fatalf("sheets = %v", sheets)
	}
	tests := map[string]string{
		"A1": "Fecha",
		"C1": "Año",
		"H1": "Total Haber",
		"A2": "2024-03-01 10:30:00",
		"B2": "a.png",
		"C2": "2024",
		"D2": "30012",
		"E2": "Retribuciones básicas",
		"F2": "",
		"H2": "880033.27",
		"B3": "blank.png",
		"C3": "",
		"D3": "",
		"H3": "",
	}
	for axis, want := range tests {
		if got := cell(t, f, axis); got != want {
			t.Errorf("%s = %q, want %q", axis, got, want)
		}
	}

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}

func TestExportRecordsXLSX_Concept(t *testing.T) {
	repo := &stubRecords{byConcept: map[string][]*entity.Record{"30012": {record("a.png", "30012")}}}
	data, err := NewService(repo, nil).ExportRecordsXLSX(context.Background(), "30012")
	if err != nil {
		t.Fatalf("ExportRecordsXLSX: %v", err)
	}
	if repo.lastQuery != "concept:30012" {
		t.Fatalf("query = %q", repo.lastQuery)
	}
	if got := cell(t, openWorkbook(t, data), "D2"); got != "30012" {
		t.Errorf("D2 = %q", got)
	}
}

func TestExportRecordsXLSX_QueryError(t *testing.T) {
	repo := &stubRecords{err: errors.New("database is locked")}
	if _, err := NewService(repo, nil).ExportRecordsXLSX(context.Background(), ""); err == nil {
		t.Fatal("ExportRecordsXLSX succeeded despite a query error")
	}
}

func TestHeaders(t *testing.T) {
	h := Headers()
	if len(h) != 12 {
		t.Fatalf("headers = %d, want 12", len(h))
	}
	if h[3] != "Concepto" || h[11] != "Saldo Pendiente Deudor" {
		t.Errorf("headers = %v", h)
	}
}
