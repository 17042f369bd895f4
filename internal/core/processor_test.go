package core

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/aggregate"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
	"github.com/joseph-ayodele/sical-tracker/internal/core/resolve"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

const screenText = "Año 2024\nConcepto 30012\nSaldo Inicial Deudor 0,00\nAcreedor 2.131.793,20\nTotal Haber 880.033,27\nTotal Debe 632.581,53"

// scriptedEngine returns fixed text, standing in for tesseract reading the rendered screen.
type scriptedEngine struct {
	text  string
	calls int
}

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Output, error) {
	e.calls++
	if _, err := png.Decode(bytes.NewReader(in.Image)); err != nil {
		return ocr.Output{}, err
	}
	return ocr.Output{Text: e.text}, nil
}

func screenshot(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 360, 140))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Black), Face: basicfont.Face7x13}
	y := 18
	for _, ln := range bytes.Split([]byte(text), []byte("\n")) {
		d.Dot = fixed.P(10, y)
		d.DrawString(string(ln))
		y += 18
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, engine ocr.Engine, now time.Time, opts ...Option) *Pipeline {
	t.Helper()
	adapter := ocr.NewAdapter(ocr.AdapterConfig{}, nil)
	p, err := NewPipeline(nil,
		preprocess.NewGenerator(nil),
		aggregate.NewAggregator(adapter, aggregate.Config{Parallelism: 1, MaxCombinations: 64}, nil),
		[]ocr.Capability{{Engine: engine, Presets: []ocr.Preset{{Name: "psm6-spa", PSM: 6, OEM: ocr.EngineMode(3), Languages: "spa"}}}},
		resolve.NewResolver(resolve.Config{}, nil),
		append([]Option{WithClock(func() time.Time { return now })}, opts...)...,
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	return p
}

func TestPipeline_ExtractScreen(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	engine := &scriptedEngine{text: screenText}
	p := newTestPipeline(t, engine, now)

	img := entity.NewSourceImage("/watch/captura_001.png", screenshot(t, screenText))
	ctx := common.WithAttemptID(context.Background(), [16]byte{1})
	out, err := p.Extract(ctx, img)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if engine.calls != 4 {
		t.Errorf("engine calls = %d, want one per variant", engine.calls)
	}

	rec := out.Record
	if rec.ImageFile != "captura_001.png" || !rec.Timestamp.Equal(now) {
		t.Errorf("stamp = %q %v", rec.ImageFile, rec.Timestamp)
	}
	if rec.Year == nil || *rec.Year != 2024 {
		t.Errorf("year = %v", rec.Year)
	}
	if rec.Concept == nil || *rec.Concept != "30012" {
		t.Errorf("concept = %v", rec.Concept)
	}
	if rec.SaldoInicialDeudor != nil && !rec.SaldoInicialDeudor.IsZero() {
		t.Errorf("saldo_inicial_deudor = %s", rec.SaldoInicialDeudor)
	}
	for name, pair := range map[string]struct {
		got  *decimal.Decimal
		want string
	}{
		"saldo_inicial_acreedor": {rec.SaldoInicialAcreedor, "2131793.20"},
		"total_haber":            {rec.TotalHaber, "880033.27"},
		"total_debe":             {rec.TotalDebe, "632581.53"},
	} {
		if pair.got == nil || !pair.got.Equal(decimal.RequireFromString(pair.want)) {
			t.Errorf("%s = %v, want %s", name, pair.got, pair.want)
		}
	}
	if out.BestSource != "gray-otsu/scripted:psm6-spa" {
		t.Errorf("best source = %q", out.BestSource)
	}
	if out.Candidates != 4 || out.Combinations != 4 {
		t.Errorf("candidates = %d, combinations = %d", out.Candidates, out.Combinations)
	}
	if _, ok := out.Provenance[constants.FieldYear]; !ok {
		t.Error("year provenance missing")
	}
}

// sizedEngine answers by image size so region crops can be told apart from full variants.
type sizedEngine struct {
	texts    map[image.Point]string
	fallback string
	calls    int
}

func (e *sizedEngine) Name() string { return "sized" }

func (e *sizedEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Output, error) {
	e.calls++
	cfg, err := png.DecodeConfig(bytes.NewReader(in.Image))
	if err != nil {
		return ocr.Output{}, err
	}
	if text, ok := e.texts[image.Pt(cfg.Width, cfg.Height)]; ok {
		return ocr.Output{Text: text}, nil
	}
	return ocr.Output{Text: e.fallback}, nil
}

func TestPipeline_LayoutRegions(t *testing.T) {
	regions := preprocess.DefaultRegions()
	right := regions[2].Rect(image.Rect(0, 0, 360, 140)).Size()
	engine := &sizedEngine{
		texts:    map[image.Point]string{right: "Total Haber  Total Debe\n880.033,27  632.581,53"},
		fallback: "Año 2024\nConcepto 30012\nTotal Haber ###",
	}
	p := newTestPipeline(t, engine, time.Now(), WithLayout(regions))

	out, err := p.Extract(context.Background(), entity.NewSourceImage("panel.png", screenshot(t, "Total Haber")))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if engine.calls != 4+len(regions) {
		t.Errorf("engine calls = %d, want %d", engine.calls, 4+len(regions))
	}
	rec := out.Record
	if rec.Year == nil || *rec.Year != 2024 {
		t.Errorf("year = %v", rec.Year)
	}
	if rec.TotalHaber == nil || !rec.TotalHaber.Equal(decimal.RequireFromString("880033.27")) {
		t.Errorf("total_haber = %v", rec.TotalHaber)
	}
	if rec.TotalDebe == nil || !rec.TotalDebe.Equal(decimal.RequireFromString("632581.53")) {
		t.Errorf("total_debe = %v", rec.TotalDebe)
	}
	p0 := out.Provenance[constants.FieldTotalHaber]
	if p0.Rule != "layout:right_panel/number[0]" || p0.Source != "region:right_panel/sized:psm6-spa" {
		t.Errorf("total_haber provenance = %+v", p0)
	}
	if p1 := out.Provenance[constants.FieldYear]; p1.Rule == "" || p1.Source == "region:header/sized:psm6-spa" {
		t.Errorf("year should come from a full variant, got %+v", p1)
	}
}

func TestPipeline_NoText(t *testing.T) {
	p := newTestPipeline(t, &scriptedEngine{text: "   "}, time.Now())
	img := entity.NewSourceImage("blank.png", screenshot(t, ""))
	if _, err := p.Extract(context.Background(), img); !errors.Is(err, common.ErrNoTextExtracted) {
		t.Fatalf("expected ErrNoTextExtracted, got %v", err)
	}
}

func TestPipeline_UndecodableImage(t *testing.T) {
	engine := &scriptedEngine{text: screenText}
	p := newTestPipeline(t, engine, time.Now())
	img := entity.NewSourceImage("broken.png", []byte("truncated"))
	if _, err := p.Extract(context.Background(), img); !errors.Is(err, common.ErrNoTextExtracted) {
		t.Fatalf("expected ErrNoTextExtracted, got %v", err)
	}
	if engine.calls != 0 {
		t.Errorf("engine called %d times", engine.calls)
	}
}

func TestPipeline_NoFields(t *testing.T) {
	p := newTestPipeline(t, &scriptedEngine{text: "Menu principal\nSalir"}, time.Now())
	img := entity.NewSourceImage("menu.png", screenshot(t, "Menu principal"))
	_, err := p.Extract(context.Background(), img)
	if !errors.Is(err, common.ErrNoFieldsResolved) {
		t.Fatalf("expected ErrNoFieldsResolved, got %v", err)
	}
	if !common.IsRejection(err) {
		t.Error("no fields must be a rejection")
	}
}

func TestNewPipeline_RequiresCapability(t *testing.T) {
	_, err := NewPipeline(nil, preprocess.NewGenerator(nil), nil, nil, resolve.NewResolver(resolve.Config{}, nil))
	var appErr *common.AppError
	if !errors.As(err, &appErr) || appErr.Code != "CONFIG_ERROR" {
		t.Fatalf("expected CONFIG_ERROR, got %v", err)
	}
}

func TestRecordValidator(t *testing.T) {
	v, err := NewRecordValidator()
	if err != nil {
		t.Fatalf("NewRecordValidator: %v", err)
	}
	year := 2024
	concept := "30012"
	amount := decimal.RequireFromString("-632581.53")
	ok := &entity.Record{Timestamp: time.Now(), ImageFile: "a.png", Year: &year, Concept: &concept, TotalDebe: &amount}
	if err := v.Validate(ok); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	badConcept := "30O12"
	bad := &entity.Record{Timestamp: time.Now(), ImageFile: "a.png", Concept: &badConcept}
	if err := v.Validate(bad); err == nil {
		t.Fatal("expected schema violation for non-numeric concept")
	}
	if err := v.Validate(&entity.Record{Timestamp: time.Now()}); err == nil {
		t.Fatal("expected schema violation for empty image_file")
	}
}
