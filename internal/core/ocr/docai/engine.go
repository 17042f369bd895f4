// Package docai recognizes text with a Google Document AI OCR processor.
package docai

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
)

// Processor is the subset of the Document AI client used here.
type Processor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)
}

// Engine implements ocr.Engine against a Document AI processor. Presets only
// change the candidate name; the processor has no segmentation modes.
type Engine struct {
	name   string
	client Processor
	closer func() error
	logger *slog.Logger
}

// NewEngine dials the regional Document AI endpoint.
func NewEngine(ctx context.Context, cfg common.DocAIConfig, logger *slog.Logger) (*Engine, error) {
	opts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)),
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", cfg.ProjectID, cfg.Location, cfg.ProcessorID)
	e := NewEngineWithClient(name, processorClient{client}, logger)
	e.closer = client.Close
	return e, nil
}

type processorClient struct {
	c *documentai.DocumentProcessorClient
}

func (p processorClient) ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
	return p.c.ProcessDocument(ctx, req)
}

// NewEngineWithClient wraps an existing processor client.
func NewEngineWithClient(processorName string, client Processor, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{name: processorName, client: client, logger: logger}
}

func (e *Engine) Name() string { return common.EngineDocumentAI }

func (e *Engine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Output, error) {
	req := &documentaipb.ProcessRequest{
		Name: e.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  in.Image,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}
	resp, err := e.client.ProcessDocument(ctx, req)
	if err != nil {
		return ocr.Output{}, fmt.Errorf("failed to process document: %w", err)
	}
	doc := resp.GetDocument()
	if doc == nil {
		return ocr.Output{}, nil
	}
	return ocr.Output{Text: doc.GetText(), Words: wordsFromDocument(doc)}, nil
}

// wordsFromDocument maps page tokens to words; tokens inherit the line index
// of the line whose anchor contains them.
func wordsFromDocument(doc *documentaipb.Document) []ocr.Word {
	var words []ocr.Word
	line := 0
	for _, page := range doc.GetPages() {
		w, h := float32(page.GetDimension().GetWidth()), float32(page.GetDimension().GetHeight())
		lines := page.GetLines()
		li := 0
		for _, tok := range page.GetTokens() {
			start := anchorStart(tok.GetLayout())
			for li+1 < len(lines) && anchorStart(lines[li+1].GetLayout()) <= start {
				li++
			}
			text := strings.TrimSpace(textFromLayout(tok.GetLayout(), doc.GetText()))
			if text == "" {
				continue
			}
			words = append(words, ocr.Word{
				Text:       text,
				Confidence: float64(tok.GetLayout().GetConfidence()),
				Line:       line + li,
				Bounds:     boundsFromPoly(tok.GetLayout().GetBoundingPoly(), w, h),
			})
		}
		line += max(len(lines), 1)
	}
	return words
}

func anchorStart(layout *documentaipb.Document_Page_Layout) int64 {
	segs := layout.GetTextAnchor().GetTextSegments()
	if len(segs) == 0 {
		return 0
	}
	return segs[0].GetStartIndex()
}

func textFromLayout(layout *documentaipb.Document_Page_Layout, fullText string) string {
	if layout == nil || layout.GetTextAnchor() == nil {
		return ""
	}
	runes := []rune(fullText)
	var b strings.Builder
	for _, seg := range layout.GetTextAnchor().GetTextSegments() {
		start, end := int(seg.GetStartIndex()), int(seg.GetEndIndex())
		if end > len(runes) {
			end = len(runes)
		}
		if start < 0 || start > end {
			continue
		}
		b.WriteString(string(runes[start:end]))
	}
	return b.String()
}

func boundsFromPoly(poly *documentaipb.BoundingPoly, w, h float32) image.Rectangle {
	if poly == nil {
		return image.Rectangle{}
	}
	var xs, ys []float32
	if v := poly.GetVertices(); len(v) > 0 {
		for _, p := range v {
			xs = append(xs, float32(p.GetX()))
			ys = append(ys, float32(p.GetY()))
		}
	} else {
		for _, p := range poly.GetNormalizedVertices() {
			xs = append(xs, p.GetX()*w)
			ys = append(ys, p.GetY()*h)
		}
	}
	if len(xs) == 0 {
		return image.Rectangle{}
	}
	minX, maxX, minY, maxY := xs[0], xs[0], ys[0], ys[0]
	for i := range xs {
		minX, maxX = min(minX, xs[i]), max(maxX, xs[i])
		minY, maxY = min(minY, ys[i]), max(maxY, ys[i])
	}
	return image.Rect(int(minX), int(minY), int(maxX), int(maxY))
}
