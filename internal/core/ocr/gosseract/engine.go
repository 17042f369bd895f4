//go:build gosseract

package gosseract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
)

// Engine implements ocr.Engine with a fresh gosseract client per call.
type Engine struct {
	tessdataDir   string
	clientFactory func() *gosseract.Client
	logger        *slog.Logger
}

func NewEngine(tessdataDir string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tessdataDir: tessdataDir, clientFactory: gosseract.NewClient, logger: logger}
}

func (e *Engine) Name() string { return common.EngineGosseract }

func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Output, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Output{}, err
	}
	c := e.clientFactory()
	defer c.Close()

	if e.tessdataDir != "" {
		if err := c.SetTessdataPrefix(e.tessdataDir); err != nil {
			return ocr.Output{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if len(in.Languages) > 0 {
		if err := c.SetLanguage(in.Languages...); err != nil {
			return ocr.Output{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if in.Preset.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(in.Preset.PSM)); err != nil {
			return ocr.Output{}, fmt.Errorf("set page seg mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return ocr.Output{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Output{}, fmt.Errorf("recognize text: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		e.logger.Debug("word boxes unavailable", "preset", in.Preset.Name, "error", err)
		return ocr.Output{Text: text}, nil
	}
	return ocr.Output{Text: text, Words: wordsFromBoxes(boxes)}, nil
}

func wordsFromBoxes(boxes []gosseract.BoundingBox) []ocr.Word {
	words := make([]ocr.Word, 0, len(boxes))
	line := -1
	var lastBlock, lastPar, lastLine = -1, -1, -1
	for _, b := range boxes {
		if b.BlockNum != lastBlock || b.ParNum != lastPar || b.LineNum != lastLine {
			line++
			lastBlock, lastPar, lastLine = b.BlockNum, b.ParNum, b.LineNum
		}
		words = append(words, ocr.Word{
			Text:       b.Word,
			Confidence: b.Confidence / 100.0,
			Line:       line,
			Bounds:     b.Box,
		})
	}
	return words
}
