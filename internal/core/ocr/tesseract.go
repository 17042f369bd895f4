package ocr

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
)

// CLIConfig configures the tesseract command-line engine.
type CLIConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
	TSV         bool // request word boxes and confidences
}

// CLIEngine runs the tesseract binary once per recognition.
type CLIEngine struct {
	cfg    CLIConfig
	runner Runner
	logger *slog.Logger
}

func NewCLIEngine(cfg CLIConfig, logger *slog.Logger) *CLIEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &CLIEngine{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner replaces the command runner.
func (e *CLIEngine) WithRunner(r Runner) *CLIEngine {
	e.runner = r
	return e
}

func (e *CLIEngine) Name() string { return common.EngineTesseract }

func (e *CLIEngine) Recognize(ctx context.Context, in Input) (Output, error) {
	tmp, err := os.CreateTemp("", "sical-ocr-*.png")
	if err != nil {
		return Output{}, fmt.Errorf("create temp image: %w", err)
	}
	path := tmp.Name()
	defer func() { _ = os.Remove(path) }()

	if _, err := tmp.Write(in.Image); err != nil {
		_ = tmp.Close()
		return Output{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Output{}, fmt.Errorf("close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--tessdata-dir D] [tsv]
	args := []string{path, "stdout"}
	if lang := in.Lang(); lang != "" {
		args = append(args, "-l", lang)
	}
	if in.Preset.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(in.Preset.PSM))
	}
	if in.Preset.OEM != nil {
		args = append(args, "--oem", strconv.Itoa(*in.Preset.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	if e.cfg.TSV {
		args = append(args, "tsv")
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return Output{}, fmt.Errorf("tesseract: %w: %s", err, truncate(strings.TrimSpace(string(errb)), 512))
	}

	if !e.cfg.TSV {
		return Output{Text: string(out)}, nil
	}
	words := ParseTSV(string(out))
	return Output{Text: TextFromWords(words, 0), Words: words}, nil
}

// ParseTSV reads word rows (level 5) of tesseract's TSV output. Lines are
// numbered in reading order across blocks and paragraphs.
func ParseTSV(tsv string) []Word {
	var words []Word
	lineIdx := -1
	lastKey := ""
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || len(ln) == 0 {
			continue // header
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if text == "" || err != nil || conf < 0 {
			continue
		}
		key := cols[1] + "." + cols[2] + "." + cols[3] + "." + cols[4]
		if key != lastKey {
			lineIdx++
			lastKey = key
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])
		words = append(words, Word{
			Text:       text,
			Confidence: conf / 100,
			Line:       lineIdx,
			Bounds:     image.Rect(left, top, left+width, top+height),
		})
	}
	return words
}
