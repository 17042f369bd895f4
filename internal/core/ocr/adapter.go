package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
)

// AdapterConfig tunes how engine output is turned into candidates.
type AdapterConfig struct {
	DefaultLanguage string  // used when a preset has no languages; default "spa"
	MinConfidence   float64 // 0 disables the word filter
}

// Adapter runs one capability against one variant and never fails: engine
// errors are logged and produce no candidate.
type Adapter struct {
	cfg    AdapterConfig
	logger *slog.Logger
}

func NewAdapter(cfg AdapterConfig, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "spa"
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// Recognize tries every preset of the capability in order and returns the non-empty candidates.
func (a *Adapter) Recognize(ctx context.Context, v preprocess.Variant, capability Capability) []Candidate {
	presets := capability.Presets
	if len(presets) == 0 {
		presets = []Preset{{Name: "default"}}
	}

	var out []Candidate
	for _, p := range presets {
		if c, ok := a.RecognizeOne(ctx, v, capability.Engine, p); ok {
			out = append(out, c)
		}
	}
	return out
}

// RecognizeOne runs a single (variant, engine, preset) combination.
func (a *Adapter) RecognizeOne(ctx context.Context, v preprocess.Variant, engine Engine, p Preset) (Candidate, bool) {
	start := time.Now()
	in := Input{Image: v.Image, Languages: a.languages(p), Preset: p}
	cand := Candidate{Variant: v.Strategy, Engine: engine.Name(), Preset: p.Name}

	res, err := safeRecognize(ctx, engine, in)
	if err != nil {
		a.logger.Warn("recognition failed",
			"source", cand.Source(),
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Candidate{}, false
	}

	text := res.Text
	if a.cfg.MinConfidence > 0 && len(res.Words) > 0 {
		text = TextFromWords(res.Words, a.cfg.MinConfidence)
	}
	cand.Text = Normalize(text)
	cand.Words = res.Words

	if cand.Text == "" {
		a.logger.Debug("recognition returned no text", "source", cand.Source())
		return Candidate{}, false
	}
	a.logger.Debug("recognition ok",
		"source", cand.Source(),
		"chars", cand.CharCount(),
		"words", len(res.Words),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cand, true
}

func (a *Adapter) languages(p Preset) []string {
	langs := p.Languages
	if langs == "" {
		langs = a.cfg.DefaultLanguage
	}
	var out []string
	for _, l := range strings.Split(langs, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func safeRecognize(ctx context.Context, engine Engine, in Input) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine %s panicked: %v", engine.Name(), r)
		}
	}()
	return engine.Recognize(ctx, in)
}

// TextFromWords rebuilds text from words at or above minConfidence, one output
// line per recognized line.
func TextFromWords(words []Word, minConfidence float64) string {
	byLine := map[int][]string{}
	var order []int
	for _, w := range words {
		if w.Confidence < minConfidence || strings.TrimSpace(w.Text) == "" {
			continue
		}
		if _, seen := byLine[w.Line]; !seen {
			order = append(order, w.Line)
		}
		byLine[w.Line] = append(byLine[w.Line], w.Text)
	}
	sort.Ints(order)

	lines := make([]string, 0, len(order))
	for _, l := range order {
		lines = append(lines, strings.Join(byLine[l], " "))
	}
	return strings.Join(lines, "\n")
}
