// Package aggregate runs every (variant, engine, preset) combination for one
// image and collects the recognized texts.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
)

// Recognizer runs a single combination; *ocr.Adapter implements it.
type Recognizer interface {
	RecognizeOne(ctx context.Context, v preprocess.Variant, engine ocr.Engine, p ocr.Preset) (ocr.Candidate, bool)
}

type Config struct {
	Parallelism     int // concurrent combinations; <= 1 runs sequentially
	MaxCombinations int // upper bound on combinations per image; 0 = unbounded
}

// Set is every non-empty candidate of one image, in combination order.
type Set struct {
	Candidates   []ocr.Candidate
	Combinations int
}

// Best returns the candidate with the most recognized characters; ties go to the earliest.
func (s Set) Best() (ocr.Candidate, bool) {
	if len(s.Candidates) == 0 {
		return ocr.Candidate{}, false
	}
	best := s.Candidates[0]
	for _, c := range s.Candidates[1:] {
		if c.CharCount() > best.CharCount() {
			best = c
		}
	}
	return best, true
}

// Texts returns the candidate texts in combination order.
func (s Set) Texts() []string {
	out := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		out[i] = c.Text
	}
	return out
}

type Aggregator struct {
	recognizer Recognizer
	cfg        Config
	logger     *slog.Logger
}

func NewAggregator(recognizer Recognizer, cfg Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &Aggregator{recognizer: recognizer, cfg: cfg, logger: logger}
}

type combination struct {
	variant preprocess.Variant
	engine  ocr.Engine
	preset  ocr.Preset
}

// plan lists the combinations in the fixed order variant, capability, preset,
// truncated to MaxCombinations.
func (a *Aggregator) plan(variants []preprocess.Variant, caps []ocr.Capability) []combination {
	var plan []combination
	for _, v := range variants {
		for _, c := range caps {
			presets := c.Presets
			if len(presets) == 0 {
				presets = []ocr.Preset{{Name: "default"}}
			}
			for _, p := range presets {
				plan = append(plan, combination{variant: v, engine: c.Engine, preset: p})
			}
		}
	}
	if a.cfg.MaxCombinations > 0 && len(plan) > a.cfg.MaxCombinations {
		a.logger.Warn("combination plan truncated", "planned", len(plan), "limit", a.cfg.MaxCombinations)
		plan = plan[:a.cfg.MaxCombinations]
	}
	return plan
}

// Collect runs the plan and returns the non-empty candidates. It returns
// common.ErrNoTextExtracted when no combination produced text.
func (a *Aggregator) Collect(ctx context.Context, variants []preprocess.Variant, caps []ocr.Capability) (Set, error) {
	start := time.Now()
	plan := a.plan(variants, caps)

	results := make([]ocr.Candidate, len(plan))
	ok := make([]bool, len(plan))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Parallelism)
	for i, combo := range plan {
		g.Go(func() error {
			results[i], ok[i] = a.recognizer.RecognizeOne(gctx, combo.variant, combo.engine, combo.preset)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Set{}, fmt.Errorf("collect candidates: %w", err)
	}

	set := Set{Combinations: len(plan)}
	for i := range plan {
		if ok[i] {
			set.Candidates = append(set.Candidates, results[i])
		}
	}

	a.logger.Debug("candidates collected",
		"variants", len(variants),
		"combinations", len(plan),
		"candidates", len(set.Candidates),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if len(set.Candidates) == 0 {
		return set, fmt.Errorf("%d combinations: %w", len(plan), common.ErrNoTextExtracted)
	}
	return set, nil
}
