// Package core wires the extraction stages into one pipeline: preprocessing,
// recognition, aggregation and field resolution.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/aggregate"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
	"github.com/joseph-ayodele/sical-tracker/internal/core/resolve"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// Extraction is the outcome of one successful pipeline run.
type Extraction struct {
	Record       *entity.Record
	BestSource   string
	Candidates   int
	Combinations int
	Provenance   map[constants.FieldName]resolve.Provenance
}

// Pipeline owns every extraction stage. It holds no per-image state and is
// safe to reuse across images.
type Pipeline struct {
	logger       *slog.Logger
	generator    *preprocess.Generator
	aggregator   *aggregate.Aggregator
	capabilities []ocr.Capability
	resolver     *resolve.Resolver
	validator    *RecordValidator
	regions      []preprocess.Region
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLayout enables region recognition of the given screen regions. Their
// texts are used only for fields no text rule resolves.
func WithLayout(regions []preprocess.Region) Option {
	return func(p *Pipeline) { p.regions = regions }
}

// WithClock replaces the clock used to stamp record timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func NewPipeline(
	logger *slog.Logger,
	generator *preprocess.Generator,
	aggregator *aggregate.Aggregator,
	capabilities []ocr.Capability,
	resolver *resolve.Resolver,
	opts ...Option,
) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(capabilities) == 0 {
		return nil, common.NewAppError("CONFIG_ERROR", "no recognition capability configured", common.ErrInvalidInput)
	}
	validator, err := NewRecordValidator()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		logger:       logger,
		generator:    generator,
		aggregator:   aggregator,
		capabilities: capabilities,
		resolver:     resolver,
		validator:    validator,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Extract turns one source image into a record. It returns
// common.ErrNoTextExtracted, common.ErrNoFieldsResolved or a wrapped
// common.ErrValidation for images that must stay unmarked for a retry.
func (p *Pipeline) Extract(ctx context.Context, img entity.SourceImage) (*Extraction, error) {
	start := time.Now()
	log := p.logger.With("file", img.Name)
	if id := common.AttemptIDFromContext(ctx); id != uuid.Nil {
		log = log.With("attempt_id", id)
	}

	variants := p.generator.Generate(ctx, img.Data)
	if len(variants) == 0 {
		log.Warn("no usable preprocessing variant")
	}

	set, err := p.aggregator.Collect(ctx, variants, p.capabilities)
	if err != nil {
		if errors.Is(err, common.ErrNoTextExtracted) {
			log.Warn("no text extracted", "variants", len(variants), "combinations", set.Combinations)
		}
		return nil, err
	}
	best, _ := set.Best()

	res := p.resolver.ResolveLayout(set.Candidates, p.layout(ctx, log, img.Data))
	rec := res.Record
	if rec.Empty() {
		return nil, fmt.Errorf("%s (%d candidates, best %s): %w", img.Name, len(set.Candidates), best.Source(), common.ErrNoFieldsResolved)
	}
	rec.Timestamp = p.now()
	rec.ImageFile = img.Name

	if err := p.validator.Validate(rec); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", img.Name, errors.Join(common.ErrValidation, err))
	}

	log.Debug("extraction finished",
		"candidates", len(set.Candidates),
		"best_source", best.Source(),
		"best_chars", best.CharCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Extraction{
		Record:       rec,
		BestSource:   best.Source(),
		Candidates:   len(set.Candidates),
		Combinations: set.Combinations,
		Provenance:   res.Provenance,
	}, nil
}

// layout recognizes each configured region once, with the first capability
// and its first preset.
func (p *Pipeline) layout(ctx context.Context, log *slog.Logger, data []byte) resolve.Layout {
	if len(p.regions) == 0 {
		return nil
	}
	variants := p.generator.Regions(ctx, data, p.regions)
	if len(variants) == 0 {
		return nil
	}
	first := p.capabilities[0]
	if len(first.Presets) > 1 {
		first.Presets = first.Presets[:1]
	}
	set, err := p.aggregator.Collect(ctx, variants, []ocr.Capability{first})
	if err != nil {
		log.Debug("no region text", "regions", len(variants), "error", err)
		return nil
	}
	layout := resolve.Layout{}
	for _, c := range set.Candidates {
		layout[strings.TrimPrefix(c.Variant, preprocess.RegionPrefix)] = c
	}
	return layout
}

// Capabilities returns the configured recognition capabilities in preference order.
func (p *Pipeline) Capabilities() []ocr.Capability {
	return p.capabilities
}
