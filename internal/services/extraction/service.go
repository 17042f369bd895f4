// Package extraction assembles the extraction pipeline from application configuration.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core"
	"github.com/joseph-ayodele/sical-tracker/internal/core/aggregate"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr/docai"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
	"github.com/joseph-ayodele/sical-tracker/internal/core/resolve"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// EngineFactory builds one recognition engine from configuration.
type EngineFactory func(ctx context.Context, cfg *common.Config, logger *slog.Logger) (ocr.Engine, error)

// Engines maps configured engine names to their factories.
type Engines map[string]EngineFactory

// DefaultEngines returns the engines compiled into this build. Each call
// returns a fresh map.
func DefaultEngines() Engines {
	e := Engines{
		common.EngineTesseract:  newTesseract,
		common.EngineDocumentAI: newDocumentAI,
	}
	addBuildEngines(e)
	return e
}

// Names lists the engine names, sorted.
func (e Engines) Names() []string {
	names := make([]string, 0, len(e))
	for n := range e {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Option configures NewService.
type Option func(*serviceOptions)

type serviceOptions struct {
	engines  Engines
	pipeline []core.Option
}

// WithEngines replaces the engine factories.
func WithEngines(e Engines) Option {
	return func(o *serviceOptions) { o.engines = e }
}

// WithPipelineOptions passes options through to the pipeline.
func WithPipelineOptions(opts ...core.Option) Option {
	return func(o *serviceOptions) { o.pipeline = append(o.pipeline, opts...) }
}

func newTesseract(_ context.Context, cfg *common.Config, logger *slog.Logger) (ocr.Engine, error) {
	return ocr.NewCLIEngine(ocr.CLIConfig{
		Binary:      cfg.OCR.TesseractBin,
		TessdataDir: cfg.OCR.TessdataDir,
		TSV:         cfg.OCR.MinConfidence > 0,
	}, logger), nil
}

func newDocumentAI(ctx context.Context, cfg *common.Config, logger *slog.Logger) (ocr.Engine, error) {
	if !cfg.DocAIEnabled() {
		return nil, common.NewAppError("CONFIG_ERROR", "documentai requires project_id, location and processor_id", common.ErrInvalidInput)
	}
	return docai.NewEngine(ctx, cfg.DocAI, logger)
}

// Service owns the pipeline and the engines it constructed.
type Service struct {
	pipeline *core.Pipeline
	closers  []io.Closer
	logger   *slog.Logger
}

// NewService builds every configured engine, pairs it with the configured presets
// and wires the generator, aggregator and resolver into a pipeline.
func NewService(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts ...Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	o := serviceOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engines == nil {
		o.engines = DefaultEngines()
	}
	s := &Service{logger: logger}

	presets := ocr.PresetsFromConfig(cfg.OCR.Presets)
	if len(presets) == 0 {
		presets = ocr.PresetsFromConfig(common.DefaultPresets())
	}

	var caps []ocr.Capability
	for _, name := range cfg.OCR.Engines {
		build, ok := o.engines[name]
		if !ok {
			_ = s.Close()
			return nil, common.NewAppError("CONFIG_ERROR",
				fmt.Sprintf("engine %q is not available in this build (have %v)", name, o.engines.Names()), common.ErrInvalidInput)
		}
		engine, err := build(ctx, cfg, logger)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("build engine %s: %w", name, err)
		}
		if c, ok := engine.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
		caps = append(caps, ocr.Capability{Engine: engine, Presets: presets})
		logger.Info("recognition engine ready", "engine", engine.Name(), "presets", len(presets))
	}

	policy, err := resolve.ParseZeroPolicy(cfg.Resolver.ZeroPolicy)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	adapter := ocr.NewAdapter(ocr.AdapterConfig{
		DefaultLanguage: cfg.OCR.Language,
		MinConfidence:   cfg.OCR.MinConfidence,
	}, logger)
	aggregator := aggregate.NewAggregator(adapter, aggregate.Config{
		Parallelism:     cfg.OCR.Parallelism,
		MaxCombinations: cfg.OCR.MaxCombinations,
	}, logger)
	resolver := resolve.NewResolver(resolve.Config{
		ZeroPolicy:  policy,
		YearMin:     cfg.Resolver.YearMin,
		YearMax:     cfg.Resolver.YearMax,
		HeaderLines: cfg.Resolver.HeaderLines,
	}, logger)

	pipelineOpts := o.pipeline
	if cfg.OCR.Layout {
		pipelineOpts = append([]core.Option{core.WithLayout(preprocess.DefaultRegions())}, pipelineOpts...)
	}
	p, err := core.NewPipeline(logger, preprocess.NewGenerator(logger), aggregator, caps, resolver, pipelineOpts...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.pipeline = p
	return s, nil
}

// Pipeline returns the assembled pipeline.
func (s *Service) Pipeline() *core.Pipeline { return s.pipeline }

// Extract runs the pipeline on one image.
func (s *Service) Extract(ctx context.Context, img entity.SourceImage) (*core.Extraction, error) {
	return s.pipeline.Extract(ctx, img)
}

// Close releases engine clients.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
