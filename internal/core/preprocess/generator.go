// Package preprocess derives alternative binarized renditions of a screenshot
// so that at least one of them recognizes cleanly.
package preprocess

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Variant is one preprocessed rendition of a source image, PNG encoded.
// Region is set for crops of a single screen region.
type Variant struct {
	Strategy string
	Region   string
	Image    []byte
	Bounds   image.Rectangle
}

// Strategy is a pure image transform.
type Strategy interface {
	Name() string
	Apply(img image.Image) (image.Image, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc struct {
	name string
	fn   func(image.Image) (image.Image, error)
}

func NewStrategy(name string, fn func(image.Image) (image.Image, error)) StrategyFunc {
	return StrategyFunc{name: name, fn: fn}
}

func (s StrategyFunc) Name() string { return s.name }

func (s StrategyFunc) Apply(img image.Image) (image.Image, error) { return s.fn(img) }

// Generator runs a fixed, ordered list of strategies against one image.
type Generator struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewGenerator builds a generator; with no strategies the default set is used.
func NewGenerator(logger *slog.Logger, strategies ...Strategy) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Generator{strategies: strategies, logger: logger}
}

// Strategies returns the strategy names in application order.
func (g *Generator) Strategies() []string {
	names := make([]string, 0, len(g.strategies))
	for _, s := range g.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Generate decodes data and applies every strategy. Failing strategies are
// logged and skipped; undecodable input yields no variants.
func (g *Generator) Generate(ctx context.Context, data []byte) []Variant {
	src, err := Decode(data)
	if err != nil {
		g.logger.Warn("cannot decode source image", "error", err, "bytes", len(data))
		return nil
	}

	variants := make([]Variant, 0, len(g.strategies))
	for _, s := range g.strategies {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		v, err := g.apply(s, src)
		if err != nil {
			g.logger.Warn("preprocessing strategy failed", "strategy", s.Name(), "error", err)
			continue
		}
		g.logger.Debug("variant generated",
			"strategy", s.Name(),
			"width", v.Bounds.Dx(),
			"height", v.Bounds.Dy(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		variants = append(variants, v)
	}
	return variants
}

func (g *Generator) apply(s Strategy, src image.Image) (v Variant, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", s.Name(), r)
		}
	}()

	out, err := s.Apply(src)
	if err != nil {
		return Variant{}, err
	}
	if out == nil || out.Bounds().Empty() {
		return Variant{}, fmt.Errorf("%s produced an empty image", s.Name())
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return Variant{}, fmt.Errorf("encode %s: %w", s.Name(), err)
	}
	return Variant{Strategy: s.Name(), Image: buf.Bytes(), Bounds: out.Bounds()}, nil
}

// Decode reads png, jpeg, bmp or tiff data.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
