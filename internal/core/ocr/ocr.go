// Package ocr adapts text-recognition engines to the extraction pipeline.
package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
)

// Preset is one parameter set an engine is run with.
type Preset struct {
	Name      string
	PSM       int  // page segmentation mode; 0 = engine default
	OEM       *int // engine mode; nil = engine default, 0 selects the legacy engine
	Languages string
}

// EngineMode returns an OEM value for a Preset.
func EngineMode(n int) *int { return &n }

// PresetsFromConfig converts configured presets.
func PresetsFromConfig(in []common.PresetConfig) []Preset {
	out := make([]Preset, 0, len(in))
	for _, p := range in {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("psm%d", p.PSM)
		}
		out = append(out, Preset{Name: name, PSM: p.PSM, OEM: p.OEM, Languages: p.Languages})
	}
	return out
}

// Word is one recognized token. Confidence is in 0..1.
type Word struct {
	Text       string
	Confidence float64
	Line       int
	Bounds     image.Rectangle
}

// Input is what an engine recognizes: a PNG image plus language hints.
type Input struct {
	Image     []byte
	Languages []string
	Preset    Preset
}

// Lang joins the language hints the way tesseract expects them ("spa+eng").
func (in Input) Lang() string {
	return strings.Join(in.Languages, "+")
}

// Output is the raw result of one recognition call. Words may be empty when
// the engine only reports plain text.
type Output struct {
	Text  string
	Words []Word
}

// Engine is a text-recognition capability.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) (Output, error)
}

// Capability is an engine plus the presets it is tried with, in order.
type Capability struct {
	Engine  Engine
	Presets []Preset
}

// Candidate is the text recognized from one (variant, engine, preset) combination.
type Candidate struct {
	Variant string
	Engine  string
	Preset  string
	Text    string
	Words   []Word
}

// Source identifies the combination that produced the candidate.
func (c Candidate) Source() string {
	return fmt.Sprintf("%s/%s:%s", c.Variant, c.Engine, c.Preset)
}

// CharCount is the number of recognized characters, ignoring surrounding whitespace.
func (c Candidate) CharCount() int {
	return utf8.RuneCountInString(strings.TrimSpace(c.Text))
}
