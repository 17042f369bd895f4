package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
)

// textEngine answers with a text chosen by variant strategy and preset name.
type textEngine struct {
	name  string
	texts map[string]string
	mu    sync.Mutex
	calls int
}

func (e *textEngine) Name() string { return e.name }

func (e *textEngine) Recognize(_ context.Context, in ocr.Input) (ocr.Output, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	key := string(in.Image) + "|" + in.Preset.Name
	if txt, ok := e.texts[key]; ok {
		return ocr.Output{Text: txt}, nil
	}
	return ocr.Output{}, errors.New("nothing recognized")
}

func variants(names ...string) []preprocess.Variant {
	out := make([]preprocess.Variant, len(names))
	for i, n := range names {
		out[i] = preprocess.Variant{Strategy: n, Image: []byte(n)}
	}
	return out
}

func TestCollect_OrderAndBest(t *testing.T) {
	engine := &textEngine{name: "fake", texts: map[string]string{
		"v1|p1": "Año 2024",
		"v1|p2": "Año 2024 Concepto 30012",
		"v2|p1": "Año 2024 Concepto 30O12",
		"v2|p2": "",
	}}
	caps := []ocr.Capability{{Engine: engine, Presets: []ocr.Preset{{Name: "p1"}, {Name: "p2"}}}}

	for _, par := range []int{1, 4} {
		t.Run(fmt.Sprintf("parallelism=%d", par), func(t *testing.T) {
			agg := NewAggregator(ocr.NewAdapter(ocr.AdapterConfig{}, nil), Config{Parallelism: par}, nil)
			set, err := agg.Collect(context.Background(), variants("v1", "v2"), caps)
			if err != nil {
				t.Fatalf("Collect: %v", err)
			}
			if set.Combinations != 4 {
				t.Errorf("combinations = %d", set.Combinations)
			}
			wantSources := []string{"v1/fake:p1", "v1/fake:p2", "v2/fake:p1"}
			if len(set.Candidates) != len(wantSources) {
				t.Fatalf("candidates = %d", len(set.Candidates))
			}
			for i, c := range set.Candidates {
				if c.Source() != wantSources[i] {
					t.Errorf("candidate %d source = %q, want %q", i, c.Source(), wantSources[i])
				}
			}
			best, ok := set.Best()
			if !ok {
				t.Fatal("no best candidate")
			}
			// v1/p2 and v2/p1 tie on length; the earlier one wins.
			if best.Source() != "v1/fake:p2" {
				t.Errorf("best = %q", best.Source())
			}
		})
	}
}

func TestCollect_NoText(t *testing.T) {
	engine := &textEngine{name: "fake"}
	caps := []ocr.Capability{{Engine: engine, Presets: []ocr.Preset{{Name: "p1"}}}}
	agg := NewAggregator(ocr.NewAdapter(ocr.AdapterConfig{}, nil), Config{}, nil)

	set, err := agg.Collect(context.Background(), variants("v1", "v2"), caps)
	if !errors.Is(err, common.ErrNoTextExtracted) {
		t.Fatalf("expected ErrNoTextExtracted, got %v", err)
	}
	if len(set.Candidates) != 0 {
		t.Errorf("candidates = %d", len(set.Candidates))
	}
	if engine.calls != 2 {
		t.Errorf("engine calls = %d, want 2", engine.calls)
	}

	if _, err := agg.Collect(context.Background(), nil, caps); !errors.Is(err, common.ErrNoTextExtracted) {
		t.Fatalf("no variants: expected ErrNoTextExtracted, got %v", err)
	}
}

func TestCollect_MaxCombinations(t *testing.T) {
	engine := &textEngine{name: "fake", texts: map[string]string{
		"v1|p1": "a", "v1|p2": "b", "v2|p1": "c", "v2|p2": "d",
	}}
	caps := []ocr.Capability{{Engine: engine, Presets: []ocr.Preset{{Name: "p1"}, {Name: "p2"}}}}
	agg := NewAggregator(ocr.NewAdapter(ocr.AdapterConfig{}, nil), Config{MaxCombinations: 3}, nil)

	set, err := agg.Collect(context.Background(), variants("v1", "v2"), caps)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if set.Combinations != 3 || engine.calls != 3 {
		t.Fatalf("combinations = %d, calls = %d", set.Combinations, engine.calls)
	}
	if got := set.Texts(); len(got) != 3 || got[2] != "c" {
		t.Errorf("texts = %v", got)
	}
}

func TestSet_BestEmpty(t *testing.T) {
	if _, ok := (Set{}).Best(); ok {
		t.Fatal("empty set must have no best candidate")
	}
}
