// Package resolve turns recognized texts into a structured record by running
// an ordered cascade of pattern rules per field across all candidates.
package resolve

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/common"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/entity"
)

// ZeroPolicy decides whether an amount of exactly zero counts as a match.
type ZeroPolicy string

const (
	// ZeroVolatile rejects zero for fields where it is indistinguishable from a misread.
	ZeroVolatile ZeroPolicy = common.ZeroPolicyVolatile
	ZeroReject   ZeroPolicy = common.ZeroPolicyReject
	ZeroAccept   ZeroPolicy = common.ZeroPolicyAccept
)

// ParseZeroPolicy maps a configured name to a policy.
func ParseZeroPolicy(s string) (ZeroPolicy, error) {
	switch p := ZeroPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ZeroVolatile, ZeroReject, ZeroAccept:
		return p, nil
	case "":
		return ZeroVolatile, nil
	}
	return "", fmt.Errorf("unknown zero policy %q: %w", s, common.ErrInvalidInput)
}

// AcceptsZero reports whether a zero amount is kept for field f.
func (p ZeroPolicy) AcceptsZero(f constants.FieldName) bool {
	switch p {
	case ZeroAccept:
		return true
	case ZeroReject:
		return false
	}
	return !f.Volatile()
}

type Config struct {
	ZeroPolicy  ZeroPolicy
	YearMin     int
	YearMax     int
	HeaderLines int
}

// Provenance records which rule and candidate produced a field value.
type Provenance struct {
	Rule   string
	Source string
	Raw    string
}

// Result is a resolved record plus the provenance of every found field.
// Timestamp and ImageFile of the record are left for the caller to stamp.
type Result struct {
	Record     *entity.Record
	Provenance map[constants.FieldName]Provenance
}

type Resolver struct {
	cfg      Config
	cascades []Cascade
	layout   map[constants.FieldName][]layoutRule
	logger   *slog.Logger
}

// NewResolver builds a resolver with the default cascades.
func NewResolver(cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ZeroPolicy == "" {
		cfg.ZeroPolicy = ZeroVolatile
	}
	if cfg.YearMin == 0 {
		cfg.YearMin = 2000
	}
	if cfg.YearMax == 0 {
		cfg.YearMax = 2100
	}
	if cfg.HeaderLines <= 0 {
		cfg.HeaderLines = 10
	}
	return &Resolver{cfg: cfg, cascades: DefaultCascades(cfg.HeaderLines), layout: layoutRules(), logger: logger}
}

// Resolve folds every cascade over the candidates: rules in order, and for
// each rule the candidates in order. The first accepted value wins, so a
// labeled match in any candidate beats a looser rule in an earlier one.
func (r *Resolver) Resolve(candidates []ocr.Candidate) Result {
	return r.ResolveLayout(candidates, nil)
}

// ResolveLayout is Resolve with the region texts of the screen as a last
// resort for fields no text rule found.
func (r *Resolver) ResolveLayout(candidates []ocr.Candidate, layout Layout) Result {
	res := Result{Record: &entity.Record{}, Provenance: map[constants.FieldName]Provenance{}}
	for _, c := range r.cascades {
		accept := r.acceptor(c.Field)
		if r.resolveField(c, candidates, accept, res) || len(layout) == 0 {
			continue
		}
		for _, rule := range r.layout[c.Field] {
			if v, cand, ok := rule.Attempt(layout, accept); ok {
				r.record(res, c.Field, rule.Name(), cand, v)
				break
			}
		}
	}
	return res
}

func (r *Resolver) resolveField(c Cascade, candidates []ocr.Candidate, accept func(Value) bool, res Result) bool {
	for _, rule := range c.Rules {
		for _, cand := range candidates {
			if v, ok := rule.Attempt(cand.Text, accept); ok {
				r.record(res, c.Field, rule.Name(), cand, v)
				return true
			}
		}
	}
	return false
}

func (r *Resolver) record(res Result, f constants.FieldName, rule string, cand ocr.Candidate, v Value) {
	assign(res.Record, f, v)
	res.Provenance[f] = Provenance{Rule: rule, Source: cand.Source(), Raw: v.Raw}
	r.logger.Debug("field resolved",
		"field", f,
		"rule", rule,
		"source", cand.Source(),
		"raw", v.Raw,
	)
}

func (r *Resolver) acceptor(f constants.FieldName) func(Value) bool {
	switch f.Kind() {
	case constants.KindInteger:
		return func(v Value) bool { return v.Int >= r.cfg.YearMin && v.Int <= r.cfg.YearMax }
	case constants.KindIdentifier, constants.KindText:
		return func(v Value) bool { return v.Text != "" }
	default:
		zeroOK := r.cfg.ZeroPolicy.AcceptsZero(f)
		return func(v Value) bool { return zeroOK || !v.Decimal.IsZero() }
	}
}

func assign(rec *entity.Record, f constants.FieldName, v Value) {
	switch f {
	case constants.FieldYear:
		year := v.Int
		rec.Year = &year
	case constants.FieldConcept:
		s := v.Text
		rec.Concept = &s
	case constants.FieldConceptDescription:
		s := v.Text
		rec.ConceptDescription = &s
	default:
		if p := rec.Amount(f); p != nil {
			d := v.Decimal
			*p = &d
		}
	}
}
