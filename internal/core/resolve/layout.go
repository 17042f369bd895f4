package resolve

import (
	"fmt"
	"regexp"

	"github.com/joseph-ayodele/sical-tracker/constants"
	"github.com/joseph-ayodele/sical-tracker/internal/core/numeric"
	"github.com/joseph-ayodele/sical-tracker/internal/core/ocr"
	"github.com/joseph-ayodele/sical-tracker/internal/core/preprocess"
)

// Layout is the recognized text of each screen region, keyed by region name.
type Layout map[string]ocr.Candidate

// layoutRule reads a field from one region. It only applies when the region
// text carries the cue, and runs after every text rule has failed.
type layoutRule struct {
	region string
	cue    *regexp.Regexp
	inner  Rule
}

func (r layoutRule) Name() string { return "layout:" + r.region + "/" + r.inner.Name() }

func (r layoutRule) Attempt(layout Layout, accept func(Value) bool) (Value, ocr.Candidate, bool) {
	cand, ok := layout[r.region]
	if !ok || cand.Text == "" {
		return Value{}, ocr.Candidate{}, false
	}
	if r.cue != nil && !r.cue.MatchString(cand.Text) {
		return Value{}, ocr.Candidate{}, false
	}
	v, ok := r.inner.Attempt(cand.Text, accept)
	return v, cand, ok
}

// nthNumberRule takes the n-th number of the text when it holds at least min numbers.
type nthNumberRule struct {
	n, min int
}

func (r nthNumberRule) Name() string { return fmt.Sprintf("number[%d]", r.n) }

func (r nthNumberRule) Attempt(text string, accept func(Value) bool) (Value, bool) {
	nums := numeric.FindAll(text)
	if len(nums) < r.min || r.n >= len(nums) {
		return Value{}, false
	}
	v := Value{Raw: nums[r.n].String(), Decimal: nums[r.n]}
	return v, accept(v)
}

// layoutRules maps fields to their region rules: year and concept from the
// header, the initial balances as the first two numbers of the left panel and
// the totals as the first two numbers of the right panel.
func layoutRules() map[constants.FieldName][]layoutRule {
	initial := regexp.MustCompile(`(?i)` + labelAlternation("Saldo Inicial"))
	haber := regexp.MustCompile(`(?i)` + labelAlternation("Total Haber"))
	debe := regexp.MustCompile(`(?i)` + labelAlternation("Total Debe"))
	return map[constants.FieldName][]layoutRule{
		constants.FieldYear: {{
			region: preprocess.RegionHeader,
			inner:  newPatternRule("year", `\b(\d{4})\b`, parseInt),
		}},
		constants.FieldConcept: {{
			region: preprocess.RegionHeader,
			inner:  newPatternRule("concept", `\b(\d{5})\b`, parseIdentifier),
		}},
		constants.FieldSaldoInicialDeudor: {{
			region: preprocess.RegionLeftPanel, cue: initial, inner: nthNumberRule{n: 0, min: 2},
		}},
		constants.FieldSaldoInicialAcreedor: {{
			region: preprocess.RegionLeftPanel, cue: initial, inner: nthNumberRule{n: 1, min: 2},
		}},
		constants.FieldTotalHaber: {{
			region: preprocess.RegionRightPanel, cue: haber, inner: nthNumberRule{n: 0, min: 1},
		}},
		constants.FieldTotalDebe: {{
			region: preprocess.RegionRightPanel, cue: debe, inner: nthNumberRule{n: 1, min: 2},
		}},
	}
}
