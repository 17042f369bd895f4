package resolve

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/sical-tracker/internal/core/numeric"
)

// Value is a parsed field value. Only the member matching the field kind is set.
type Value struct {
	Raw     string
	Int     int
	Text    string
	Decimal decimal.Decimal
}

// Rule is one pattern strategy for a field. Attempt tries every match in text
// order and returns the first value the acceptance predicate admits.
type Rule interface {
	Name() string
	Attempt(text string, accept func(Value) bool) (Value, bool)
}

type parseFunc func(raw string) (Value, bool)

func parseDecimal(raw string) (Value, bool) {
	d, ok := numeric.Normalize(raw)
	if !ok {
		return Value{}, false
	}
	return Value{Raw: raw, Decimal: d}, true
}

func parseInt(raw string) (Value, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return Value{}, false
	}
	return Value{Raw: raw, Int: n}, true
}

func parseIdentifier(raw string) (Value, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}, false
	}
	return Value{Raw: raw, Text: s}, true
}

func parseDescription(raw string) (Value, bool) {
	s := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("-:.|_", r)
	})
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) < 3 || !strings.ContainsFunc(s, unicode.IsLetter) {
		return Value{}, false
	}
	if r := []rune(s); len(r) > 255 {
		s = string(r[:255])
	}
	return Value{Raw: raw, Text: s}, true
}

// patternRule takes its value from one capture group of a regexp.
type patternRule struct {
	name  string
	re    *regexp.Regexp
	group int
	parse parseFunc
	stop  *regexp.Regexp
}

func newPatternRule(name, pattern string, parse parseFunc) *patternRule {
	return &patternRule{name: name, re: regexp.MustCompile(pattern), group: 1, parse: parse}
}

// stopAt cuts every capture at the first match of stop.
func (r *patternRule) stopAt(stop *regexp.Regexp) *patternRule {
	r.stop = stop
	return r
}

func (r *patternRule) Name() string { return r.name }

func (r *patternRule) Attempt(text string, accept func(Value) bool) (Value, bool) {
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if len(m) <= r.group {
			continue
		}
		raw := m[r.group]
		if r.stop != nil {
			if loc := r.stop.FindStringIndex(raw); loc != nil {
				raw = raw[:loc[0]]
			}
		}
		if v, ok := r.parse(raw); ok && accept(v) {
			return v, true
		}
	}
	return Value{}, false
}

// amountRule reads the number that follows a label. Its regexp captures the
// label, the gap and the number. A match is skipped when the label is only
// part of another field's label ("Deudor" in "Saldo Pendiente Deudor") or
// when the gap runs into another field's label.
type amountRule struct {
	name    string
	re      *regexp.Regexp
	foreign *regexp.Regexp
}

func (r *amountRule) Name() string { return r.name }

func (r *amountRule) Attempt(text string, accept func(Value) bool) (Value, bool) {
	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return Value{}, false
	}
	spans := r.foreign.FindAllStringIndex(text, -1)
	for _, m := range matches {
		if len(m) < 8 || m[6] < 0 {
			continue
		}
		if nested(m[2], m[3], spans) || r.foreign.MatchString(text[m[4]:m[5]]) {
			continue
		}
		if v, ok := parseDecimal(text[m[6]:m[7]]); ok && accept(v) {
			return v, true
		}
	}
	return Value{}, false
}

// nested reports whether [start,end) lies inside a longer span.
func nested(start, end int, spans [][]int) bool {
	for _, s := range spans {
		if s[0] <= start && end <= s[1] && s[1]-s[0] > end-start {
			return true
		}
	}
	return false
}

// headerRule restricts another rule to the first lines of the text.
type headerRule struct {
	inner Rule
	lines int
}

func (r *headerRule) Name() string { return r.inner.Name() }

func (r *headerRule) Attempt(text string, accept func(Value) bool) (Value, bool) {
	return r.inner.Attempt(headerOf(text, r.lines), accept)
}

func headerOf(text string, lines int) string {
	parts := strings.SplitN(text, "\n", lines+1)
	if len(parts) > lines {
		parts = parts[:lines]
	}
	return strings.Join(parts, "\n")
}

// columnRule reads the n-th number on the rest of a labeled line, for rows
// where the deudor and acreedor columns share one label.
type columnRule struct {
	name   string
	re     *regexp.Regexp
	column int
}

func (r *columnRule) Name() string { return r.name }

func (r *columnRule) Attempt(text string, accept func(Value) bool) (Value, bool) {
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		nums := numeric.FindAll(m[1])
		if len(nums) < 2 || r.column >= len(nums) {
			continue
		}
		v := Value{Raw: nums[r.column].String(), Decimal: nums[r.column]}
		if accept(v) {
			return v, true
		}
	}
	return Value{}, false
}
