package resolve

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/sical-tracker/constants"
)

// numberCapture starts with a digit so lone separators are never captured.
const numberCapture = `(-?[0-9][0-9.,]*)`

// strictNumberCapture only admits Spanish-formatted amounts.
const strictNumberCapture = `([0-9]{1,3}(?:[.,][0-9]{3})*(?:[.,][0-9]{2})?)`

// Cascade is the ordered rule list of one field, most specific first.
type Cascade struct {
	Field constants.FieldName
	Rules []Rule
}

// amountLabels lists the screen labels of each amount field, most specific first.
var amountLabels = map[constants.FieldName][]string{
	constants.FieldSaldoInicialDeudor:     {"Saldo Inicial Deudor", "Deudor"},
	constants.FieldSaldoInicialAcreedor:   {"Saldo Inicial Acreedor", "Acreedor"},
	constants.FieldTotalHaber:             {"Total Haber", "Haber"},
	constants.FieldTotalDebe:              {"Total Debe", "Debe"},
	constants.FieldPropuestasMP:           {"Propuestas de M/P", "Propuestas de M", "Propuestas"},
	constants.FieldSaldoPendienteAcreedor: {"Saldo Pendiente Acreedor", "Pendiente Acreedor"},
	constants.FieldSaldoPendienteDeudor:   {"Saldo Pendiente Deudor", "Pendiente Deudor"},
}

// fieldLabels lists the labels of the fields that are not amounts.
var fieldLabels = map[constants.FieldName][]string{
	constants.FieldYear:               {"Año"},
	constants.FieldConcept:            {"Concepto"},
	constants.FieldConceptDescription: {"Descripción"},
}

// amountTemplates go from a label directly followed by its number to a label
// with an amount later on the same line. Proximity templates are not used
// for the initial balances.
var amountTemplates = []struct {
	name      string
	pattern   string
	proximity bool
}{
	{"labeled", `(?i)(%s)([:\s]+)` + numberCapture, false},
	{"labeled-colon", `(?i)(%s)(\s*:?\s*)` + numberCapture, false},
	{"near-50", `(?i)(%s)([^\n]{0,50}?)` + numberCapture, true},
	{"near-100", `(?i)(%s)([^\n]{0,100}?)` + strictNumberCapture, true},
}

// AmountCascade builds the rules of a decimal field. Rules are ordered
// template-major so every labeled rule precedes every proximity rule.
func AmountCascade(field constants.FieldName) Cascade {
	c := Cascade{Field: field}
	foreign := labelsExcept(field)
	initial := field == constants.FieldSaldoInicialDeudor || field == constants.FieldSaldoInicialAcreedor
	for _, tpl := range amountTemplates {
		if tpl.proximity && initial {
			continue
		}
		for _, label := range amountLabels[field] {
			c.Rules = append(c.Rules, &amountRule{
				name:    fmt.Sprintf("%s:%s", tpl.name, label),
				re:      regexp.MustCompile(fmt.Sprintf(tpl.pattern, labelAlternation(label))),
				foreign: foreign,
			})
		}
	}
	switch field {
	case constants.FieldSaldoInicialDeudor:
		c.Rules = append(c.Rules, twoColumnRule(0))
	case constants.FieldSaldoInicialAcreedor:
		c.Rules = append(c.Rules, twoColumnRule(1))
	}
	return c
}

// labelsExcept matches, as whole words, every field label not belonging to
// field plus any extra words. Longer labels are tried first so that
// "Saldo Pendiente Deudor" wins over "Deudor".
func labelsExcept(field constants.FieldName, extra ...string) *regexp.Regexp {
	labels := append([]string(nil), extra...)
	for f, ls := range amountLabels {
		if f != field {
			labels = append(labels, ls...)
		}
	}
	for f, ls := range fieldLabels {
		if f != field {
			labels = append(labels, ls...)
		}
	}

	var variants []string
	for _, l := range labels {
		variants = append(variants, LabelVariants(l)...)
	}
	sort.SliceStable(variants, func(i, j int) bool {
		if len(variants[i]) != len(variants[j]) {
			return len(variants[i]) > len(variants[j])
		}
		return variants[i] < variants[j]
	})
	parts := make([]string, 0, len(variants))
	for _, v := range variants {
		parts = append(parts, labelPattern(v))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func twoColumnRule(column int) Rule {
	return &columnRule{
		name:   fmt.Sprintf("two-column:Saldo Inicial[%d]", column),
		re:     regexp.MustCompile(`(?i)` + labelAlternation("Saldo Inicial") + `[ \t:]*([^\n]*)`),
		column: column,
	}
}

// YearCascade finds the exercise year; the unlabeled scan comes last.
func YearCascade() Cascade {
	label := labelAlternation("Año")
	return Cascade{Field: constants.FieldYear, Rules: []Rule{
		newPatternRule("labeled:Año", `(?i)`+label+`[:\s]+(\d{4})\b`, parseInt),
		newPatternRule("labeled-colon:Año", `(?i)`+label+`\s*:?\s*(\d{4})\b`, parseInt),
		newPatternRule("scan:4-digit", `\b(\d{4})\b`, parseInt),
	}}
}

// ConceptCascade finds the budget concept code; the header scan comes last.
func ConceptCascade(headerLines int) Cascade {
	label := labelAlternation("Concepto")
	return Cascade{Field: constants.FieldConcept, Rules: []Rule{
		newPatternRule("labeled:Concepto/5", `(?i)`+label+`[:\s]+(\d{5})\b`, parseIdentifier),
		newPatternRule("labeled:Concepto/4-6", `(?i)`+label+`[:\s]+(\d{4,6})\b`, parseIdentifier),
		newPatternRule("labeled:Concepto/any", `(?i)`+label+`[:\s]+(\d+)`, parseIdentifier),
		&headerRule{inner: newPatternRule("scan:header/5-digit", `\b(\d{5})\b`, parseIdentifier), lines: headerLines},
	}}
}

// DescriptionCascade finds the concept's free-text description. Captures end
// where another field's label starts on the same line.
func DescriptionCascade() Cascade {
	stop := labelsExcept(constants.FieldConceptDescription, "Saldo", "Total")
	return Cascade{Field: constants.FieldConceptDescription, Rules: []Rule{
		newPatternRule("labeled:Descripción", `(?i)`+labelAlternation("Descripción")+`[ \t]*:?[ \t]*([^\n]+)`, parseDescription).stopAt(stop),
		newPatternRule("after-concept", `(?i)`+labelAlternation("Concepto")+`[: \t]+\d{4,6}\b[ \t]*[-:.]?[ \t]*([^\n]+)`, parseDescription).stopAt(stop),
		newPatternRule("heading:INGRESOS/GASTOS", `(?im)\b((?:INGRESOS|GASTOS)\b[^\n]*)`, parseDescription).stopAt(stop),
	}}
}

// DefaultCascades returns the cascades of all tracked fields in column order.
func DefaultCascades(headerLines int) []Cascade {
	out := []Cascade{YearCascade(), ConceptCascade(headerLines), DescriptionCascade()}
	for _, f := range constants.AmountFields() {
		out = append(out, AmountCascade(f))
	}
	return out
}
