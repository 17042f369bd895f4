package resolve

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ocrConfusions lists how tesseract tends to misread Spanish letters on the screens.
var ocrConfusions = []struct {
	from string
	to   []string
}{
	{"ñ", []string{"fi", "ni", "n"}},
	{"Ñ", []string{"FI", "NI", "N"}},
	{"ó", []string{"o", "6"}},
	{"í", []string{"i", "1"}},
}

// Deaccent strips combining marks: "Año" -> "Ano", "Descripción" -> "Descripcion".
func Deaccent(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// LabelVariants expands a label into its accented, de-accented and
// OCR-confused spellings, original first, without duplicates.
func LabelVariants(label string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(label)
	add(Deaccent(label))
	for _, c := range ocrConfusions {
		if !strings.Contains(label, c.from) {
			continue
		}
		for _, to := range c.to {
			add(Deaccent(strings.ReplaceAll(label, c.from, to)))
		}
	}
	return out
}

// labelPattern turns a label into a regexp fragment tolerant of spacing and of
// the slash in "M/P" being read as a backslash.
func labelPattern(label string) string {
	p := regexp.QuoteMeta(label)
	p = strings.ReplaceAll(p, "/", `[/\\]`)
	return strings.Join(strings.Fields(p), `\s+`)
}

// labelAlternation joins the variants of a label into one group.
func labelAlternation(label string) string {
	var parts []string
	for _, v := range LabelVariants(label) {
		parts = append(parts, labelPattern(v))
	}
	return "(?:" + strings.Join(parts, "|") + ")"
}
