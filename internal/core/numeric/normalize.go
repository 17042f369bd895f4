// Package numeric parses amounts printed with Spanish/continental separators
// ("2.131.793,20") while tolerating OCR noise around the digits.
package numeric

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Ceiling bounds accepted magnitudes; anything larger is almost always two digit
// runs merged by the recognizer.
var Ceiling = decimal.New(1, 15)

var reNumberToken = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})+(?:[.,]\d{2})?|\d+(?:[.,]\d{2})?`)

// Normalize converts a locale-ambiguous digit string into a decimal.
// The boolean is false when s does not hold a usable number.
func Normalize(s string) (decimal.Decimal, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return -1
	}, s)
	if strings.Trim(cleaned, ".,-") == "" {
		return decimal.Decimal{}, false
	}

	dots := strings.Count(cleaned, ".")
	commas := strings.Count(cleaned, ",")
	switch {
	case dots > 0 && commas > 0:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case commas == 1 && dots == 0:
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case dots > 1 && commas == 0:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case dots == 1 && commas == 0:
		if frac := cleaned[strings.Index(cleaned, ".")+1:]; len(frac) == 3 {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.Abs().GreaterThan(Ceiling) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// FindAll returns every number-looking token of text that normalizes, in text order.
func FindAll(text string) []decimal.Decimal {
	var out []decimal.Decimal
	for _, tok := range reNumberToken.FindAllString(text, -1) {
		if d, ok := Normalize(tok); ok {
			out = append(out, d)
		}
	}
	return out
}
