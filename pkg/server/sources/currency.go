package sources

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// brlPattern matches amounts written as "R$ 1.234,56", "R$12,90" or "R$ 7".
var brlPattern = regexp.MustCompile(`R\$[\s\x{00a0}]*(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?)`)

// ParseBRL reads a pt-BR formatted amount ("R$ 1.234,56", "12,90", "1.234")
// into a decimal. A dot followed by exactly two trailing digits with no comma
// present ("12.90") is read as a decimal separator.
func ParseBRL(text string) (decimal.Decimal, error) {
	s := strings.NewReplacer("R$", "", "\u00a0", "", " ", "", "\t", "", "\n", "").Replace(text)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, text)
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") == 1 && len(s)-strings.LastIndex(s, ".") == 3:
		// "12.90": already a decimal point
	default:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidCurrency, text)
	}
	return d, nil
}

// FindBRL extracts every "R$ ..." amount that appears in free text.
func FindBRL(text string) []decimal.Decimal {
	matches := brlPattern.FindAllStringSubmatch(text, -1)
	values := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		d, err := ParseBRL(m[1])
		if err != nil {
			continue
		}
		values = append(values, d)
	}
	return values
}
