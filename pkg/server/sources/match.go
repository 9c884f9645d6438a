package sources

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minTokenLen ignores short connectives ("de", "em", "c/") when matching titles.
const minTokenLen = 3

// Fold lower-cases s and strips diacritics, so "Dipirona Sódica" and
// "DIPIRONA SODICA" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// MatchesQuery reports whether a listing title plausibly describes the queried
// item: every significant word of the item name must appear, and when a dosage
// is given it must appear too (whitespace-insensitive, so "500 mg" == "500mg").
func MatchesQuery(title string, q Query) bool {
	t := Fold(title)
	for _, token := range strings.FieldsFunc(Fold(q.ItemName), isSeparator) {
		if len([]rune(token)) < minTokenLen {
			continue
		}
		if !strings.Contains(t, token) {
			return false
		}
	}

	if d := q.NormalizedDosage(); d != "" {
		compactTitle := strings.Join(strings.Fields(t), "")
		compactDosage := strings.Join(strings.Fields(Fold(d)), "")
		if !strings.Contains(compactTitle, compactDosage) {
			return false
		}
	}

	return true
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
