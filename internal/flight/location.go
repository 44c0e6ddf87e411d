package flight

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultOffshoreKeywords are the words the tracking site uses for positions
// that are not airports.
var DefaultOffshoreKeywords = []string{"near", "plataforma"}

// LocationClassifier reports whether an origin or destination cell names an
// airport rather than an offshore position.
type LocationClassifier func(location string) bool

// IsAirport is the default classifier built from DefaultOffshoreKeywords.
var IsAirport = KeywordClassifier(DefaultOffshoreKeywords...)

// KeywordClassifier returns a classifier that treats a location as offshore
// when it contains any of keywords. Matching ignores case and accents.
func KeywordClassifier(keywords ...string) LocationClassifier {
	folded := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = fold(strings.TrimSpace(k)); k != "" {
			folded = append(folded, k)
		}
	}

	return func(location string) bool {
		loc := fold(location)
		for _, k := range folded {
			if strings.Contains(loc, k) {
				return false
			}
		}
		return true
	}
}

// fold strips diacritics and case-folds s. Transformers carry state, so a
// fresh chain is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
