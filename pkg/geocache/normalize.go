package geocache

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNormalizePasses bounds the fixed-point loop in Normalize
const maxNormalizePasses = 4

// Normalize maps a raw location string to its cache key: diacritics removed,
// case folded, and every run of punctuation, symbols or whitespace collapsed
// to a single space. Strings without letters or digits normalize to "".
//
// Normalize is idempotent: a key normalizes to itself. Case folding alone is
// not (Cherokee folds to its uppercase block), so each pass lowercases after
// folding and passes repeat until the output is stable.
func Normalize(raw string) string {
	out := normalizePass(raw)
	for i := 1; i < maxNormalizePasses; i++ {
		next := normalizePass(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func normalizePass(raw string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		raw,
	)
	if err != nil {
		stripped = raw
	}
	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	gap := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		gap = true
	}
	return b.String()
}
