// Package textnorm canonicalizes guesses and reference translations so they
// can be compared for equality.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize case-folds s, strips diacritics and drops everything that is not
// a letter, number, space or hyphen. Casers and transform chains are stateful,
// so a fresh one is built per call.
func Normalize(s string) string {
	folded := cases.Fold().String(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	stripped, _, err := transform.String(t, folded)
	if err != nil {
		stripped = folded
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Equivalent reports whether a and b normalize to the same text.
func Equivalent(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
