// Package normalize implements the deterministic text cleaning used before
// any field extraction runs against a vehicle description.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	vinPattern    = regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)
)

// diacriticFolder strips combining marks after NFD decomposition, e.g.
// "CAMIÓN" -> "CAMION". A Chain keeps internal buffers and is not safe for
// concurrent use, so a fresh one is built for every call.
func diacriticFolder() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize cleans s deterministically and idempotently: lowercases, folds
// diacritics to ASCII, strips VIN-shaped tokens, collapses whitespace, and
// collapses consecutive duplicate words. It never returns an error — any
// transform failure just falls back to the original string.
func Normalize(s string) string {
	folded, _, err := transform.String(diacriticFolder(), s)
	if err != nil {
		folded = s
	}

	// VIN stripping runs before lowercasing: the VIN pattern is uppercase.
	folded = vinPattern.ReplaceAllString(folded, " ")
	folded = strings.ToLower(folded)
	folded = whitespaceRun.ReplaceAllString(folded, " ")
	folded = strings.TrimSpace(folded)

	folded = collapseDuplicateWords(folded)

	return folded
}

// collapseDuplicateWords turns "tanque tanque" into "tanque". Only
// consecutive duplicates collapse; "auto rojo auto" keeps both "auto"s.
func collapseDuplicateWords(s string) string {
	if s == "" {
		return s
	}
	words := strings.Split(s, " ")
	out := make([]string, 0, len(words))
	for _, w := range words {
		if len(out) > 0 && out[len(out)-1] == w {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
