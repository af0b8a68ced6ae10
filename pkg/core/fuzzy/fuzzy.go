// Package fuzzy implements the text-similarity ratios the field extractor
// and reranker need: a whole-string ratio, a partial (substring window)
// ratio, and a token-sort ratio, all derived from Levenshtein edit distance
// the way fuzzywuzzy-style libraries build them on top of a raw
// edit-distance primitive.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Ratio returns a similarity score in [0,1] between a and b, derived from
// normalized Levenshtein distance: 1 - distance/max(len(a), len(b)).
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// PartialRatio finds the best-aligned substring of the longer string against
// the shorter one and returns its Ratio. This is what lets a short candidate
// like "tracto" score highly against a long description that contains it as
// one of several words, mirroring fuzzywuzzy's partial_ratio.
func PartialRatio(a, b string) float64 {
	shorter, longer := a, b
	if len([]rune(a)) > len([]rune(b)) {
		shorter, longer = b, a
	}
	if shorter == "" {
		if longer == "" {
			return 1.0
		}
		return 0.0
	}
	sRunes := []rune(shorter)
	lRunes := []rune(longer)
	if len(sRunes) >= len(lRunes) {
		return Ratio(shorter, longer)
	}

	best := 0.0
	windowLen := len(sRunes)
	for start := 0; start+windowLen <= len(lRunes); start++ {
		window := string(lRunes[start : start+windowLen])
		score := Ratio(shorter, window)
		if score > best {
			best = score
		}
	}
	return best
}

// TokenSortRatio tokenizes both strings on whitespace, sorts the tokens
// alphabetically, rejoins, and compares — so word order differences between
// a candidate value and the free-text description don't depress the score.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// Best returns the maximum of PartialRatio and TokenSortRatio, plus which
// variant won — used by the field-match procedure's fuzzy stage to select a
// method label for the winning score.
func Best(a, b string) (score float64, method string) {
	partial := PartialRatio(a, b)
	tokenSort := TokenSortRatio(a, b)
	if partial >= tokenSort {
		return partial, "fuzzy_partial"
	}
	return tokenSort, "fuzzy_token"
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
