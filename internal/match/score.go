// Package match implements the similarity scorer and the tiered query
// matcher that ranks catalog entries against free-text queries.
package match

import (
	"strings"

	"github.com/starford/ansuz/internal/catalog"
)

// Score returns a match strength in [0,1] between two strings, compared
// after lower-casing and trimming.
//
// Exact match scores 1.0 and substring containment 0.8. Otherwise the score
// is a coarse bag heuristic: the count of characters of a that occur
// anywhere in b (membership, not alignment; repeats in a each count),
// divided by the longer length. The fallback branch is not symmetric.
// Downstream thresholds are tuned against exactly this heuristic; do not
// swap in an edit-distance metric.
//
// Callers must not pass two empty strings; the matcher rejects sub-2-rune
// queries before scoring.
func Score(a, b string) float64 {
	a = catalog.Normalize(a)
	b = catalog.Normalize(b)

	if a == b {
		return 1.0
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return 0.8
	}

	matches := 0
	for _, c := range a {
		if strings.ContainsRune(b, c) {
			matches++
		}
	}
	longest := len([]rune(a))
	if lb := len([]rune(b)); lb > longest {
		longest = lb
	}
	return float64(matches) / float64(longest)
}
