// Package fuzzy scores text similarity for ignore, rename and category
// matching.
//
// The scorer is a normalized Levenshtein ratio on a 0-100 scale: identical
// strings score 100, fully disjoint strings score near 0. Three policies
// share it with different threshold semantics; see the ignore, rename and
// category packages.
package fuzzy

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultThreshold is the similarity cutoff used when a rule or mapping
// does not carry its own.
const DefaultThreshold = 70.0

// Score returns the similarity of a and b in [0, 100].
func Score(a, b string) float64 {
	if a == b {
		return 100
	}
	return strutil.Similarity(a, b, metrics.NewLevenshtein()) * 100
}

// Match holds a best-match result.
type Match struct {
	Candidate string
	Index     int
	Score     float64
}

// BestMatch returns the highest-scoring candidate with score >= threshold.
// Ties keep the earliest candidate. Returns ok=false when nothing
// qualifies.
func BestMatch(needle string, candidates []string, threshold float64) (Match, bool) {
	best := Match{Index: -1}
	for i, c := range candidates {
		score := Score(needle, c)
		if score > best.Score {
			best = Match{Candidate: c, Index: i, Score: score}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{Index: -1}, false
	}
	return best, true
}
