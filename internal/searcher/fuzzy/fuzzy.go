// Package fuzzy finds the closest indexed term to an unmatched query token
// using Jaro-Winkler similarity. It is consulted only after an exact lookup
// misses; absence of a qualifying candidate is a normal miss, never an error.
package fuzzy

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xrash/smetrics"
)

const (
	// Threshold is the minimum Jaro-Winkler similarity for a candidate to
	// qualify as a typo correction.
	Threshold = 0.88
	// maxLenDiff gates the scan: a candidate whose length differs from the
	// token by more than this cannot plausibly be a typo. Performance gate,
	// not correctness.
	maxLenDiff = 4

	memoSize = 4096
)

// Match is a qualifying fuzzy candidate and its similarity in [Threshold, 1].
// The similarity later damps the match weight directly, so a near-miss can
// never outscore a true exact match of equal term frequency.
type Match struct {
	Term       string
	Similarity float64
}

// Matcher scans a fixed key set for the best fuzzy candidate. The key set is
// sorted once at construction so ties always resolve the same way, and
// results are memoised: the linear scan is the only expensive per-query work
// in the whole engine.
type Matcher struct {
	keys []string
	memo *lru.Cache[string, *Match]
}

// NewMatcher builds a Matcher over keys. The slice is assumed sorted; Store
// construction guarantees it.
func NewMatcher(keys []string) *Matcher {
	memo, _ := lru.New[string, *Match](memoSize)
	return &Matcher{keys: keys, memo: memo}
}

// BestMatch returns the closest key to token with similarity >= Threshold,
// or nil when no candidate qualifies.
func (m *Matcher) BestMatch(token string) *Match {
	if token == "" {
		return nil
	}
	if cached, ok := m.memo.Get(token); ok {
		return cached
	}

	var best *Match
	for _, key := range m.keys {
		diff := len(key) - len(token)
		if diff > maxLenDiff || diff < -maxLenDiff {
			continue
		}
		sim := smetrics.JaroWinkler(token, key, 0.7, 4)
		if sim < Threshold {
			continue
		}
		if best == nil || sim > best.Similarity {
			best = &Match{Term: key, Similarity: sim}
		}
	}
	m.memo.Add(token, best)
	return best
}
