// Package scorer ranks documents against a tokenized free-text query. It
// combines exact and fuzzy inverted-index matches, smoothed IDF weighting,
// section-title bonuses, and an all-tokens multiplier into a deterministic
// ranked result list. A Scorer is a pure function of its inputs and the
// immutable index: every call allocates its own accumulators, so concurrent
// queries share nothing mutable.
package scorer

import (
	"math"
	"sort"
	"strings"

	"github.com/docshub/docsearch/internal/searcher/store"
	"github.com/docshub/docsearch/internal/searcher/tokenizer"
	"github.com/docshub/docsearch/pkg/metrics"
)

// Weight constants. Fixed in this build; see fuzzy.Threshold for the match
// cutoff that pairs with them.
const (
	WeightBody     = 1.0
	WeightTitle    = 3.0
	WeightSection  = 2.0
	AllTokensBonus = 1.25

	// MaxMatchedSections caps how many matched section headings are kept
	// per result, highest contribution first.
	MaxMatchedSections = 2
)

// Query is one scoring request. Project scopes results to a single project
// id; empty means all projects. Limit truncates the ranked list; zero or
// negative means no truncation.
type Query struct {
	Raw     string
	Project string
	Limit   int
}

// SectionMatch is a matched section heading attached to a result.
type SectionMatch struct {
	Title  string `json:"title"`
	Anchor string `json:"anchor,omitempty"`
}

// Result is one ranked document.
type Result struct {
	DocID        string         `json:"id"`
	Project      string         `json:"project"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Score        float64        `json:"score"`
	MatchedStems []string       `json:"matchedStems"`
	Sections     []SectionMatch `json:"sections,omitempty"`
}

// Response is the full query-interface payload: the ranked results plus the
// metadata the serving layer echoes back.
type Response struct {
	Query        string   `json:"query"`
	Project      string   `json:"project,omitempty"`
	Returned     int      `json:"returned"`
	TotalMatches int      `json:"totalMatches"`
	DurationMs   float64  `json:"durationMs"`
	Results      []Result `json:"results"`
}

// Scorer evaluates queries against the shared read-only store.
type Scorer struct {
	store   *store.Store
	metrics *metrics.Metrics
}

// New creates a Scorer. metrics may be nil.
func New(s *store.Store, m *metrics.Metrics) *Scorer {
	return &Scorer{store: s, metrics: m}
}

type sectionHit struct {
	title        string
	anchor       string
	contribution float64
}

// accumulator holds one query evaluation's private state.
type accumulator struct {
	scores   map[string]float64
	matched  map[string]map[string]struct{}
	sections map[string][]sectionHit
}

// Search ranks documents for the query and returns the truncated result list
// plus the total number of matching documents before truncation. A query
// that tokenizes to nothing short-circuits before touching the index.
func (s *Scorer) Search(q Query) ([]Result, int) {
	tokens := tokenizer.Tokenize(q.Raw)
	stems := tokenizer.Stems(tokens)
	if len(stems) == 0 {
		return []Result{}, 0
	}

	acc := &accumulator{
		scores:   make(map[string]float64),
		matched:  make(map[string]map[string]struct{}),
		sections: make(map[string][]sectionHit),
	}

	for _, stem := range stems {
		s.scoreStem(acc, q, stem)
	}
	s.scoreSections(acc, q, stems)

	results := s.collect(acc, stems)
	total := len(results)
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}
	return results, total
}

// scoreStem applies exact title- and body-index matches for one stem, falling
// back to fuzzy matching against each index independently only when the stem
// has no exact hit in either.
func (s *Scorer) scoreStem(acc *accumulator, q Query, stem string) {
	titleDocs := s.store.TitleTermDocs(stem)
	bodyDocs := s.store.TermDocs(stem)
	if len(titleDocs) > 0 || len(bodyDocs) > 0 {
		s.applyMatch(acc, q, stem, titleDocs, WeightTitle, 1.0)
		s.applyMatch(acc, q, stem, bodyDocs, WeightBody, 1.0)
		return
	}

	if m := s.store.TitleTermMatcher().BestMatch(stem); m != nil {
		s.countFuzzy(true)
		s.applyMatch(acc, q, stem, s.store.TitleTermDocs(m.Term), WeightTitle, m.Similarity)
	} else {
		s.countFuzzy(false)
	}
	if m := s.store.TermMatcher().BestMatch(stem); m != nil {
		s.countFuzzy(true)
		s.applyMatch(acc, q, stem, s.store.TermDocs(m.Term), WeightBody, m.Similarity)
	} else {
		s.countFuzzy(false)
	}
}

// applyMatch adds weight × idf × damping to every in-scope document holding
// the matched term. damping is 1.0 for exact matches and the Jaro-Winkler
// similarity (>= fuzzy.Threshold) for fuzzy ones, so a near-miss never
// outscores an exact match of equal frequency.
func (s *Scorer) applyMatch(acc *accumulator, q Query, stem string, docs []string, weight, damping float64) {
	if len(docs) == 0 {
		return
	}
	w := weight * s.idf(len(docs)) * damping
	for _, id := range docs {
		if !inScope(q, id) {
			continue
		}
		acc.scores[id] += w
		acc.mark(id, stem)
	}
}

// scoreSections scans every section heading once and credits each document
// referencing a heading that contains one or more query stems as substrings.
func (s *Scorer) scoreSections(acc *accumulator, q Query, stems []string) {
	for _, section := range s.store.Sections() {
		var hits []string
		for _, stem := range stems {
			if strings.Contains(section.Lowered, stem) {
				hits = append(hits, stem)
			}
		}
		if len(hits) == 0 {
			continue
		}
		bonus := WeightSection * float64(len(hits))
		for _, ref := range section.Refs {
			if !inScope(q, ref.DocID) {
				continue
			}
			acc.scores[ref.DocID] += bonus
			for _, stem := range hits {
				acc.mark(ref.DocID, stem)
			}
			acc.sections[ref.DocID] = append(acc.sections[ref.DocID], sectionHit{
				title:        section.Title,
				anchor:       ref.Anchor,
				contribution: bonus,
			})
		}
	}
}

// collect resolves scored ids into Results, applies the all-tokens bonus,
// and sorts deterministically: score descending, then title, then id.
func (s *Scorer) collect(acc *accumulator, stems []string) []Result {
	multiStem := len(stems) > 1
	results := make([]Result, 0, len(acc.scores))
	for id, score := range acc.scores {
		doc, ok := s.store.Document(id)
		if !ok {
			continue
		}
		matched := acc.matched[id]
		// A single-stem query trivially matches all stems and gets no
		// free multiplier.
		if multiStem && len(matched) == len(stems) {
			score *= AllTokensBonus
		}
		results = append(results, Result{
			DocID:        id,
			Project:      doc.Project,
			Title:        doc.Title,
			URL:          doc.URL,
			Score:        score,
			MatchedStems: sortedStems(matched),
			Sections:     topSections(acc.sections[id]),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Title != results[j].Title {
			return results[i].Title < results[j].Title
		}
		return results[i].DocID < results[j].DocID
	})
	return results
}

// idf is a smoothed inverse document frequency: always positive, higher for
// rarer terms, and defined even for n = 0.
func (s *Scorer) idf(n int) float64 {
	return math.Log(float64(s.store.TotalDocs()+1)/float64(n+1)) + 1
}

func (s *Scorer) countFuzzy(matched bool) {
	if s.metrics == nil {
		return
	}
	outcome := "unmatched"
	if matched {
		outcome = "matched"
	}
	s.metrics.FuzzyFallbacksTotal.WithLabelValues(outcome).Inc()
}

// inScope filters by namespaced id prefix before any score is accumulated,
// so out-of-scope documents cost nothing.
func inScope(q Query, docID string) bool {
	if q.Project == "" {
		return true
	}
	return strings.HasPrefix(docID, q.Project+":")
}

func (acc *accumulator) mark(docID, stem string) {
	set, ok := acc.matched[docID]
	if !ok {
		set = make(map[string]struct{}, 4)
		acc.matched[docID] = set
	}
	set[stem] = struct{}{}
}

func sortedStems(set map[string]struct{}) []string {
	stems := make([]string, 0, len(set))
	for stem := range set {
		stems = append(stems, stem)
	}
	sort.Strings(stems)
	return stems
}

// topSections orders a document's matched headings by contribution and keeps
// the best MaxMatchedSections.
func topSections(hits []sectionHit) []SectionMatch {
	if len(hits) == 0 {
		return nil
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].contribution != hits[j].contribution {
			return hits[i].contribution > hits[j].contribution
		}
		return hits[i].title < hits[j].title
	})
	if len(hits) > MaxMatchedSections {
		hits = hits[:MaxMatchedSections]
	}
	out := make([]SectionMatch, len(hits))
	for i, h := range hits {
		out[i] = SectionMatch{Title: h.title, Anchor: h.anchor}
	}
	return out
}
