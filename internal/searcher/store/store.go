// Package store holds the read-only, process-wide inverted index. A Store is
// built exactly once per process from the merged snapshot and never mutated
// afterward, so it is safe to share across arbitrarily many concurrent query
// evaluations without locking.
package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docshub/docsearch/internal/searcher/fuzzy"
	"github.com/docshub/docsearch/internal/snapshot"
)

// Store exposes immutable views over the merged snapshot plus the derived
// structures queries need: a document lookup by id, per-index fuzzy
// matchers, and lowercased section headings.
type Store struct {
	snap     *snapshot.Snapshot
	docsByID map[string]snapshot.Document
	projects map[string]snapshot.Project

	sections []Section

	termFuzzy  *fuzzy.Matcher
	titleFuzzy *fuzzy.Matcher
}

// Section is one section heading with its lowercased form precomputed for
// substring matching.
type Section struct {
	Title   string
	Lowered string
	Refs    []snapshot.SectionRef
}

// Load reads the snapshot at path and builds a Store. A missing or
// schema-incompatible snapshot is returned as an error; serving without it
// would silently return empty results, so callers treat this as fatal.
func Load(path string) (*Store, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return nil, err
	}
	return New(snap)
}

// New builds a Store from an already-loaded snapshot, validating the
// referential invariants the scorer relies on.
func New(snap *snapshot.Snapshot) (*Store, error) {
	s := &Store{
		snap:     snap,
		docsByID: make(map[string]snapshot.Document, len(snap.Documents)),
		projects: make(map[string]snapshot.Project, len(snap.Projects)),
	}
	for _, p := range snap.Projects {
		s.projects[p.ID] = p
	}
	for _, doc := range snap.Documents {
		if _, dup := s.docsByID[doc.ID]; dup {
			return nil, fmt.Errorf("snapshot corrupt: duplicate document id %q", doc.ID)
		}
		if _, ok := s.projects[doc.Project]; !ok {
			return nil, fmt.Errorf("snapshot corrupt: document %q references unknown project %q",
				doc.ID, doc.Project)
		}
		s.docsByID[doc.ID] = doc
	}

	// Section headings in sorted order so every scan over them is
	// deterministic.
	titles := make([]string, 0, len(snap.AllTitles))
	for title := range snap.AllTitles {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	s.sections = make([]Section, 0, len(titles))
	for _, title := range titles {
		s.sections = append(s.sections, Section{
			Title:   title,
			Lowered: strings.ToLower(title),
			Refs:    snap.AllTitles[title],
		})
	}

	s.termFuzzy = fuzzy.NewMatcher(sortedKeys(snap.Terms))
	s.titleFuzzy = fuzzy.NewMatcher(sortedKeys(snap.TitleTerms))
	return s, nil
}

// TotalDocs returns the number of documents across all projects.
func (s *Store) TotalDocs() int {
	return len(s.snap.Documents)
}

// Document returns the document with the given namespaced id.
func (s *Store) Document(id string) (snapshot.Document, bool) {
	doc, ok := s.docsByID[id]
	return doc, ok
}

// Project returns the project entry for the given id.
func (s *Store) Project(id string) (snapshot.Project, bool) {
	p, ok := s.projects[id]
	return p, ok
}

// HasProject reports whether the snapshot contains the given project id.
func (s *Store) HasProject(id string) bool {
	_, ok := s.projects[id]
	return ok
}

// Projects returns all project entries in snapshot order.
func (s *Store) Projects() []snapshot.Project {
	return s.snap.Projects
}

// TermDocs returns the body-term postings for term, nil when absent.
func (s *Store) TermDocs(term string) []string {
	return s.snap.Terms[term]
}

// TitleTermDocs returns the title-term postings for term, nil when absent.
func (s *Store) TitleTermDocs(term string) []string {
	return s.snap.TitleTerms[term]
}

// Sections returns all section headings in deterministic order.
func (s *Store) Sections() []Section {
	return s.sections
}

// TermMatcher returns the fuzzy matcher over body-term keys.
func (s *Store) TermMatcher() *fuzzy.Matcher {
	return s.termFuzzy
}

// TitleTermMatcher returns the fuzzy matcher over title-term keys.
func (s *Store) TitleTermMatcher() *fuzzy.Matcher {
	return s.titleFuzzy
}

// GeneratedAt returns the snapshot generation timestamp.
func (s *Store) GeneratedAt() string {
	return s.snap.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
