// Package rawindex parses a single project's raw on-disk search index. The
// file is expected to be exactly one wrapper call of the form
// `SomeIdentifier({ ...json... })`; the wrapper is stripped syntactically and
// the payload parsed as JSON. Any deviation is a FormatError, which callers
// treat as fatal for the whole merge: a corrupt index silently merged would
// corrupt global term ids.
package rawindex

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	apperrors "github.com/docshub/docsearch/pkg/errors"
)

// wrapperRe matches `Identifier( ... )`, where the identifier may be dotted
// (`Search.setIndex`), with an optional trailing semicolon. The payload is
// captured; no JavaScript evaluation is involved.
var wrapperRe = regexp.MustCompile(`(?s)\A\s*[A-Za-z_$][A-Za-z0-9_$]*(?:\.[A-Za-z_$][A-Za-z0-9_$]*)*\s*\((.*)\)\s*;?\s*\z`)

// FormatError reports a raw index file that does not match the expected
// wrapper-plus-JSON shape, naming the offending path.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("raw index %s: %s", e.Path, e.Reason)
}

func (e *FormatError) Unwrap() error {
	return apperrors.ErrRawIndexFormat
}

// Postings is a list of local document indices. The wire format allows a
// bare number or an array of numbers; both are normalized to this shape at
// parse time so the union never escapes the package.
type Postings []int

// UnmarshalJSON accepts `3` and `[3, 7]` alike.
func (p *Postings) UnmarshalJSON(data []byte) error {
	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*p = Postings{single}
		return nil
	}
	var many []int
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("postings must be a number or an array of numbers")
	}
	*p = Postings(many)
	return nil
}

// SectionEntry is one (local document index, optional anchor) pair from the
// alltitles table, encoded on the wire as `[index, anchor-or-null]`.
type SectionEntry struct {
	DocIndex int
	Anchor   string
}

// UnmarshalJSON decodes the two-element array form.
func (s *SectionEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("section entry must have exactly 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &s.DocIndex); err != nil {
		return fmt.Errorf("section entry index: %w", err)
	}
	var anchor *string
	if err := json.Unmarshal(raw[1], &anchor); err != nil {
		return fmt.Errorf("section entry anchor: %w", err)
	}
	if anchor != nil {
		s.Anchor = *anchor
	}
	return nil
}

// Index is the parsed, normalized per-project search index. Local document
// indices are positional, 0-based, and dense over Filenames.
type Index struct {
	Filenames  []string                  `json:"filenames"`
	Titles     []string                  `json:"titles"`
	Terms      map[string]Postings       `json:"terms"`
	TitleTerms map[string]Postings       `json:"titleterms"`
	AllTitles  map[string][]SectionEntry `json:"alltitles"`
}

// ParseFile reads and parses one raw index file.
func ParseFile(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading raw index: %w", err)
	}
	idx, err := parse(data)
	if err != nil {
		return nil, &FormatError{Path: path, Reason: err.Error()}
	}
	return idx, nil
}

func parse(data []byte) (*Index, error) {
	m := wrapperRe.FindSubmatch(data)
	if m == nil {
		return nil, fmt.Errorf("expected a single `Identifier({...})` wrapper call")
	}
	var idx Index
	if err := json.Unmarshal(m[1], &idx); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %v", err)
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}
	return &idx, nil
}

// validate enforces the structural invariants downstream code relies on.
func (idx *Index) validate() error {
	if len(idx.Titles) != len(idx.Filenames) {
		return fmt.Errorf("titles length %d does not match filenames length %d",
			len(idx.Titles), len(idx.Filenames))
	}
	n := len(idx.Filenames)
	for term, postings := range idx.Terms {
		if err := checkBounds(postings, n); err != nil {
			return fmt.Errorf("term %q: %v", term, err)
		}
	}
	for term, postings := range idx.TitleTerms {
		if err := checkBounds(postings, n); err != nil {
			return fmt.Errorf("title term %q: %v", term, err)
		}
	}
	for title, entries := range idx.AllTitles {
		for _, entry := range entries {
			if entry.DocIndex < 0 || entry.DocIndex >= n {
				return fmt.Errorf("section %q: document index %d out of range [0,%d)",
					title, entry.DocIndex, n)
			}
		}
	}
	return nil
}

func checkBounds(postings Postings, n int) error {
	for _, i := range postings {
		if i < 0 || i >= n {
			return fmt.Errorf("document index %d out of range [0,%d)", i, n)
		}
	}
	return nil
}
