// Package snapshot defines the merged search-index snapshot schema shared by
// the merge pipeline (writer) and the query service (reader), plus atomic
// file IO with schema-version checking.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/docshub/docsearch/pkg/errors"
)

// Version is the snapshot schema version this build reads and writes.
const Version = "1"

// Project describes one merged source project.
type Project struct {
	ID         string      `json:"id"`
	BasePath   string      `json:"basePath"`
	External   bool        `json:"external"`
	DocCount   int         `json:"docCount"`
	IndexedAt  time.Time   `json:"indexedAt"`
	QuickLinks []QuickLink `json:"quickLinks"`
}

// QuickLink is a curated entry link for a project.
type QuickLink struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Subtitle string `json:"subtitle,omitempty"`
}

// Document is one page of one project, addressed by a globally unique id of
// the form "<projectId>:<localIndex>".
type Document struct {
	ID       string `json:"id"`
	Project  string `json:"project"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// SectionRef points a section heading at a document and optional anchor.
type SectionRef struct {
	DocID  string `json:"docId"`
	Anchor string `json:"anchor,omitempty"`
}

// Snapshot is the complete merged search index.
type Snapshot struct {
	Version     string                  `json:"version"`
	GeneratedAt time.Time               `json:"generatedAt"`
	Projects    []Project               `json:"projects"`
	Documents   []Document              `json:"documents"`
	Terms       map[string][]string     `json:"terms"`
	TitleTerms  map[string][]string     `json:"titleterms"`
	AllTitles   map[string][]SectionRef `json:"alltitles"`
}

// Write serialises the snapshot atomically: it writes to a temp file in the
// target directory and renames on success, so readers never observe a
// partially written snapshot.
func Write(path string, snap *Snapshot) error {
	if snap.Version == "" {
		snap.Version = Version
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}
	return nil
}

// Load reads and validates a snapshot. A missing file or a schema version
// other than Version is an error; callers treat both as fatal at startup.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	if snap.Version != Version {
		return nil, fmt.Errorf("%w: snapshot %s has version %q, want %q",
			apperrors.ErrSnapshotVersion, path, snap.Version, Version)
	}
	if snap.Terms == nil {
		snap.Terms = make(map[string][]string)
	}
	if snap.TitleTerms == nil {
		snap.TitleTerms = make(map[string][]string)
	}
	if snap.AllTitles == nil {
		snap.AllTitles = make(map[string][]SectionRef)
	}
	return &snap, nil
}
