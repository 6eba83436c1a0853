// Package merger builds one deterministic, versioned search snapshot from N
// per-project raw indices. It is a single-pass batch job: raw indices are
// parsed concurrently, but accumulation always happens in lexicographic
// project-id order so the output is stable across runs regardless of
// filesystem iteration order.
package merger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docshub/docsearch/internal/merger/project"
	"github.com/docshub/docsearch/internal/merger/rawindex"
	"github.com/docshub/docsearch/internal/snapshot"
	"github.com/docshub/docsearch/pkg/config"
	"github.com/docshub/docsearch/pkg/logger"
)

// RawIndexFile is the per-project raw index artifact the merger consumes.
const RawIndexFile = "searchindex.js"

// Result summarises one merge run.
type Result struct {
	Projects      int
	Documents     int
	Terms         int
	TitleTerms    int
	Sections      int
	Skipped       []string
	SnapshotPath  string
	WroteSnapshot bool
}

// Merger merges per-project raw indices into a snapshot.
type Merger struct {
	cfg config.MergerConfig
	log *slog.Logger
	now func() time.Time
}

// New creates a Merger for the given configuration.
func New(cfg config.MergerConfig) *Merger {
	return &Merger{
		cfg: cfg,
		log: logger.WithComponent("merger"),
		now: time.Now,
	}
}

// Run discovers project directories under the docs root, parses every raw
// index, and writes the merged snapshot. Zero qualifying projects is a clean
// no-op, not an error. A malformed raw index aborts the whole merge: a
// partially merged snapshot is worse than none, since downstream code trusts
// the snapshot unconditionally.
func (m *Merger) Run(ctx context.Context) (*Result, error) {
	ids, skipped, err := m.discover()
	if err != nil {
		return nil, err
	}
	result := &Result{Skipped: skipped, SnapshotPath: m.cfg.SnapshotPath}
	if len(ids) == 0 {
		m.log.Info("no projects with a raw index, nothing to build", "docs_dir", m.cfg.DocsDir)
		return result, nil
	}

	parsed, err := m.parseAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	snap := m.merge(ids, parsed)
	if err := snapshot.Write(m.cfg.SnapshotPath, snap); err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	result.Projects = len(snap.Projects)
	result.Documents = len(snap.Documents)
	result.Terms = len(snap.Terms)
	result.TitleTerms = len(snap.TitleTerms)
	result.Sections = len(snap.AllTitles)
	result.WroteSnapshot = true
	m.log.Info("merge complete",
		"projects", result.Projects,
		"documents", result.Documents,
		"terms", result.Terms,
		"snapshot", m.cfg.SnapshotPath,
	)
	return result, nil
}

// discover lists candidate project directories and partitions them into
// qualifying ids (sorted lexicographically) and skipped ids.
func (m *Merger) discover() (ids, skipped []string, err error) {
	entries, err := os.ReadDir(m.cfg.DocsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading docs dir %s: %w", m.cfg.DocsDir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		rawPath := filepath.Join(m.cfg.DocsDir, id, RawIndexFile)
		if _, statErr := os.Stat(rawPath); statErr != nil {
			m.log.Warn("skipping project without a raw index", "project", id)
			skipped = append(skipped, id)
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sort.Strings(skipped)
	return ids, skipped, nil
}

// parseAll parses raw indices concurrently, bounded by the configured
// parallelism. The first malformed index cancels the rest.
func (m *Merger) parseAll(ctx context.Context, ids []string) (map[string]*rawindex.Index, error) {
	parsed := make(map[string]*rawindex.Index, len(ids))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Parallelism)
	results := make([]*rawindex.Index, len(ids))
	for i, id := range ids {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx, err := rawindex.ParseFile(filepath.Join(m.cfg.DocsDir, id, RawIndexFile))
			if err != nil {
				return err
			}
			results[i] = idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		parsed[id] = results[i]
	}
	return parsed, nil
}

// merge folds the parsed indices into one snapshot, strictly in the given
// (sorted) id order. Accumulators are plain Go maps, so any string is a safe
// term key; nothing here special-cases reserved names.
func (m *Merger) merge(ids []string, parsed map[string]*rawindex.Index) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Version:     snapshot.Version,
		GeneratedAt: m.now().UTC(),
		Terms:       make(map[string][]string),
		TitleTerms:  make(map[string][]string),
		AllTitles:   make(map[string][]snapshot.SectionRef),
	}

	for _, id := range ids {
		idx := parsed[id]
		res := project.Resolve(filepath.Join(m.cfg.DocsDir, id), id)
		quickLinks := res.QuickLinks
		if len(quickLinks) == 0 {
			quickLinks = project.DefaultQuickLinks(res.BasePath)
		}

		snap.Projects = append(snap.Projects, snapshot.Project{
			ID:         id,
			BasePath:   res.BasePath,
			External:   res.External,
			DocCount:   len(idx.Filenames),
			IndexedAt:  snap.GeneratedAt,
			QuickLinks: quickLinks,
		})

		for i, filename := range idx.Filenames {
			snap.Documents = append(snap.Documents, snapshot.Document{
				ID:       docID(id, i),
				Project:  id,
				Filename: filename,
				Title:    CleanTitle(idx.Titles[i]),
				URL:      res.DocumentURL(filename),
			})
		}

		for term, postings := range idx.Terms {
			for _, i := range postings {
				snap.Terms[term] = append(snap.Terms[term], docID(id, i))
			}
		}
		for term, postings := range idx.TitleTerms {
			for _, i := range postings {
				snap.TitleTerms[term] = append(snap.TitleTerms[term], docID(id, i))
			}
		}
		for title, entries := range idx.AllTitles {
			for _, entry := range entries {
				snap.AllTitles[title] = append(snap.AllTitles[title], snapshot.SectionRef{
					DocID:  docID(id, entry.DocIndex),
					Anchor: entry.Anchor,
				})
			}
		}
	}

	// The sort is purely for diff-friendly, reproducible serialization;
	// ranking never depends on posting order.
	for term := range snap.Terms {
		sort.Strings(snap.Terms[term])
	}
	for term := range snap.TitleTerms {
		sort.Strings(snap.TitleTerms[term])
	}
	return snap
}

func docID(projectID string, localIndex int) string {
	return fmt.Sprintf("%s:%d", projectID, localIndex)
}
