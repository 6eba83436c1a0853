// Package integration exercises the full pipeline: raw indices on disk are
// merged into a snapshot, the snapshot is loaded into a store, and queries are
// served over HTTP.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshub/docsearch/internal/merger"
	"github.com/docshub/docsearch/internal/searcher/handler"
	"github.com/docshub/docsearch/internal/searcher/scorer"
	"github.com/docshub/docsearch/internal/searcher/store"
	"github.com/docshub/docsearch/internal/snapshot"
	"github.com/docshub/docsearch/pkg/config"
)

const alphaRaw = `Search.setIndex({
  "filenames": ["index.html", "guide.html"],
  "titles": ["Alpha Overview", "Neural Network Guide"],
  "terms": {"neural": 1, "network": [0, 1], "overview": 0},
  "titleterms": {"alpha": 0, "neural": 1, "network": 1},
  "alltitles": {"Network Basics": [[1, "basics"]]}
});`

const betaRaw = `Search.setIndex({
  "filenames": ["index.html"],
  "titles": ["Beta Manual"],
  "terms": {"network": 0, "manual": 0},
  "titleterms": {"beta": 0, "manual": 0},
  "alltitles": {}
});`

// writeDocsTree lays out two qualifying projects plus one directory without a
// raw index.
func writeDocsTree(t *testing.T) string {
	t.Helper()
	docsDir := t.TempDir()
	for id, raw := range map[string]string{"alpha": alphaRaw, "beta": betaRaw} {
		dir := filepath.Join(docsDir, id)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, merger.RawIndexFile), []byte(raw), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(docsDir, "unrendered"), 0o755))
	return docsDir
}

func runMerge(t *testing.T, docsDir, snapshotPath string) *merger.Result {
	t.Helper()
	m := merger.New(config.MergerConfig{
		DocsDir:      docsDir,
		SnapshotPath: snapshotPath,
		Parallelism:  2,
	})
	result, err := m.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.WroteSnapshot)
	return result
}

func TestMergeLoadQuery(t *testing.T) {
	docsDir := writeDocsTree(t)
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")

	result := runMerge(t, docsDir, snapshotPath)
	assert.Equal(t, 2, result.Projects)
	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, []string{"unrendered"}, result.Skipped)

	st, err := store.Load(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalDocs())

	s := scorer.New(st, nil)
	results, total := s.Search(scorer.Query{Raw: "neural network"})
	require.NotZero(t, total)
	assert.Equal(t, "alpha:1", results[0].DocID)
	assert.Equal(t, "Neural Network Guide", results[0].Title)
	assert.Equal(t, "/alpha/guide.html", results[0].URL)
	assert.Equal(t, []string{"network", "neural"}, results[0].MatchedStems)

	// "network" appears in all three documents; scoping to beta drops the
	// alpha hits.
	scoped, scopedTotal := s.Search(scorer.Query{Raw: "network", Project: "beta"})
	require.Equal(t, 1, scopedTotal)
	assert.Equal(t, "beta:0", scoped[0].DocID)
}

func TestSearchOverHTTP(t *testing.T) {
	docsDir := writeDocsTree(t)
	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")
	runMerge(t, docsDir, snapshotPath)

	st, err := store.Load(snapshotPath)
	require.NoError(t, err)

	cfg := config.SearchConfig{DefaultLimit: 20, MaxResults: 100, MaxQueryLength: 256}
	h := handler.New(st, scorer.New(st, nil), nil, nil, nil, cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/projects", h.Projects)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/search?q=manual")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload scorer.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Equal(t, 1, payload.TotalMatches)
	assert.Equal(t, "beta:0", payload.Results[0].DocID)
	assert.Equal(t, "Beta Manual", payload.Results[0].Title)

	projResp, err := http.Get(srv.URL + "/api/v1/projects")
	require.NoError(t, err)
	defer projResp.Body.Close()
	require.Equal(t, http.StatusOK, projResp.StatusCode)

	var projects struct {
		Projects []snapshot.Project `json:"projects"`
	}
	require.NoError(t, json.NewDecoder(projResp.Body).Decode(&projects))
	require.Len(t, projects.Projects, 2)
	assert.Equal(t, "alpha", projects.Projects[0].ID)
	assert.Equal(t, "beta", projects.Projects[1].ID)
}

func TestMergeIsDeterministic(t *testing.T) {
	docsDir := writeDocsTree(t)

	load := func(path string) *snapshot.Snapshot {
		runMerge(t, docsDir, path)
		snap, err := snapshot.Load(path)
		require.NoError(t, err)
		// Normalize timestamps; everything else must be identical.
		snap.GeneratedAt = time.Time{}
		for i := range snap.Projects {
			snap.Projects[i].IndexedAt = time.Time{}
		}
		return snap
	}

	first := load(filepath.Join(t.TempDir(), "first.json"))
	second := load(filepath.Join(t.TempDir(), "second.json"))
	assert.Equal(t, first, second)
}

func TestMergeAbortsOnMalformedIndex(t *testing.T) {
	docsDir := writeDocsTree(t)
	require.NoError(t, os.WriteFile(
		filepath.Join(docsDir, "beta", merger.RawIndexFile),
		[]byte(`Search.setIndex({"filenames": ["a.html"], "titles": []});`), 0o644))

	snapshotPath := filepath.Join(t.TempDir(), "snapshot.json")
	m := merger.New(config.MergerConfig{
		DocsDir:      docsDir,
		SnapshotPath: snapshotPath,
		Parallelism:  2,
	})
	_, err := m.Run(context.Background())
	require.Error(t, err)

	_, statErr := os.Stat(snapshotPath)
	assert.True(t, os.IsNotExist(statErr), "no partial snapshot may be written")
}
