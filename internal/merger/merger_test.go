package merger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshub/docsearch/internal/snapshot"
	"github.com/docshub/docsearch/pkg/config"
)

const alphaRaw = `Search.setIndex({
	"filenames": ["index.html", "guide.html"],
	"titles": ["Alpha <em>Overview</em>", "Guide &amp; Tips"],
	"terms": {"alpha": [0, 1], "guid": 1, "shar": 0},
	"titleterms": {"alpha": 0},
	"alltitles": {"Getting Started": [[0, "getting-started"]], "Reference": [[1, null]]}
})`

const betaRaw = `Search.setIndex({
	"filenames": ["intro.html"],
	"titles": ["Beta Intro"],
	"terms": {"beta": 0, "shar": 0},
	"titleterms": {"beta": 0},
	"alltitles": {"Getting Started": [[0, null]]}
})`

func writeProject(t *testing.T, root, id, raw string, extra map[string]string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if raw != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, RawIndexFile), []byte(raw), 0o644))
	}
	for name, content := range extra {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func runMerge(t *testing.T, root string) (*Result, *snapshot.Snapshot) {
	t.Helper()
	cfg := config.MergerConfig{
		DocsDir:      root,
		SnapshotPath: filepath.Join(t.TempDir(), "snap.json"),
		Parallelism:  2,
	}
	result, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	if !result.WroteSnapshot {
		return result, nil
	}
	snap, err := snapshot.Load(cfg.SnapshotPath)
	require.NoError(t, err)
	return result, snap
}

func TestRunMergesProjects(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "beta", betaRaw, map[string]string{"index.html": "<html></html>"})
	writeProject(t, root, "alpha", alphaRaw, map[string]string{"index.html": "<html></html>"})

	result, snap := runMerge(t, root)
	require.True(t, result.WroteSnapshot)
	assert.Equal(t, 2, result.Projects)
	assert.Equal(t, 3, result.Documents)

	// Projects come out in lexicographic id order regardless of creation
	// order.
	require.Len(t, snap.Projects, 2)
	assert.Equal(t, "alpha", snap.Projects[0].ID)
	assert.Equal(t, "beta", snap.Projects[1].ID)
	assert.Equal(t, 2, snap.Projects[0].DocCount)

	// Document ids are namespaced and unique.
	ids := make(map[string]struct{})
	for _, doc := range snap.Documents {
		_, dup := ids[doc.ID]
		require.False(t, dup, "duplicate id %s", doc.ID)
		ids[doc.ID] = struct{}{}
	}
	assert.Contains(t, ids, "alpha:0")
	assert.Contains(t, ids, "alpha:1")
	assert.Contains(t, ids, "beta:0")

	// Shared terms accumulate ids from both projects, sorted.
	assert.Equal(t, []string{"alpha:0", "beta:0"}, snap.Terms["shar"])
	assert.Equal(t, []string{"alpha:0", "alpha:1"}, snap.Terms["alpha"])

	// Section tables merge symmetrically.
	refs := snap.AllTitles["Getting Started"]
	require.Len(t, refs, 2)

	// Titles are stripped of markup and entity-decoded.
	assert.Equal(t, "Alpha Overview", snap.Documents[0].Title)
	assert.Equal(t, "Guide & Tips", snap.Documents[1].Title)
}

func TestRunSkipsProjectsWithoutRawIndex(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "alpha", alphaRaw, map[string]string{"index.html": ""})
	writeProject(t, root, "empty", "", nil)

	result, snap := runMerge(t, root)
	require.True(t, result.WroteSnapshot)
	assert.Equal(t, []string{"empty"}, result.Skipped)
	require.Len(t, snap.Projects, 1)
	assert.Equal(t, "alpha", snap.Projects[0].ID)
}

func TestRunZeroProjectsIsCleanNoop(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "empty", "", nil)

	result, snap := runMerge(t, root)
	assert.False(t, result.WroteSnapshot)
	assert.Nil(t, snap)
	assert.NoFileExists(t, result.SnapshotPath)
}

func TestRunAbortsOnMalformedRawIndex(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "alpha", alphaRaw, nil)
	writeProject(t, root, "broken", `not a wrapper at all`, nil)

	cfg := config.MergerConfig{
		DocsDir:      root,
		SnapshotPath: filepath.Join(t.TempDir(), "snap.json"),
		Parallelism:  2,
	}
	_, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, cfg.SnapshotPath, "a partially merged snapshot must never be written")
}

func TestRunDeterministic(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "alpha", alphaRaw, map[string]string{"index.html": ""})
	writeProject(t, root, "beta", betaRaw, map[string]string{"index.html": ""})

	_, first := runMerge(t, root)
	_, second := runMerge(t, root)

	// Everything except the generation timestamp is byte-deterministic.
	first.GeneratedAt = second.GeneratedAt
	for i := range first.Projects {
		first.Projects[i].IndexedAt = second.Projects[i].IndexedAt
	}
	assert.Equal(t, first, second)
}

func TestRunExternalProject(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "hosted", betaRaw, map[string]string{
		"project-info.json": `{
			"externalBaseUrl": "https://beta.example.com/",
			"externalDocsPath": "docs",
			"suggestedLinks": [{"title": "Home", "path": "/", "subtitle": "Main site"}]
		}`,
	})

	_, snap := runMerge(t, root)
	require.Len(t, snap.Projects, 1)
	p := snap.Projects[0]
	assert.True(t, p.External)
	assert.Equal(t, "https://beta.example.com", p.BasePath)
	require.Len(t, p.QuickLinks, 1)
	assert.Equal(t, "https://beta.example.com/", p.QuickLinks[0].URL)

	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "https://beta.example.com/docs/intro.html", snap.Documents[0].URL)
}

func TestRunDefaultQuickLinks(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "alpha", alphaRaw, map[string]string{"index.html": ""})

	_, snap := runMerge(t, root)
	require.Len(t, snap.Projects[0].QuickLinks, 1)
	assert.Equal(t, "Documentation", snap.Projects[0].QuickLinks[0].Title)
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plain", "Plain"},
		{"<em>Emphasis</em> kept", "Emphasis kept"},
		{"A &lt;tag&gt; literal", "A <tag> literal"},
		{"Ampersand &amp; more", "Ampersand & more"},
		{"Quotes &quot;here&quot; and &#39;there&#39;", `Quotes "here" and 'there'`},
		{"Non&nbsp;breaking", "Non breaking"},
		{"  <span> padded </span>  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanTitle(tt.in), "input %q", tt.in)
	}
}
