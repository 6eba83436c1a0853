package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docshub/docsearch/pkg/errors"
)

func sample() *Snapshot {
	return &Snapshot{
		Version:     Version,
		GeneratedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Projects: []Project{{
			ID:       "alpha",
			BasePath: "/alpha",
			DocCount: 1,
			QuickLinks: []QuickLink{
				{Title: "Documentation", URL: "/alpha/"},
			},
		}},
		Documents: []Document{{
			ID: "alpha:0", Project: "alpha", Filename: "index.html",
			Title: "Alpha", URL: "/alpha/index.html",
		}},
		Terms:      map[string][]string{"alpha": {"alpha:0"}},
		TitleTerms: map[string][]string{"alpha": {"alpha:0"}},
		AllTitles: map[string][]SectionRef{
			"Overview": {{DocID: "alpha:0", Anchor: "overview"}},
		},
	}
}

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "snap.json")
	require.NoError(t, Write(path, sample()))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sample(), loaded)
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	require.NoError(t, Write(path, sample()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap.json", entries[0].Name())
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotMissing))
}

func TestLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "2"}`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrSnapshotVersion))
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadInitializesEmptyTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": "1"}`), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, loaded.Terms)
	assert.NotNil(t, loaded.TitleTerms)
	assert.NotNil(t, loaded.AllTitles)
}
