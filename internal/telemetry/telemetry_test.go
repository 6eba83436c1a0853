package telemetry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackAndRecentOrder(t *testing.T) {
	r := NewRecorder(8)
	for i := 0; i < 3; i++ {
		r.Track(SearchEvent{Query: fmt.Sprintf("q%d", i), TotalMatches: 1})
	}

	recent := r.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "q2", recent[0].Query, "newest first")
	assert.Equal(t, "q1", recent[1].Query)
	assert.Equal(t, "q0", recent[2].Query)
	assert.False(t, recent[0].Timestamp.IsZero(), "timestamp filled when absent")
}

func TestRecentLimitsCount(t *testing.T) {
	r := NewRecorder(8)
	for i := 0; i < 5; i++ {
		r.Track(SearchEvent{Query: fmt.Sprintf("q%d", i)})
	}

	recent := r.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "q4", recent[0].Query)
	assert.Equal(t, "q3", recent[1].Query)
}

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRecorder(4)
	for i := 0; i < 6; i++ {
		r.Track(SearchEvent{Query: fmt.Sprintf("q%d", i), TotalMatches: 1})
	}

	recent := r.Recent(0)
	require.Len(t, recent, 4)
	assert.Equal(t, "q5", recent[0].Query)
	assert.Equal(t, "q2", recent[3].Query, "q0 and q1 were overwritten")

	// Lifetime counters survive the overwrite.
	stats := r.Snapshot()
	assert.Equal(t, int64(6), stats.TotalSearches)
	assert.Equal(t, 4, stats.Buffered)
	assert.Equal(t, 4, stats.BufferSize)
}

func TestSnapshotAggregates(t *testing.T) {
	r := NewRecorder(16)
	r.Track(SearchEvent{Query: "neural", TotalMatches: 3, LatencyMs: 2, CacheHit: true})
	r.Track(SearchEvent{Query: "neural", TotalMatches: 3, LatencyMs: 4})
	r.Track(SearchEvent{Query: "missing", TotalMatches: 0, LatencyMs: 6})

	stats := r.Snapshot()
	assert.Equal(t, int64(3), stats.TotalSearches)
	assert.Equal(t, int64(1), stats.ZeroResultCount)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.InDelta(t, 4.0, stats.AvgLatencyMs, 1e-9)
	assert.Equal(t, 4.0, stats.P50LatencyMs)

	require.NotEmpty(t, stats.TopQueries)
	assert.Equal(t, QueryCount{Query: "neural", Count: 2}, stats.TopQueries[0])
}

func TestSnapshotEmptyRecorder(t *testing.T) {
	r := NewRecorder(4)
	stats := r.Snapshot()
	assert.Zero(t, stats.TotalSearches)
	assert.Zero(t, stats.AvgLatencyMs)
	assert.Zero(t, stats.Buffered)
	assert.Empty(t, stats.TopQueries)
}

func TestZeroCapacityDefaults(t *testing.T) {
	r := NewRecorder(0)
	stats := r.Snapshot()
	assert.Equal(t, 1024, stats.BufferSize)
}
