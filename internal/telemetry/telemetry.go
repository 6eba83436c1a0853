// Package telemetry records search events into a fixed-capacity in-memory
// ring buffer and keeps aggregate counters. It is observation only: nothing
// recorded here ever feeds back into ranking.
package telemetry

import (
	"sort"
	"sync"
	"time"
)

// SearchEvent is one recorded query evaluation.
type SearchEvent struct {
	Query        string    `json:"query"`
	Project      string    `json:"project,omitempty"`
	TotalMatches int       `json:"total_matches"`
	Returned     int       `json:"returned"`
	LatencyMs    float64   `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// Stats is the aggregate view the stats endpoint serves.
type Stats struct {
	TotalSearches   int64        `json:"total_searches"`
	ZeroResultCount int64        `json:"zero_result_count"`
	CacheHits       int64        `json:"cache_hits"`
	AvgLatencyMs    float64      `json:"avg_latency_ms"`
	P50LatencyMs    float64      `json:"p50_latency_ms"`
	P95LatencyMs    float64      `json:"p95_latency_ms"`
	P99LatencyMs    float64      `json:"p99_latency_ms"`
	TopQueries      []QueryCount `json:"top_queries"`
	BufferSize      int          `json:"buffer_size"`
	Buffered        int          `json:"buffered"`
}

// QueryCount pairs a query string with how often it was seen.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Recorder is the ring buffer plus aggregate counters. All methods are safe
// for concurrent use.
type Recorder struct {
	mu          sync.Mutex
	buf         []SearchEvent
	next        int
	filled      bool
	total       int64
	zeroResults int64
	cacheHits   int64
	queryCounts map[string]int64
}

// NewRecorder creates a Recorder holding up to capacity recent events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Recorder{
		buf:         make([]SearchEvent, capacity),
		queryCounts: make(map[string]int64),
	}
}

// Track records one event, overwriting the oldest once the buffer is full.
func (r *Recorder) Track(event SearchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = event
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.filled = true
	}

	r.total++
	if event.TotalMatches == 0 {
		r.zeroResults++
	}
	if event.CacheHit {
		r.cacheHits++
	}
	r.queryCounts[event.Query]++
}

// Recent returns up to n most recent events, newest first.
func (r *Recorder) Recent(n int) []SearchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	buffered := r.buffered()
	if n <= 0 || n > buffered {
		n = buffered
	}
	out := make([]SearchEvent, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Snapshot computes aggregate stats. Latency percentiles cover only the
// events still in the buffer; counters cover the process lifetime.
func (r *Recorder) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	buffered := r.buffered()
	latencies := make([]float64, 0, buffered)
	for i := 0; i < buffered; i++ {
		latencies = append(latencies, r.buf[i].LatencyMs)
	}
	sort.Float64s(latencies)

	stats := Stats{
		TotalSearches:   r.total,
		ZeroResultCount: r.zeroResults,
		CacheHits:       r.cacheHits,
		TopQueries:      r.topQueries(10),
		BufferSize:      len(r.buf),
		Buffered:        buffered,
	}
	if len(latencies) > 0 {
		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.AvgLatencyMs = sum / float64(len(latencies))
		stats.P50LatencyMs = percentile(latencies, 0.50)
		stats.P95LatencyMs = percentile(latencies, 0.95)
		stats.P99LatencyMs = percentile(latencies, 0.99)
	}
	return stats
}

func (r *Recorder) buffered() int {
	if r.filled {
		return len(r.buf)
	}
	return r.next
}

func (r *Recorder) topQueries(n int) []QueryCount {
	counts := make([]QueryCount, 0, len(r.queryCounts))
	for q, c := range r.queryCounts {
		counts = append(counts, QueryCount{Query: q, Count: c})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Query < counts[j].Query
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
