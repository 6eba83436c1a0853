// loadtest fires concurrent queries at a running search service and reports
// latency percentiles, throughput, and cache-hit counts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newStats() *stats {
	return &stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *stats) record(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	project := flag.String("project", "", "optional project scope for every query")
	flag.Parse()

	queries := []string{
		"getting started",
		"installation guide",
		"configuration reference",
		"api authentication",
		"deployment kubernetes",
		"troubleshooting errors",
		"release notes",
		"neural network classification",
		"quantum computing",
		"data pipeline tutorial",
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	s := newStats()
	client := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("load test: %s, %d workers, %s\n", *baseURL, *concurrency, *duration)
	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for ctx.Err() == nil {
				q := queries[rng.Intn(len(queries))]
				doQuery(ctx, client, *baseURL, q, *project, s)
			}
		}(int64(i))
	}
	wg.Wait()
	elapsed := time.Since(start)

	report(s, elapsed)
	if s.errorCount.Load() > 0 && s.successCount.Load() == 0 {
		os.Exit(1)
	}
}

func doQuery(ctx context.Context, client *http.Client, baseURL, query, project string, s *stats) {
	params := url.Values{}
	params.Set("q", query)
	if project != "" {
		params.Set("project", project)
	}
	reqURL := baseURL + "/api/v1/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		s.record(0, 0, err)
		return
	}

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.record(latency, 0, err)
		}
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	s.record(latency, resp.StatusCode, nil)
}

func report(s *stats, elapsed time.Duration) {
	s.latenciesMu.Lock()
	latencies := make([]time.Duration, len(s.latencies))
	copy(latencies, s.latencies)
	s.latenciesMu.Unlock()
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	total := s.totalRequests.Load()
	fmt.Printf("\nrequests:  %d (%.1f/s)\n", total, float64(total)/elapsed.Seconds())
	fmt.Printf("success:   %d\n", s.successCount.Load())
	fmt.Printf("errors:    %d\n", s.errorCount.Load())

	s.statusCodesMu.Lock()
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  status %d: %d\n", code, s.statusCodes[code].Load())
	}
	s.statusCodesMu.Unlock()

	if len(latencies) == 0 {
		return
	}
	fmt.Printf("latency p50: %s\n", percentile(latencies, 0.50))
	fmt.Printf("latency p95: %s\n", percentile(latencies, 0.95))
	fmt.Printf("latency p99: %s\n", percentile(latencies, 0.99))
	fmt.Printf("latency max: %s\n", latencies[len(latencies)-1])
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
