// Package handler is the thin HTTP layer over the scorer: it validates
// request parameters, consults the optional query cache, and forwards to the
// engine. No ranking logic lives here.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docshub/docsearch/internal/searcher/cache"
	"github.com/docshub/docsearch/internal/searcher/scorer"
	"github.com/docshub/docsearch/internal/searcher/store"
	"github.com/docshub/docsearch/internal/telemetry"
	"github.com/docshub/docsearch/pkg/config"
	apperrors "github.com/docshub/docsearch/pkg/errors"
	"github.com/docshub/docsearch/pkg/logger"
	"github.com/docshub/docsearch/pkg/metrics"
	"github.com/docshub/docsearch/pkg/middleware"
)

// Handler serves the search API.
type Handler struct {
	store    *store.Store
	scorer   *scorer.Scorer
	cache    *cache.QueryCache
	recorder *telemetry.Recorder
	metrics  *metrics.Metrics
	cfg      config.SearchConfig
	log      *slog.Logger
}

// New creates a Handler. cache, recorder, and m may be nil.
func New(
	st *store.Store,
	sc *scorer.Scorer,
	qc *cache.QueryCache,
	recorder *telemetry.Recorder,
	m *metrics.Metrics,
	cfg config.SearchConfig,
) *Handler {
	return &Handler{
		store:    st,
		scorer:   sc,
		cache:    qc,
		recorder: recorder,
		metrics:  m,
		cfg:      cfg,
		log:      logger.WithComponent("search-handler"),
	}
}

// Search handles GET /api/v1/search?q=...&project=...&limit=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	q, err := h.parseQuery(r)
	if err != nil {
		h.countQuery("error")
		h.writeError(w, err)
		return
	}

	var resp *scorer.Response
	cacheHit := false
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, q, func() (*scorer.Response, error) {
			return h.evaluate(q), nil
		})
		if err != nil {
			h.countQuery("error")
			h.writeError(w, err)
			return
		}
		h.countCache(cacheHit)
		// Copy: singleflight can hand the same pointer to several
		// concurrent requests.
		respCopy := *resp
		resp = &respCopy
	} else {
		resp = h.evaluate(q)
	}

	latency := time.Since(start)
	resp.DurationMs = float64(latency.Microseconds()) / 1000

	h.observe(resp, cacheHit, latency)
	log.Info("search completed",
		"query", q.Raw,
		"project", q.Project,
		"total_matches", resp.TotalMatches,
		"returned", resp.Returned,
		"cache_hit", cacheHit,
		"latency_ms", resp.DurationMs,
	)
	if h.recorder != nil {
		h.recorder.Track(telemetry.SearchEvent{
			Query:        q.Raw,
			Project:      q.Project,
			TotalMatches: resp.TotalMatches,
			Returned:     resp.Returned,
			LatencyMs:    resp.DurationMs,
			CacheHit:     cacheHit,
			RequestID:    middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Projects handles GET /api/v1/projects, listing merged projects with their
// quick-links.
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generatedAt": h.store.GeneratedAt(),
		"projects":    h.store.Projects(),
	})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate handles POST /api/v1/cache/invalidate.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseQuery(r *http.Request) (scorer.Query, error) {
	raw := r.URL.Query().Get("q")
	if raw == "" {
		return scorer.Query{}, apperrors.New(apperrors.ErrInvalidQuery,
			http.StatusBadRequest, "query parameter 'q' is required")
	}
	if len(raw) > h.cfg.MaxQueryLength {
		return scorer.Query{}, apperrors.Newf(apperrors.ErrInvalidQuery,
			http.StatusBadRequest, "query exceeds %d characters", h.cfg.MaxQueryLength)
	}

	q := scorer.Query{Raw: raw, Limit: h.cfg.DefaultLimit}

	if project := r.URL.Query().Get("project"); project != "" {
		// Unknown scope is "not found", distinct from a valid scope with
		// no results.
		if !h.store.HasProject(project) {
			return scorer.Query{}, apperrors.Newf(apperrors.ErrProjectNotFound,
				http.StatusNotFound, "unknown project %q", project)
		}
		q.Project = project
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return scorer.Query{}, apperrors.New(apperrors.ErrInvalidQuery,
				http.StatusBadRequest, "limit must be a positive integer")
		}
		if limit > h.cfg.MaxResults {
			limit = h.cfg.MaxResults
		}
		q.Limit = limit
	}
	return q, nil
}

func (h *Handler) evaluate(q scorer.Query) *scorer.Response {
	results, total := h.scorer.Search(q)
	return &scorer.Response{
		Query:        q.Raw,
		Project:      q.Project,
		Returned:     len(results),
		TotalMatches: total,
		Results:      results,
	}
}

func (h *Handler) observe(resp *scorer.Response, cacheHit bool, latency time.Duration) {
	if h.metrics == nil {
		return
	}
	resultType := "hit"
	if resp.TotalMatches == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchResultsCount.Observe(float64(resp.Returned))
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	} else if h.cache == nil {
		cacheStatus = "none"
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
}

func (h *Handler) countQuery(resultType string) {
	if h.metrics != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (h *Handler) countCache(hit bool) {
	if h.metrics == nil {
		return
	}
	if hit {
		h.metrics.CacheHitsTotal.Inc()
	} else {
		h.metrics.CacheMissesTotal.Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error("writing response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
