package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docshub/docsearch/internal/searcher/cache"
	"github.com/docshub/docsearch/internal/searcher/handler"
	"github.com/docshub/docsearch/internal/searcher/scorer"
	"github.com/docshub/docsearch/internal/searcher/store"
	"github.com/docshub/docsearch/internal/telemetry"
	"github.com/docshub/docsearch/pkg/config"
	"github.com/docshub/docsearch/pkg/health"
	"github.com/docshub/docsearch/pkg/logger"
	"github.com/docshub/docsearch/pkg/metrics"
	"github.com/docshub/docsearch/pkg/middleware"
	pkgredis "github.com/docshub/docsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "snapshot", cfg.Merger.SnapshotPath)

	// The snapshot is loaded exactly once per process lifetime. Serving
	// without it would silently return empty results, so a missing or
	// incompatible snapshot is fatal.
	st, err := store.Load(cfg.Merger.SnapshotPath)
	if err != nil {
		slog.Error("failed to load search snapshot", "error", err)
		os.Exit(1)
	}
	slog.Info("snapshot loaded",
		"projects", len(st.Projects()),
		"documents", st.TotalDocs(),
		"generated_at", st.GeneratedAt(),
	)

	m := metrics.New()
	engine := scorer.New(st, m)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		recorder = telemetry.NewRecorder(cfg.Telemetry.BufferSize)
		slog.Info("telemetry recorder enabled", "buffer_size", cfg.Telemetry.BufferSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()
	checker.Register("index_store", func(ctx context.Context) health.ComponentHealth {
		if st.TotalDocs() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d documents across %d projects", st.TotalDocs(), len(st.Projects())),
			}
		}
		return health.ComponentHealth{Status: health.StatusDegraded, Message: "snapshot is empty"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := handler.New(st, engine, queryCache, recorder, m, cfg.Search)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/projects", h.Projects)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	if recorder != nil {
		mux.HandleFunc("GET /api/v1/telemetry", telemetry.NewHandler(recorder).Stats)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: m.Handler(),
		}
		go func() {
			slog.Info("metrics server listening", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsServer.Close()
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
