// Package cache is an optional Redis-backed cache for search responses.
// Concurrent identical queries are collapsed with singleflight so a cold key
// is computed once. The service degrades gracefully when Redis is absent:
// the handler simply bypasses the cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/docshub/docsearch/internal/searcher/scorer"
	"github.com/docshub/docsearch/pkg/config"
	"github.com/docshub/docsearch/pkg/logger"
	pkgredis "github.com/docshub/docsearch/pkg/redis"
)

const keyPrefix = "docsearch:"

// QueryCache caches scored responses keyed by (query, project, limit).
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	log    *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache over an established Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		log:    logger.WithComponent("query-cache"),
	}
}

// Get returns the cached response for the key, if present.
func (c *QueryCache) Get(ctx context.Context, q scorer.Query) (*scorer.Response, bool) {
	key := c.buildKey(q)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.log.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var resp scorer.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.log.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &resp, true
}

// Set stores a response under the key with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, q scorer.Query, resp *scorer.Response) {
	key := c.buildKey(q)
	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.log.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response or computes and stores it,
// collapsing concurrent computations of the same key.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	q scorer.Query,
	computeFn func() (*scorer.Response, error),
) (*scorer.Response, bool, error) {
	if resp, ok := c.Get(ctx, q); ok {
		return resp, true, nil
	}
	key := c.buildKey(q)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.Get(ctx, q); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, q, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*scorer.Response), false, nil
}

// Invalidate removes every cached response. Used after a snapshot swap at
// deploy time.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.log.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns hit and miss counts since startup.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) buildKey(q scorer.Query) string {
	raw := fmt.Sprintf("q=%s|p=%s|l=%d", q.Raw, q.Project, q.Limit)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
