package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshub/docsearch/internal/searcher/scorer"
	"github.com/docshub/docsearch/pkg/config"
	pkgredis "github.com/docshub/docsearch/pkg/redis"
)

// skipIfNoRedis skips the test when Redis is unavailable.
func skipIfNoRedis(t *testing.T) *QueryCache {
	t.Helper()
	addr := os.Getenv("DS_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	cfg := config.RedisConfig{Addr: addr, PoolSize: 2, CacheTTL: 10 * time.Second}
	client, err := pkgredis.NewClient(cfg)
	if err != nil {
		t.Skipf("skipping cache test: redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client, cfg)
}

func TestGetOrComputeRoundTrip(t *testing.T) {
	qc := skipIfNoRedis(t)
	ctx := context.Background()
	require.NoError(t, qc.Invalidate(ctx))

	q := scorer.Query{Raw: fmt.Sprintf("roundtrip %d", time.Now().UnixNano()), Limit: 20}
	want := &scorer.Response{Query: q.Raw, Returned: 1, TotalMatches: 1, Results: []scorer.Result{
		{DocID: "alpha:0", Project: "alpha", Title: "Alpha", URL: "/alpha/index.html", Score: 1.5},
	}}

	computed := 0
	compute := func() (*scorer.Response, error) {
		computed++
		return want, nil
	}

	resp, hit, err := qc.GetOrCompute(ctx, q, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, want.Results, resp.Results)
	assert.Equal(t, 1, computed)

	resp, hit, err = qc.GetOrCompute(ctx, q, compute)
	require.NoError(t, err)
	assert.True(t, hit, "second identical lookup must be served from cache")
	assert.Equal(t, want.Results, resp.Results)
	assert.Equal(t, 1, computed, "compute must not run again on a hit")
}

func TestGetOrComputePropagatesError(t *testing.T) {
	qc := skipIfNoRedis(t)
	ctx := context.Background()

	q := scorer.Query{Raw: fmt.Sprintf("failing %d", time.Now().UnixNano())}
	wantErr := errors.New("engine exploded")
	_, _, err := qc.GetOrCompute(ctx, q, func() (*scorer.Response, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// Nothing cached for the failed key.
	_, ok := qc.Get(ctx, q)
	assert.False(t, ok)
}

func TestInvalidateClearsKeys(t *testing.T) {
	qc := skipIfNoRedis(t)
	ctx := context.Background()

	q := scorer.Query{Raw: fmt.Sprintf("invalidate %d", time.Now().UnixNano())}
	qc.Set(ctx, q, &scorer.Response{Query: q.Raw})
	_, ok := qc.Get(ctx, q)
	require.True(t, ok)

	require.NoError(t, qc.Invalidate(ctx))
	_, ok = qc.Get(ctx, q)
	assert.False(t, ok)
}

func TestKeyDistinguishesQueryProjectLimit(t *testing.T) {
	qc := &QueryCache{}
	base := scorer.Query{Raw: "neural", Project: "alpha", Limit: 20}

	assert.NotEqual(t, qc.buildKey(base), qc.buildKey(scorer.Query{Raw: "neural", Project: "beta", Limit: 20}))
	assert.NotEqual(t, qc.buildKey(base), qc.buildKey(scorer.Query{Raw: "neural", Project: "alpha", Limit: 10}))
	assert.NotEqual(t, qc.buildKey(base), qc.buildKey(scorer.Query{Raw: "network", Project: "alpha", Limit: 20}))
	assert.Equal(t, qc.buildKey(base), qc.buildKey(base))
}
