// Package cache memoises ranked search results in Redis. Concurrent misses
// for the same key are collapsed into a single computation.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search100/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search100/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search100/pkg/redis"
)

const keyPrefix = "search:"

// Client is the subset of the Redis client the cache uses.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	client  Client
	ttl     time.Duration
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(client Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		client:  client,
		ttl:     ttl,
		logger:  slog.Default().With("component", "query-cache"),
		metrics: m,
	}
}

// Get returns the cached results for the query, if any. Redis and decoding
// failures are logged and reported as misses.
func (c *QueryCache) Get(ctx context.Context, query string, strategy executor.Strategy, limit int) ([]executor.Result, bool) {
	key := buildKey(query, strategy, limit)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var results []executor.Result
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return results, true
}

func (c *QueryCache) Set(ctx context.Context, query string, strategy executor.Strategy, limit int, results []executor.Result) {
	key := buildKey(query, strategy, limit)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves the query from the cache or runs compute and stores
// its results. The boolean reports whether the results came from the cache.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	strategy executor.Strategy,
	limit int,
	compute func() ([]executor.Result, error),
) ([]executor.Result, bool, error) {
	if results, ok := c.Get(ctx, query, strategy, limit); ok {
		return results, true, nil
	}
	key := buildKey(query, strategy, limit)
	val, err, _ := c.group.Do(key, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, strategy, limit, results)
		return results, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]executor.Result), false, nil
}

// Invalidate drops every cached result. It is called whenever the live
// index is replaced.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

// buildKey hashes the query as the tokenizer sees it. Case and word order
// are kept because results report original words, offsets and term order.
func buildKey(query string, strategy executor.Strategy, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d|%s", strategy, limit, strings.Trim(query, " \n\r\t"))
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}
