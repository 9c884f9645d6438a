package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/metrics"
)

// PriceCache stores JSON-encoded values in a Store and never fails: an
// unreachable store behaves as a permanent miss and writes become no-ops.
type PriceCache struct {
	store  Store
	logger *logging.Logger
}

// NewPriceCache wraps store. A nil store disables caching.
func NewPriceCache(store Store, logger *logging.Logger) *PriceCache {
	if store == nil {
		store = NoopStore{}
	}
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &PriceCache{store: store, logger: logger.With("component", "cache")}
}

// Load decodes the value stored under key into dst and reports whether it was found.
func (c *PriceCache) Load(ctx context.Context, key string, dst interface{}) bool {
	b, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.RecordCacheOperation("get", "miss")
		c.logger.Debug("Cache miss", "key", key)
		return false
	case err != nil:
		metrics.RecordCacheOperation("get", resultFor(err))
		c.logger.Warn("Cache lookup failed, treating as miss", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(b, dst); err != nil {
		metrics.RecordCacheOperation("get", "error")
		c.logger.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		c.Invalidate(ctx, key)
		return false
	}

	metrics.RecordCacheOperation("get", "hit")
	c.logger.Debug("Cache hit", "key", key)
	return true
}

// Save encodes v and stores it under key with the given TTL.
func (c *PriceCache) Save(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		metrics.RecordCacheOperation("set", "error")
		c.logger.Error("Failed to encode cache entry", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		metrics.RecordCacheOperation("set", resultFor(err))
		c.logger.Warn("Cache write failed", "key", key, "error", err)
		return
	}
	metrics.RecordCacheOperation("set", "ok")
}

// Invalidate removes key.
func (c *PriceCache) Invalidate(ctx context.Context, key string) {
	if err := c.store.Invalidate(ctx, key); err != nil {
		metrics.RecordCacheOperation("invalidate", resultFor(err))
		c.logger.Warn("Cache invalidation failed", "key", key, "error", err)
		return
	}
	metrics.RecordCacheOperation("invalidate", "ok")
	c.logger.Debug("Cache entry invalidated", "key", key)
}

// InvalidatePattern removes every key matching a glob pattern.
func (c *PriceCache) InvalidatePattern(ctx context.Context, pattern string) {
	if err := c.store.InvalidateByPattern(ctx, pattern); err != nil {
		metrics.RecordCacheOperation("invalidate_pattern", resultFor(err))
		c.logger.Warn("Cache pattern invalidation failed", "pattern", pattern, "error", err)
		return
	}
	metrics.RecordCacheOperation("invalidate_pattern", "ok")
	c.logger.Debug("Cache entries invalidated", "pattern", pattern)
}

func resultFor(err error) string {
	if errors.Is(err, ErrUnavailable) {
		return "unavailable"
	}
	return "error"
}
