// Package cache provides the cache-aside store behind price lookups.
//
// Implementations:
//   - RedisStore: shared Redis cache, the production backend
//   - MemoryStore: process-local TTL map, for single instances and tests
//   - NoopStore: caching disabled, every lookup misses
//
// A backing store may be unreachable at any moment. Stores report that as
// ErrUnavailable; PriceCache turns it into a miss so lookups keep working.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("cache: key not found")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("cache: store unavailable")
)

// Store is a byte-oriented key/value store with per-key TTL.
// All implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key, ErrNotFound or ErrUnavailable.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A TTL of 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes key. Removing a missing key is not an error.
	Invalidate(ctx context.Context, key string) error

	// InvalidateByPattern removes every key matching a glob pattern
	// ("*" matches any run of characters, "?" a single character).
	InvalidateByPattern(ctx context.Context, pattern string) error

	// Close releases the store's resources.
	Close() error
}

// NoopStore never stores anything.
type NoopStore struct{}

// Ensure NoopStore implements Store.
var _ Store = NoopStore{}

// Get always misses.
func (NoopStore) Get(context.Context, string) ([]byte, error) { return nil, ErrNotFound }

// Set discards the value.
func (NoopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Invalidate does nothing.
func (NoopStore) Invalidate(context.Context, string) error { return nil }

// InvalidateByPattern does nothing.
func (NoopStore) InvalidateByPattern(context.Context, string) error { return nil }

// Close does nothing.
func (NoopStore) Close() error { return nil }
