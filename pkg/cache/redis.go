package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint for SCAN and the DEL batch size.
const scanBatch = 100

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RedisStore keeps entries in Redis. Connection problems are reported as
// ErrUnavailable on each call; the client reconnects on its own.
type RedisStore struct {
	rdb *redis.Client
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Redis store. It does not contact Redis; use Ping
// to check connectivity at startup.
func NewRedisStore(opts RedisOptions) *RedisStore {
	o := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.DialTimeout > 0 {
		o.DialTimeout = opts.DialTimeout
		o.ReadTimeout = opts.DialTimeout
		o.WriteTimeout = opts.DialTimeout
	}
	return &RedisStore{rdb: redis.NewClient(o)}
}

// Ping checks that Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	return b, nil
}

// Set implements Store.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("set", err)
	}
	return nil
}

// Invalidate implements Store.
func (r *RedisStore) Invalidate(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		return unavailable("del", err)
	}
	return nil
}

// InvalidateByPattern walks the keyspace with SCAN, then deletes the matches
// in batches, so large keyspaces never block Redis the way KEYS would. The
// scan completes before the first DEL so the cursor never sees a shrinking
// keyspace.
func (r *RedisStore) InvalidateByPattern(ctx context.Context, pattern string) error {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return unavailable("scan", err)
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := r.rdb.Del(ctx, keys[start:end]...).Err(); err != nil {
			return unavailable("del", err)
		}
	}
	return nil
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.rdb.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: redis %s: %v", ErrUnavailable, op, err)
}
