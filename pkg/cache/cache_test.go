package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "price:medicine:dipirona")
	assert.ErrorIs(t, err, ErrNotFound)

	value := []byte(`{"average_price":5.63}`)
	require.NoError(t, store.Set(ctx, "price:medicine:dipirona", value, time.Hour))

	got, err := store.Get(ctx, "price:medicine:dipirona")
	require.NoError(t, err)
	assert.Equal(t, value, got)

	// Stored bytes are copied in both directions.
	value[0] = 'X'
	got[1] = 'Y'
	again, err := store.Get(ctx, "price:medicine:dipirona")
	require.NoError(t, err)
	assert.Equal(t, `{"average_price":5.63}`, string(again))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "forever", []byte("2"), 0))

	now = now.Add(59 * time.Second)
	_, err := store.Get(ctx, "short")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	now = now.Add(365 * 24 * time.Hour)
	_, err = store.Get(ctx, "forever")
	assert.NoError(t, err)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_InvalidateByPattern(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	keys := []string{
		"price:medicine:dipirona:500mg",
		"price:medicine:soro fisiologico 0,9% 1/2",
		"price:input:luva de procedimento",
		"other:medicine:x",
	}
	for _, k := range keys {
		require.NoError(t, store.Set(ctx, k, []byte("v"), time.Hour))
	}

	require.NoError(t, store.InvalidateByPattern(ctx, "price:medicine:*"))

	for _, k := range keys[:2] {
		_, err := store.Get(ctx, k)
		assert.ErrorIs(t, err, ErrNotFound, k)
	}
	for _, k := range keys[2:] {
		_, err := store.Get(ctx, k)
		assert.NoError(t, err, k)
	}

	require.NoError(t, store.Invalidate(ctx, "price:input:luva de procedimento"))
	require.NoError(t, store.Invalidate(ctx, "missing"))
	assert.Equal(t, 1, store.Len())
}

func TestGlobToRegexp(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		match   bool
	}{
		{"price:*", "price:medicine:a", true},
		{"price:*", "prices:medicine:a", false},
		{"price:input:?", "price:input:a", true},
		{"price:input:?", "price:input:ab", false},
		{"price:medicine:dipirona (gotas)", "price:medicine:dipirona (gotas)", true},
		{"a.b", "axb", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.key, func(t *testing.T) {
			assert.Equal(t, tt.match, globToRegexp(tt.pattern).MatchString(tt.key))
		})
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("price:input:item%d", i%4)
			_ = store.Set(ctx, key, []byte("v"), time.Minute)
			_, _ = store.Get(ctx, key)
			_ = store.InvalidateByPattern(ctx, "price:medicine:*")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, store.Len())
}

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := NewRedisStore(RedisOptions{Addr: mr.Addr(), DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestRedisStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Ping(ctx))

	_, err := store.Get(ctx, "price:medicine:dipirona")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "price:medicine:dipirona", []byte("5.63"), 24*time.Hour))

	got, err := store.Get(ctx, "price:medicine:dipirona")
	require.NoError(t, err)
	assert.Equal(t, []byte("5.63"), got)
	assert.Equal(t, 24*time.Hour, mr.TTL("price:medicine:dipirona"))

	mr.FastForward(24 * time.Hour)
	_, err = store.Get(ctx, "price:medicine:dipirona")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Invalidate(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	for i := 0; i < 2*scanBatch+7; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("price:medicine:item%03d", i), "v"))
	}
	require.NoError(t, mr.Set("price:input:luva", "v"))

	require.NoError(t, store.InvalidateByPattern(ctx, "price:medicine:*"))

	assert.Equal(t, []string{"price:input:luva"}, mr.Keys())

	require.NoError(t, store.Invalidate(ctx, "price:input:luva"))
	require.NoError(t, store.Invalidate(ctx, "price:input:luva"))
	assert.Empty(t, mr.Keys())
}

func TestRedisStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v"), time.Minute), ErrUnavailable)
	assert.ErrorIs(t, store.Invalidate(ctx, "k"), ErrUnavailable)
	assert.ErrorIs(t, store.InvalidateByPattern(ctx, "k*"), ErrUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), ErrUnavailable)
}

func TestNoopStore(t *testing.T) {
	ctx := context.Background()
	var store Store = NoopStore{}

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Invalidate(ctx, "k"))
	assert.NoError(t, store.InvalidateByPattern(ctx, "*"))
	assert.NoError(t, store.Close())
}
