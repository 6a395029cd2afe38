package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryCache(t *testing.T) *MemoryCache {
	t.Helper()
	mc := NewMemoryCache(WithMemoryMaxSize(8), WithMemoryCleanup(time.Minute))
	t.Cleanup(func() { _ = mc.Close() })
	return mc
}

func TestMemoryCacheSetGet(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k1", "hello", time.Minute))

	var got string
	require.NoError(t, mc.Get(ctx, "k1", &got))
	assert.Equal(t, "hello", got)
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := newTestMemoryCache(t)

	var got string
	err := mc.Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiration(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var got string
	assert.ErrorIs(t, mc.Get(ctx, "short", &got), ErrCacheMiss)
}

func TestMemoryCacheTryLock(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// Second acquisition must fail while the lock is held.
	ok, err = mc.TryLock(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:sweep"))

	ok, err = mc.TryLock(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheIncrement(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	n, err := mc.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = mc.Increment(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemoryCacheExists(t *testing.T) {
	mc := newTestMemoryCache(t)
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Minute))

	ok, err := mc.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.Exists(ctx, "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "forecast:7:retail", GenerateKeyWithParams("forecast", 7, "retail"))
	assert.Equal(t, "prefix:id", GenerateKey("prefix", "id"))
}
