package xcache

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/apikit/pkg/resilience/xbreaker"
)

// =============================================================================
// 错误抑制测试
// =============================================================================

// newBrokenRedis 创建一个后端已下线的缓存: miniredis 启动后随即关闭，
// 后续所有操作都会遇到连接错误。
func newBrokenRedis(t *testing.T, opts ...Option) Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache, err := NewRedis(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	mr.Close()
	return cache
}

func TestRedisCache_BackendDown_ErrorsWrapConnection(t *testing.T) {
	cache := newBrokenRedis(t)
	ctx := context.Background()

	var got int
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrConnection)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, 0), ErrConnection)

	_, err := cache.Keys(ctx, "*")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestRedisCache_IgnoreErrors_ReadsDegradeToMiss(t *testing.T) {
	cache := newBrokenRedis(t, WithIgnoreErrors(true))
	ctx := context.Background()

	var got int
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)

	many, err := cache.GetMany(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, many)

	has, err := cache.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	keys, err := cache.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Nil(t, keys)

	_, err = cache.TTL(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	n, err := cache.Incr(ctx, "k", 1)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisCache_IgnoreErrors_WritesBecomeNoOps(t *testing.T) {
	cache := newBrokenRedis(t, WithIgnoreErrors(true))
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, "k", 1, 0))
	assert.NoError(t, cache.SetMany(ctx, map[string]any{"a": 1}, 0))
	assert.NoError(t, cache.DeleteMany(ctx, []string{"a"}))
	assert.NoError(t, cache.Clear(ctx))

	added, err := cache.Add(ctx, "k", 1, 0)
	require.NoError(t, err)
	assert.False(t, added)

	deleted, err := cache.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)

	n, err := cache.DeletePattern(ctx, "*")
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := cache.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	version, err := cache.IncrVersion(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestRedisCache_IgnoreErrors_LogsSuppression(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cache := newBrokenRedis(t, WithIgnoreErrors(true), WithErrorLogger(logger))

	var got int
	assert.ErrorIs(t, cache.Get(context.Background(), "k", &got), ErrCacheMiss)

	out := buf.String()
	assert.Contains(t, out, "cache backend error suppressed")
	assert.Contains(t, out, `"op":"get"`)
}

func TestRedisCache_IgnoreErrors_ContextErrorsStillPropagate(t *testing.T) {
	cache := newBrokenRedis(t, WithIgnoreErrors(true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got int
	err := cache.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedisCache_IgnoreErrors_SerializationStillFails(t *testing.T) {
	cache, _ := newTestRedis(t, WithIgnoreErrors(true))

	err := cache.Set(context.Background(), "k", make(chan int), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal")
}

func TestRedisCache_IgnoreErrors_LockStillFails(t *testing.T) {
	cache := newBrokenRedis(t, WithIgnoreErrors(true))

	_, err := cache.Lock(context.Background(), "job", time.Second)
	assert.ErrorIs(t, err, ErrConnection)
}

// =============================================================================
// 熔断器联动测试
// =============================================================================

func TestRedisCache_Breaker_OpensAfterBackendFailures(t *testing.T) {
	breaker := xbreaker.NewBreaker("cache",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(2)),
	)
	cache := newBrokenRedis(t, WithBreaker(breaker))
	ctx := context.Background()

	var got int
	for range 2 {
		assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrConnection)
	}

	// 熔断器已打开，请求被短路
	err := cache.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, ErrConnection)
	assert.True(t, xbreaker.IsOpen(err))
	assert.Equal(t, xbreaker.StateOpen, breaker.State())
}

func TestRedisCache_Breaker_MissesDoNotTrip(t *testing.T) {
	breaker := xbreaker.NewBreaker("cache",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(1)),
	)
	cache, _ := newTestRedis(t, WithBreaker(breaker))
	ctx := context.Background()

	var got int
	for range 3 {
		assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
	}
	assert.Equal(t, xbreaker.StateClosed, breaker.State())
}

func TestRedisCache_Breaker_OpenStateSuppressedInIgnoreMode(t *testing.T) {
	breaker := xbreaker.NewBreaker("cache",
		xbreaker.WithTripPolicy(xbreaker.NewConsecutiveFailures(1)),
	)
	cache := newBrokenRedis(t, WithBreaker(breaker), WithIgnoreErrors(true))
	ctx := context.Background()

	var got int
	for range 3 {
		assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
	}
	assert.Equal(t, xbreaker.StateOpen, breaker.State())
}
