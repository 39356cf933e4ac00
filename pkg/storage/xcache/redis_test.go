package xcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 测试辅助
// =============================================================================

// newTestRedis 在 miniredis 上创建缓存，测试结束时自动清理。
func newTestRedis(t *testing.T, opts ...Option) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache, err := NewRedis(client, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

type testUser struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// =============================================================================
// 工厂函数测试
// =============================================================================

func TestNewRedis_WithNilClient_ReturnsError(t *testing.T) {
	_, err := NewRedis(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestNewRedis_WithValidClient_Succeeds(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache, err := NewRedis(client)
	require.NoError(t, err)
	defer cache.Close()

	assert.NotNil(t, cache)
}

// =============================================================================
// 基础读写测试
// =============================================================================

func TestRedisCache_SetGet_RoundTrip(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	want := testUser{Name: "alice", Age: 30}
	require.NoError(t, cache.Set(ctx, "user:1", want, 0))

	var got testUser
	require.NoError(t, cache.Get(ctx, "user:1", &got))
	assert.Equal(t, want, got)
}

func TestRedisCache_Get_MissingKey_ReturnsCacheMiss(t *testing.T) {
	cache, _ := newTestRedis(t)

	var got testUser
	err := cache.Get(context.Background(), "absent", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Get_TypeMismatch_ReturnsUnmarshalError(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", "text", 0))

	var got int
	err := cache.Get(ctx, "key", &got)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestRedisCache_KeyLayout_DefaultKeyFunc(t *testing.T) {
	cache, mr := newTestRedis(t, WithKeyPrefix("app"))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "user:1", 42, 0))

	// 完整键为 <prefix>:<version>:<key>，默认版本 1
	got, err := mr.Get("app:1:user:1")
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestRedisCache_KeyLayout_NoPrefix(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 0))
	assert.True(t, mr.Exists("1:k"))
}

func TestRedisCache_ItemVersion_IsolatesValues(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v1", 0))
	require.NoError(t, cache.Set(ctx, "k", "v2", 0, WithItemVersion(2)))

	var got string
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, "v1", got)

	require.NoError(t, cache.Get(ctx, "k", &got, WithItemVersion(2)))
	assert.Equal(t, "v2", got)
}

func TestRedisCache_Add_OnlyWritesMissingKey(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	added, err := cache.Add(ctx, "k", "first", 0)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = cache.Add(ctx, "k", "second", 0)
	require.NoError(t, err)
	assert.False(t, added)

	var got string
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, "first", got)
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 0))

	deleted, err := cache.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = cache.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// =============================================================================
// 批量操作测试
// =============================================================================

func TestRedisCache_GetMany_ReturnsOnlyHits(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "a", 1, 0))
	require.NoError(t, cache.Set(ctx, "c", 3, 0))

	got, err := cache.GetMany(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"a": []byte("1"),
		"c": []byte("3"),
	}, got)
}

func TestRedisCache_GetMany_EmptyKeys(t *testing.T) {
	cache, _ := newTestRedis(t)

	got, err := cache.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisCache_SetMany_WritesAllKeys(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	err := cache.SetMany(ctx, map[string]any{"a": 1, "b": 2}, 0)
	require.NoError(t, err)

	var got int
	require.NoError(t, cache.Get(ctx, "a", &got))
	assert.Equal(t, 1, got)
	require.NoError(t, cache.Get(ctx, "b", &got))
	assert.Equal(t, 2, got)
}

func TestRedisCache_SetMany_SerializationFailureAbortsBatch(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	err := cache.SetMany(ctx, map[string]any{"bad": make(chan int)}, 0)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnection)
}

func TestRedisCache_DeleteMany(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.SetMany(ctx, map[string]any{"a": 1, "b": 2, "c": 3}, 0))
	require.NoError(t, cache.DeleteMany(ctx, []string{"a", "b"}))

	var got int
	assert.ErrorIs(t, cache.Get(ctx, "a", &got), ErrCacheMiss)
	assert.ErrorIs(t, cache.Get(ctx, "b", &got), ErrCacheMiss)
	assert.NoError(t, cache.Get(ctx, "c", &got))
}

// =============================================================================
// 计数操作测试
// =============================================================================

func TestRedisCache_IncrDecr(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "count", 5, 0))

	n, err := cache.Incr(ctx, "count", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	n, err = cache.Decr(ctx, "count", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	var got int64
	require.NoError(t, cache.Get(ctx, "count", &got))
	assert.Equal(t, int64(6), got)
}

func TestRedisCache_Incr_MissingKey_ReturnsKeyNotFound(t *testing.T) {
	cache, _ := newTestRedis(t)

	_, err := cache.Incr(context.Background(), "absent", 1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// 不应把键创建出来
	has, err := cache.Has(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRedisCache_Incr_PreservesTTL(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "count", 1, time.Minute))
	_, err := cache.Incr(ctx, "count", 1)
	require.NoError(t, err)

	ttl, err := cache.TTL(ctx, "count")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}

// =============================================================================
// 键状态测试
// =============================================================================

func TestRedisCache_Has(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	has, err := cache.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, cache.Set(ctx, "k", 1, 0))
	has, err = cache.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRedisCache_TTL(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	_, err := cache.TTL(ctx, "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, cache.Set(ctx, "forever", 1, 0))
	ttl, err := cache.TTL(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)

	require.NoError(t, cache.Set(ctx, "bounded", 1, time.Minute))
	ttl, err = cache.TTL(ctx, "bounded")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRedisCache_DefaultTTL_AppliedOnZero(t *testing.T) {
	cache, _ := newTestRedis(t, WithDefaultTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 0))
	ttl, err := cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	// 显式 NoExpiry 覆盖默认 TTL
	require.NoError(t, cache.Set(ctx, "p", 1, NoExpiry))
	ttl, err = cache.TTL(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)
}

func TestRedisCache_Expiry_RemovesKey(t *testing.T) {
	cache, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Second))
	mr.FastForward(2 * time.Second)

	var got int
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestRedisCache_Persist(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Minute))

	changed, err := cache.Persist(ctx, "k")
	require.NoError(t, err)
	assert.True(t, changed)

	ttl, err := cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)

	// 已无过期时间，再次 Persist 无事可做
	changed, err = cache.Persist(ctx, "k")
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRedisCache_Expire(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, 0))

	ok, err := cache.Expire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	// NoExpiry 等价于 Persist
	ok, err = cache.Expire(ctx, "k", NoExpiry)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err = cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)

	ok, err = cache.Expire(ctx, "absent", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = cache.Expire(ctx, "k", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestRedisCache_Touch_FollowsTTLConvention(t *testing.T) {
	cache, _ := newTestRedis(t, WithDefaultTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Second))

	// ttl 0 → 默认 TTL
	ok, err := cache.Touch(ctx, "k", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	// NoExpiry → 移除过期时间
	ok, err = cache.Touch(ctx, "k", NoExpiry)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err = cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, NoExpiry, ttl)
}

// =============================================================================
// 版本迁移测试
// =============================================================================

func TestRedisCache_IncrVersion_MovesValue(t *testing.T) {
	cache, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", 0))

	version, err := cache.IncrVersion(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	var got string
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
	require.NoError(t, cache.Get(ctx, "k", &got, WithItemVersion(2)))
	assert.Equal(t, "v", got)
}

func TestRedisCache_IncrVersion_MissingKey_ReturnsKeyNotFound(t *testing.T) {
	cache, _ := newTestRedis(t)

	_, err := cache.IncrVersion(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// =============================================================================
// 序列化器测试
// =============================================================================

func TestRedisCache_RawSerializer(t *testing.T) {
	cache, _ := newTestRedis(t, WithSerializer(RawSerializer{}))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "bin", []byte{0x01, 0x02}, 0))
	var gotBytes []byte
	require.NoError(t, cache.Get(ctx, "bin", &gotBytes))
	assert.Equal(t, []byte{0x01, 0x02}, gotBytes)

	require.NoError(t, cache.Set(ctx, "text", "hello", 0))
	var gotStr string
	require.NoError(t, cache.Get(ctx, "text", &gotStr))
	assert.Equal(t, "hello", gotStr)

	err := cache.Set(ctx, "bad", 42, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw serializer")
}

// =============================================================================
// 生命周期测试
// =============================================================================

func TestRedisCache_Close_RejectsFurtherOps(t *testing.T) {
	cache, _ := newTestRedis(t)

	require.NoError(t, cache.Close())
	assert.ErrorIs(t, cache.Close(), ErrCacheClosed)

	var got int
	assert.ErrorIs(t, cache.Get(context.Background(), "k", &got), ErrCacheClosed)
	assert.ErrorIs(t, cache.Set(context.Background(), "k", 1, 0), ErrCacheClosed)
}

func TestRedisCache_Close_OwnedClientIsClosed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := NewRedis(client, WithOwnedClient())
	require.NoError(t, err)

	require.NoError(t, cache.Close())
	assert.Error(t, client.Ping(context.Background()).Err())
}

func TestRedisCache_Close_BorrowedClientStaysOpen(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	cache, err := NewRedis(client)
	require.NoError(t, err)

	require.NoError(t, cache.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestRedisCache_CanceledContext_ReturnsContextError(t *testing.T) {
	cache, _ := newTestRedis(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var got int
	err := cache.Get(ctx, "k", &got)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrConnection)
}
