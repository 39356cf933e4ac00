package xcache

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/apikit/pkg/observability/xmetrics"
)

// =============================================================================
// Memory 配置选项
// =============================================================================

// MemoryOptions 定义进程内缓存的配置。
type MemoryOptions struct {
	// NumCounters 用于跟踪频率的计数器数量。
	// 默认为 1e7 (10M)，约占用 80MB 内存用于频率统计。
	NumCounters int64

	// MaxCost 缓存的最大容量（字节）。
	// 最小值为 1MB (MinMemoryMaxCost)，过小的值会导致频繁淘汰。
	MaxCost int64

	// BufferItems 写入缓冲区的大小。
	BufferItems int64

	// cacheOpts 是两种后端共享的缓存级选项。
	cacheOpts []Option
}

const (
	// MinMemoryMaxCost 进程内缓存最小容量（1MB）。
	MinMemoryMaxCost = 1 * 1024 * 1024
)

func defaultMemoryOptions() *MemoryOptions {
	return &MemoryOptions{
		NumCounters: 1e7,               // 10M counters
		MaxCost:     100 * 1024 * 1024, // 100MB
		BufferItems: 64,
	}
}

// MemoryOption 配置进程内缓存。
type MemoryOption func(*MemoryOptions)

// WithMemoryNumCounters 设置计数器数量。
// 如果 n <= 0，将忽略此设置并使用默认值。
func WithMemoryNumCounters(n int64) MemoryOption {
	return func(o *MemoryOptions) {
		if n > 0 {
			o.NumCounters = n
		}
	}
}

// WithMemoryMaxCost 设置最大容量（字节）。
// 如果 cost 小于 MinMemoryMaxCost (1MB)，将使用 MinMemoryMaxCost。
func WithMemoryMaxCost(cost int64) MemoryOption {
	return func(o *MemoryOptions) {
		if cost > 0 {
			if cost < MinMemoryMaxCost {
				cost = MinMemoryMaxCost
			}
			o.MaxCost = cost
		}
	}
}

// WithMemoryBufferItems 设置写入缓冲区大小。
// 如果 n <= 0，将忽略此设置并使用默认值。
func WithMemoryBufferItems(n int64) MemoryOption {
	return func(o *MemoryOptions) {
		if n > 0 {
			o.BufferItems = n
		}
	}
}

// WithMemoryCacheOptions 附加两种后端共享的缓存级选项
// （键前缀、版本、序列化器、默认 TTL、观测器等）。
func WithMemoryCacheOptions(opts ...Option) MemoryOption {
	return func(o *MemoryOptions) {
		o.cacheOpts = append(o.cacheOpts, opts...)
	}
}

// =============================================================================
// 统计信息
// =============================================================================

// MemoryStats 定义进程内缓存的统计信息。
type MemoryStats struct {
	// Hits 缓存命中次数。
	Hits uint64

	// Misses 缓存未命中次数。
	Misses uint64

	// HitRatio 缓存命中率 (0.0 - 1.0)。
	HitRatio float64

	// KeysAdded 已添加的 key 数量。
	KeysAdded uint64

	// KeysEvicted 已淘汰的 key 数量。
	KeysEvicted uint64
}

// =============================================================================
// 进程内后端
// =============================================================================

// memoryCache 是基于 ristretto 的 Cache 实现。
//
// ristretto 的写入是异步的，这里在每次写操作后调用 Wait() 换取
// read-your-writes 语义——这是正确性优先于吞吐的取舍，进程内后端
// 定位于测试与单机部署，不追求 ristretto 的极限写入性能。
//
// 模式操作（Keys/IterKeys/DeletePattern）、Lock 以及带前缀的 Clear
// 返回 ErrNotSupported: ristretto 不支持键枚举。
type memoryCache struct {
	cache  *ristretto.Cache[string, []byte]
	opts   *options
	mu     sync.Mutex // 串行化读-改-写操作（Add/Incr/TTL 改写等）
	group  singleflight.Group
	closed atomic.Bool
}

// 编译期接口检查。
var _ Cache = (*memoryCache)(nil)

// NewMemory 创建进程内后端缓存。
func NewMemory(opts ...MemoryOption) (Cache, error) {
	mo := defaultMemoryOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(mo)
		}
	}
	o := defaultOptions()
	for _, opt := range mo.cacheOpts {
		if opt != nil {
			opt(o)
		}
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: mo.NumCounters,
		MaxCost:     mo.MaxCost,
		BufferItems: mo.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("xcache: create ristretto cache: %w", err)
	}
	return &memoryCache{cache: cache, opts: o}, nil
}

// Stats 返回缓存统计信息。通过类型断言访问:
//
//	if sp, ok := cache.(interface{ Stats() MemoryStats }); ok {
//		stats := sp.Stats()
//	}
func (c *memoryCache) Stats() MemoryStats {
	m := c.cache.Metrics
	return MemoryStats{
		Hits:        m.Hits(),
		Misses:      m.Misses(),
		HitRatio:    m.Ratio(),
		KeysAdded:   m.KeysAdded(),
		KeysEvicted: m.KeysEvicted(),
	}
}

// Close 关闭缓存。重复调用返回 ErrCacheClosed。
func (c *memoryCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrCacheClosed
	}
	c.cache.Close()
	return nil
}

// =============================================================================
// 内部辅助
// =============================================================================

func (c *memoryCache) span(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return startSpan(ctx, c.opts.observer, "memory", op)
}

// getRaw 读取完整键的原始字节。返回的是副本，调用方可安全持有。
func (c *memoryCache) getRaw(fullKey string) ([]byte, bool) {
	data, ok := c.cache.Get(fullKey)
	if !ok {
		return nil, false
	}
	return bytes.Clone(data), true
}

// setRaw 写入原始字节并等待写入可见。存储的是副本，与调用方解除别名。
// ttl 已按后端约定解析，0 表示永不过期。
func (c *memoryCache) setRaw(fullKey string, data []byte, ttl time.Duration) {
	c.cache.SetWithTTL(fullKey, bytes.Clone(data), int64(len(data)), ttl)
	c.cache.Wait()
}

// remainingTTL 返回键的剩余 TTL，用于改写时保留过期时间。
// 第二个返回值为 false 表示键不存在（或恰好过期）。
func (c *memoryCache) remainingTTL(fullKey string) (time.Duration, bool) {
	d, ok := c.cache.GetTTL(fullKey)
	if !ok {
		return 0, false
	}
	return d, true // d == 0 表示无过期时间
}

// =============================================================================
// 读写操作
// =============================================================================

// Get 实现 Cache。
func (c *memoryCache) Get(ctx context.Context, key string, dest any, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	_, span := c.span(ctx, "get")
	defer func() { endSpan(span, err) }()

	data, ok := c.getRaw(c.opts.fullKey(key, resolveItem(opts)))
	if !ok {
		return ErrCacheMiss
	}
	return c.opts.serializer.Unmarshal(data, dest)
}

// Set 实现 Cache。
func (c *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	_, span := c.span(ctx, "set")
	defer func() { endSpan(span, err) }()

	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return err
	}
	c.setRaw(c.opts.fullKey(key, resolveItem(opts)), data, c.opts.resolveTTL(ttl))
	return nil
}

// Add 实现 Cache。
func (c *memoryCache) Add(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) (added bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "add")
	defer func() { endSpan(span, err) }()

	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return false, err
	}
	k := c.opts.fullKey(key, resolveItem(opts))

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.cache.Get(k); exists {
		return false, nil
	}
	c.setRaw(k, data, c.opts.resolveTTL(ttl))
	return true, nil
}

// GetMany 实现 Cache。
func (c *memoryCache) GetMany(ctx context.Context, keys []string, opts ...ItemOption) (result map[string][]byte, err error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	_, span := c.span(ctx, "get_many")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	result = make(map[string][]byte, len(keys))
	for _, key := range keys {
		if data, ok := c.getRaw(c.opts.fullKey(key, io)); ok {
			result[key] = data
		}
	}
	return result, nil
}

// SetMany 实现 Cache。所有值先序列化，任一失败时整批不写。
func (c *memoryCache) SetMany(ctx context.Context, items map[string]any, ttl time.Duration, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	_, span := c.span(ctx, "set_many")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	resolved := c.opts.resolveTTL(ttl)
	encoded := make(map[string][]byte, len(items))
	for key, value := range items {
		data, merr := c.opts.serializer.Marshal(value)
		if merr != nil {
			return merr
		}
		encoded[c.opts.fullKey(key, io)] = data
	}
	for k, data := range encoded {
		c.cache.SetWithTTL(k, bytes.Clone(data), int64(len(data)), resolved)
	}
	c.cache.Wait()
	return nil
}

// Delete 实现 Cache。
func (c *memoryCache) Delete(ctx context.Context, key string, opts ...ItemOption) (deleted bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "delete")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	_, deleted = c.cache.Get(k)
	c.cache.Del(k)
	c.cache.Wait()
	return deleted, nil
}

// DeleteMany 实现 Cache。
func (c *memoryCache) DeleteMany(ctx context.Context, keys []string, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	_, span := c.span(ctx, "delete_many")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	for _, key := range keys {
		c.cache.Del(c.opts.fullKey(key, io))
	}
	c.cache.Wait()
	return nil
}

// DeletePattern 实现 Cache。ristretto 不支持键枚举。
func (c *memoryCache) DeletePattern(context.Context, string, ...ItemOption) (int, error) {
	return 0, ErrNotSupported
}

// =============================================================================
// 计数操作
// =============================================================================

// Incr 实现 Cache。保留键的剩余 TTL。
func (c *memoryCache) Incr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error) {
	return c.incrBy(ctx, "incr", key, delta, opts)
}

// Decr 实现 Cache。等价于 Incr(ctx, key, -delta)。
func (c *memoryCache) Decr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error) {
	return c.incrBy(ctx, "decr", key, -delta, opts)
}

func (c *memoryCache) incrBy(ctx context.Context, op, key string, delta int64, opts []ItemOption) (n int64, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	_, span := c.span(ctx, op)
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))

	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.cache.Get(k)
	if !ok {
		return 0, ErrKeyNotFound
	}
	cur, perr := strconv.ParseInt(string(data), 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("xcache: value is not an integer: %w", perr)
	}
	remaining, ok := c.remainingTTL(k)
	if !ok {
		return 0, ErrKeyNotFound
	}
	n = cur + delta
	c.setRaw(k, []byte(strconv.FormatInt(n, 10)), remaining)
	return n, nil
}

// =============================================================================
// 键状态操作
// =============================================================================

// Has 实现 Cache。
func (c *memoryCache) Has(ctx context.Context, key string, opts ...ItemOption) (exists bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "has")
	defer func() { endSpan(span, err) }()

	_, exists = c.cache.Get(c.opts.fullKey(key, resolveItem(opts)))
	return exists, nil
}

// Keys 实现 Cache。ristretto 不支持键枚举。
func (c *memoryCache) Keys(context.Context, string, ...ItemOption) ([]string, error) {
	return nil, ErrNotSupported
}

// IterKeys 实现 Cache。ristretto 不支持键枚举。
func (c *memoryCache) IterKeys(context.Context, string, ...ItemOption) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", ErrNotSupported)
	}
}

// TTL 实现 Cache。
func (c *memoryCache) TTL(ctx context.Context, key string, opts ...ItemOption) (ttl time.Duration, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	_, span := c.span(ctx, "ttl")
	defer func() { endSpan(span, err) }()

	d, ok := c.remainingTTL(c.opts.fullKey(key, resolveItem(opts)))
	if !ok {
		return 0, ErrKeyNotFound
	}
	if d == 0 {
		return NoExpiry, nil
	}
	return d, nil
}

// Persist 实现 Cache。返回是否实际移除了过期时间。
func (c *memoryCache) Persist(ctx context.Context, key string, opts ...ItemOption) (changed bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "persist")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewriteTTL(k, 0, true)
}

// Expire 实现 Cache。ttl 为字面值，约定与 Redis 后端一致。
func (c *memoryCache) Expire(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (ok bool, err error) {
	if ttl != NoExpiry && ttl <= 0 {
		return false, ErrInvalidTTL
	}
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "expire")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))

	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl == NoExpiry {
		return c.rewriteTTL(k, 0, true)
	}
	return c.rewriteTTL(k, ttl, false)
}

// Touch 实现 Cache。TTL 遵循 Set 的约定。
func (c *memoryCache) Touch(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (ok bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	_, span := c.span(ctx, "touch")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	resolved := c.opts.resolveTTL(ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rewriteTTL(k, resolved, resolved == 0)
}

// rewriteTTL 以新 TTL 改写键。persistOnly 为 true 时语义同 PERSIST:
// 键本就无过期时间时返回 false。调用方必须持有 mu。
func (c *memoryCache) rewriteTTL(fullKey string, ttl time.Duration, persistOnly bool) (bool, error) {
	data, ok := c.cache.Get(fullKey)
	if !ok {
		return false, nil
	}
	remaining, ok := c.remainingTTL(fullKey)
	if !ok {
		return false, nil
	}
	if persistOnly && remaining == 0 {
		return false, nil
	}
	c.setRaw(fullKey, data, ttl)
	return true, nil
}

// IncrVersion 实现 Cache。值与剩余 TTL 原样迁移到下一个版本号。
func (c *memoryCache) IncrVersion(ctx context.Context, key string, opts ...ItemOption) (version int, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	_, span := c.span(ctx, "incr_version")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	current := c.opts.itemVersion(io)
	oldKey := c.opts.keyFunc(key, c.opts.keyPrefix, current)
	newKey := c.opts.keyFunc(key, c.opts.keyPrefix, current+1)

	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.cache.Get(oldKey)
	if !ok {
		return 0, ErrKeyNotFound
	}
	remaining, ok := c.remainingTTL(oldKey)
	if !ok {
		return 0, ErrKeyNotFound
	}
	c.setRaw(newKey, data, remaining)
	c.cache.Del(oldKey)
	c.cache.Wait()
	return current + 1, nil
}

// Clear 实现 Cache。仅支持无前缀清空；设置了前缀时无法按前缀枚举键，
// 返回 ErrNotSupported。
func (c *memoryCache) Clear(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	_, span := c.span(ctx, "clear")
	defer func() { endSpan(span, err) }()

	if c.opts.keyPrefix != "" {
		err = ErrNotSupported
		return err
	}
	c.cache.Clear()
	return nil
}

// Lock 实现 Cache。进程内后端不提供跨进程互斥。
func (c *memoryCache) Lock(context.Context, string, time.Duration) (Unlocker, error) {
	return nil, ErrNotSupported
}

// GetOrLoad 实现 Cache。回源流程与 Redis 后端共用（见 flightTask）。
func (c *memoryCache) GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, load LoadFunc, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if load == nil {
		return ErrNilLoader
	}
	ctx, span := c.span(ctx, "get_or_load")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	if data, ok := c.getRaw(k); ok {
		return c.opts.serializer.Unmarshal(data, dest)
	}

	task := flightTask{
		group:      &c.group,
		key:        k,
		serializer: c.opts.serializer,
		logger:     c.opts.errorLogger,
		load:       load,
		getRaw: func(context.Context) ([]byte, bool, error) {
			data, ok := c.getRaw(k)
			return data, ok, nil
		},
		setRaw: func(_ context.Context, data []byte) error {
			c.setRaw(k, data, c.opts.resolveTTL(ttl))
			return nil
		},
	}
	data, err := task.run(ctx)
	if err != nil {
		return err
	}
	return c.opts.serializer.Unmarshal(data, dest)
}
