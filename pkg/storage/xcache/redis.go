package xcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/apikit/pkg/observability/xmetrics"
)

// =============================================================================
// Redis 后端
// =============================================================================

// redisCache 是基于 go-redis 的 Cache 实现。
type redisCache struct {
	client redis.UniversalClient
	rs     *redsync.Redsync
	opts   *options
	group  singleflight.Group
	closed atomic.Bool
}

// 编译期接口检查。
var _ Cache = (*redisCache)(nil)

// NewRedis 创建 Redis 后端缓存。
//
// client 的生命周期默认由调用方管理；传入 WithOwnedClient 后
// Close 会一并关闭客户端。client 为 nil 时返回 ErrNilClient。
func NewRedis(client redis.UniversalClient, opts ...Option) (Cache, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return &redisCache{
		client: client,
		rs:     redsync.New(goredis.NewPool(client)),
		opts:   o,
	}, nil
}

// Close 关闭缓存。重复调用返回 ErrCacheClosed。
func (c *redisCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrCacheClosed
	}
	if c.opts.owned {
		return c.client.Close()
	}
	return nil
}

// =============================================================================
// 内部辅助
// =============================================================================

// span 开启本操作的观测跨度。
func (c *redisCache) span(ctx context.Context, op string) (context.Context, xmetrics.Span) {
	return startSpan(ctx, c.opts.observer, "redis", op)
}

// call 执行一次后端往返。挂载了熔断器时经由熔断器执行。
//
// 注意 fn 内部必须把语义性的"空结果"（redis.Nil、Lua 返回 nil）转换为
// 捕获变量并返回 nil error，否则 miss 会被熔断器计为失败。
func (c *redisCache) call(ctx context.Context, fn func() error) error {
	if c.opts.breaker != nil {
		return c.opts.breaker.Do(ctx, fn)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// suppress 报告后端错误是否应被抑制，抑制时记录 Warn 日志。
// 仅在 WithIgnoreErrors(true) 时抑制；context 取消与超时永不抑制。
func (c *redisCache) suppress(ctx context.Context, op string, err error) bool {
	if !c.opts.ignoreErrors || isContextError(err) {
		return false
	}
	if l := c.opts.errorLogger; l != nil {
		l.WarnContext(ctx, "cache backend error suppressed",
			slog.String("op", op),
			slog.Any("error", err),
		)
	}
	return true
}

// getRaw 读取完整键的原始字节。found 为 false 表示 miss。
func (c *redisCache) getRaw(ctx context.Context, fullKey string) (data []byte, found bool, err error) {
	err = c.call(ctx, func() error {
		b, gerr := c.client.Get(ctx, fullKey).Bytes()
		if errors.Is(gerr, redis.Nil) {
			return nil
		}
		if gerr != nil {
			return gerr
		}
		data, found = b, true
		return nil
	})
	return data, found, err
}

// setRaw 写入原始字节。ttl 已按后端约定解析，0 表示永不过期。
func (c *redisCache) setRaw(ctx context.Context, fullKey string, data []byte, ttl time.Duration) error {
	return c.call(ctx, func() error {
		return c.client.Set(ctx, fullKey, data, ttl).Err()
	})
}

// =============================================================================
// 读写操作
// =============================================================================

// Get 实现 Cache。
func (c *redisCache) Get(ctx context.Context, key string, dest any, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	ctx, span := c.span(ctx, "get")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	data, found, callErr := c.getRaw(ctx, k)
	if callErr != nil {
		if c.suppress(ctx, "get", callErr) {
			return ErrCacheMiss
		}
		return wrapConnError(callErr)
	}
	if !found {
		return ErrCacheMiss
	}
	return c.opts.serializer.Unmarshal(data, dest)
}

// Set 实现 Cache。
func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	ctx, span := c.span(ctx, "set")
	defer func() { endSpan(span, err) }()

	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return err
	}
	k := c.opts.fullKey(key, resolveItem(opts))
	if callErr := c.setRaw(ctx, k, data, c.opts.resolveTTL(ttl)); callErr != nil {
		if c.suppress(ctx, "set", callErr) {
			return nil
		}
		return wrapConnError(callErr)
	}
	return nil
}

// Add 实现 Cache。
func (c *redisCache) Add(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) (added bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "add")
	defer func() { endSpan(span, err) }()

	data, err := c.opts.serializer.Marshal(value)
	if err != nil {
		return false, err
	}
	k := c.opts.fullKey(key, resolveItem(opts))
	callErr := c.call(ctx, func() error {
		ok, serr := c.client.SetNX(ctx, k, data, c.opts.resolveTTL(ttl)).Result()
		if serr != nil {
			return serr
		}
		added = ok
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "add", callErr) {
			return false, nil
		}
		return false, wrapConnError(callErr)
	}
	return added, nil
}

// GetMany 实现 Cache。
func (c *redisCache) GetMany(ctx context.Context, keys []string, opts ...ItemOption) (result map[string][]byte, err error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "get_many")
	defer func() { endSpan(span, err) }()

	result = make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	io := resolveItem(opts)
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.opts.fullKey(key, io)
	}

	var vals []interface{}
	callErr := c.call(ctx, func() error {
		v, merr := c.client.MGet(ctx, fullKeys...).Result()
		if merr != nil {
			return merr
		}
		vals = v
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "get_many", callErr) {
			return result, nil
		}
		return nil, wrapConnError(callErr)
	}
	for i, v := range vals {
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// SetMany 实现 Cache。所有值先序列化再发起网络操作，
// 任一序列化失败时整批不写。
func (c *redisCache) SetMany(ctx context.Context, items map[string]any, ttl time.Duration, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	ctx, span := c.span(ctx, "set_many")
	defer func() { endSpan(span, err) }()

	if len(items) == 0 {
		return nil
	}
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

	callErr := c.call(ctx, func() error {
		_, perr := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, data := range encoded {
				pipe.Set(ctx, k, data, resolved)
			}
			return nil
		})
		return perr
	})
	if callErr != nil {
		if c.suppress(ctx, "set_many", callErr) {
			return nil
		}
		return wrapConnError(callErr)
	}
	return nil
}

// Delete 实现 Cache。
func (c *redisCache) Delete(ctx context.Context, key string, opts ...ItemOption) (deleted bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "delete")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	callErr := c.call(ctx, func() error {
		n, derr := c.client.Del(ctx, k).Result()
		if derr != nil {
			return derr
		}
		deleted = n > 0
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "delete", callErr) {
			return false, nil
		}
		return false, wrapConnError(callErr)
	}
	return deleted, nil
}

// DeleteMany 实现 Cache。
func (c *redisCache) DeleteMany(ctx context.Context, keys []string, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	ctx, span := c.span(ctx, "delete_many")
	defer func() { endSpan(span, err) }()

	if len(keys) == 0 {
		return nil
	}
	io := resolveItem(opts)
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = c.opts.fullKey(key, io)
	}
	callErr := c.call(ctx, func() error {
		return c.client.Del(ctx, fullKeys...).Err()
	})
	if callErr != nil {
		if c.suppress(ctx, "delete_many", callErr) {
			return nil
		}
		return wrapConnError(callErr)
	}
	return nil
}

// =============================================================================
// 计数操作
// =============================================================================

// incrScript 原子自增已存在的键。键不存在时返回 nil（Lua false），
// 与 INCRBY 自动创建新键的行为区分开。INCRBY 不会改动键的 TTL。
// KEYS[1] = 完整键，ARGV[1] = 增量。
var incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return false
end
return redis.call("INCRBY", KEYS[1], ARGV[1])
`)

// Incr 实现 Cache。
//
// 仅对序列化后为十进制整数字面量的值有意义（默认的 JSON 序列化器
// 满足这一点），其余编码下行为未定义。
func (c *redisCache) Incr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error) {
	return c.incrBy(ctx, "incr", key, delta, opts)
}

// Decr 实现 Cache。等价于 Incr(ctx, key, -delta)。
func (c *redisCache) Decr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error) {
	return c.incrBy(ctx, "decr", key, -delta, opts)
}

func (c *redisCache) incrBy(ctx context.Context, op, key string, delta int64, opts []ItemOption) (n int64, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	ctx, span := c.span(ctx, op)
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	found := false
	callErr := c.call(ctx, func() error {
		v, ierr := incrScript.Run(ctx, c.client, []string{k}, delta).Int64()
		if errors.Is(ierr, redis.Nil) {
			return nil
		}
		if ierr != nil {
			return ierr
		}
		n, found = v, true
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, op, callErr) {
			return 0, nil
		}
		return 0, wrapConnError(callErr)
	}
	if !found {
		return 0, ErrKeyNotFound
	}
	return n, nil
}

// =============================================================================
// 键状态操作
// =============================================================================

// Has 实现 Cache。
func (c *redisCache) Has(ctx context.Context, key string, opts ...ItemOption) (exists bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "has")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	callErr := c.call(ctx, func() error {
		n, eerr := c.client.Exists(ctx, k).Result()
		if eerr != nil {
			return eerr
		}
		exists = n > 0
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "has", callErr) {
			return false, nil
		}
		return false, wrapConnError(callErr)
	}
	return exists, nil
}

// TTL 实现 Cache。
func (c *redisCache) TTL(ctx context.Context, key string, opts ...ItemOption) (ttl time.Duration, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "ttl")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	var d time.Duration
	callErr := c.call(ctx, func() error {
		v, terr := c.client.TTL(ctx, k).Result()
		if terr != nil {
			return terr
		}
		d = v
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "ttl", callErr) {
			return 0, ErrKeyNotFound
		}
		return 0, wrapConnError(callErr)
	}
	// go-redis 对 TTL 的 -2（键不存在）与 -1（无过期时间）不做时间单位缩放，
	// 可直接与哨兵值比较。
	switch d {
	case -2:
		return 0, ErrKeyNotFound
	case NoExpiry:
		return NoExpiry, nil
	default:
		return d, nil
	}
}

// Persist 实现 Cache。返回是否实际移除了过期时间；
// 键不存在或本就无过期时间时返回 false。
func (c *redisCache) Persist(ctx context.Context, key string, opts ...ItemOption) (changed bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "persist")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	callErr := c.call(ctx, func() error {
		ok, perr := c.client.Persist(ctx, k).Result()
		if perr != nil {
			return perr
		}
		changed = ok
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, "persist", callErr) {
			return false, nil
		}
		return false, wrapConnError(callErr)
	}
	return changed, nil
}

// Expire 实现 Cache。ttl 为字面值: 正值设置过期时间，NoExpiry 移除过期
// 时间（此时返回值与 Persist 相同），其余取值返回 ErrInvalidTTL。
func (c *redisCache) Expire(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (bool, error) {
	if ttl == NoExpiry {
		return c.Persist(ctx, key, opts...)
	}
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	return c.expire(ctx, "expire", key, ttl, opts)
}

// Touch 实现 Cache。与 Expire 的区别仅在 TTL 约定: Touch 遵循
// Set 的约定（0 → 默认 TTL，NoExpiry → 移除过期时间）。
func (c *redisCache) Touch(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (bool, error) {
	resolved := c.opts.resolveTTL(ttl)
	if resolved == 0 {
		return c.Persist(ctx, key, opts...)
	}
	return c.expire(ctx, "touch", key, resolved, opts)
}

func (c *redisCache) expire(ctx context.Context, op, key string, ttl time.Duration, opts []ItemOption) (ok bool, err error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	ctx, span := c.span(ctx, op)
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))
	callErr := c.call(ctx, func() error {
		set, eerr := c.client.PExpire(ctx, k, ttl).Result()
		if eerr != nil {
			return eerr
		}
		ok = set
		return nil
	})
	if callErr != nil {
		if c.suppress(ctx, op, callErr) {
			return false, nil
		}
		return false, wrapConnError(callErr)
	}
	return ok, nil
}

// IncrVersion 实现 Cache。通过 RENAME 将键迁移到下一个版本号，
// 值与 TTL 原样保留，返回新版本号。
func (c *redisCache) IncrVersion(ctx context.Context, key string, opts ...ItemOption) (version int, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "incr_version")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	current := c.opts.itemVersion(io)
	oldKey := c.opts.keyFunc(key, c.opts.keyPrefix, current)
	newKey := c.opts.keyFunc(key, c.opts.keyPrefix, current+1)

	missing := false
	callErr := c.call(ctx, func() error {
		rerr := c.client.Rename(ctx, oldKey, newKey).Err()
		// go-redis 对 RENAME 的 "no such key" 没有哨兵错误，只能比对消息。
		if rerr != nil && strings.Contains(rerr.Error(), "no such key") {
			missing = true
			return nil
		}
		return rerr
	})
	if callErr != nil {
		if c.suppress(ctx, "incr_version", callErr) {
			return 0, nil
		}
		return 0, wrapConnError(callErr)
	}
	if missing {
		return 0, ErrKeyNotFound
	}
	return current + 1, nil
}
