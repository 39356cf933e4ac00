package xcache

import (
	"context"
	"iter"
	"time"
)

// NoExpiry 作为 TTL 传入时表示键永不过期。
//
// 与 go-redis 的 TTL 命令返回值约定一致: TTL 方法对无过期时间的键
// 也返回 NoExpiry，两侧可以直接比较。
const NoExpiry = time.Duration(-1)

// DefaultScanCount 是 SCAN 类操作每轮取回的键数量提示。
const DefaultScanCount = 10

// LoadFunc 是 GetOrLoad 的回源函数。返回值会被序列化后写入缓存。
type LoadFunc func(ctx context.Context) (any, error)

// Unlocker 释放 Lock 获取到的锁。
// 锁已过期或被抢走时返回 ErrLockExpired。
type Unlocker func(ctx context.Context) error

// Cache 定义统一缓存接口。
//
// 所有键在落到后端前都会经过 KeyFunc 版本化（见 WithKeyPrefix/WithVersion），
// 每个操作可用 WithItemVersion 覆盖本次调用的版本号。
// TTL 参数约定: 0 表示使用缓存级默认 TTL（WithDefaultTTL），
// NoExpiry 表示永不过期，正值表示精确的存活时间。
type Cache interface {
	// Get 读取 key 并反序列化到 dest。键不存在时返回 ErrCacheMiss。
	Get(ctx context.Context, key string, dest any, opts ...ItemOption) error

	// Set 无条件写入 key。
	Set(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) error

	// Add 仅当 key 不存在时写入，返回是否写入成功。
	Add(ctx context.Context, key string, value any, ttl time.Duration, opts ...ItemOption) (bool, error)

	// GetOrLoad 读取 key；miss 时调用 load 回源，结果写回缓存并反序列化到 dest。
	// 同一进程内对同一版本化键的并发 miss 只会触发一次 load。
	GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, load LoadFunc, opts ...ItemOption) error

	// GetMany 批量读取，返回命中键到原始字节的映射，键为调用方传入的原始键。
	// 未命中的键不出现在结果中，不视为错误。
	GetMany(ctx context.Context, keys []string, opts ...ItemOption) (map[string][]byte, error)

	// SetMany 批量写入，所有键共享同一 TTL。
	SetMany(ctx context.Context, items map[string]any, ttl time.Duration, opts ...ItemOption) error

	// Delete 删除 key，返回键是否存在。
	Delete(ctx context.Context, key string, opts ...ItemOption) (bool, error)

	// DeleteMany 批量删除。
	DeleteMany(ctx context.Context, keys []string, opts ...ItemOption) error

	// DeletePattern 删除匹配 glob 模式的所有键，返回删除数量。
	DeletePattern(ctx context.Context, pattern string, opts ...ItemOption) (int, error)

	// Incr 将 key 的整数值加 delta，返回新值。键不存在时返回 ErrKeyNotFound。
	Incr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error)

	// Decr 将 key 的整数值减 delta，返回新值。键不存在时返回 ErrKeyNotFound。
	Decr(ctx context.Context, key string, delta int64, opts ...ItemOption) (int64, error)

	// Has 报告 key 是否存在。
	Has(ctx context.Context, key string, opts ...ItemOption) (bool, error)

	// Keys 返回匹配 glob 模式的所有键（去版本化后的原始键）。
	// 基于 SCAN 实现，不阻塞后端，但对大键空间会产生多轮往返，
	// 倾向流式消费时用 IterKeys。
	Keys(ctx context.Context, pattern string, opts ...ItemOption) ([]string, error)

	// IterKeys 流式遍历匹配 glob 模式的键。
	// 迭代途中发生后端错误时，最后一次 yield 携带非 nil 错误。
	IterKeys(ctx context.Context, pattern string, opts ...ItemOption) iter.Seq2[string, error]

	// TTL 返回 key 的剩余存活时间。键不存在时返回 ErrKeyNotFound，
	// 键存在但无过期时间时返回 NoExpiry。
	TTL(ctx context.Context, key string, opts ...ItemOption) (time.Duration, error)

	// Persist 移除 key 的过期时间，返回是否发生了变更。
	Persist(ctx context.Context, key string, opts ...ItemOption) (bool, error)

	// Expire 设置 key 的过期时间，返回键是否存在。
	Expire(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (bool, error)

	// Touch 重置 key 的 TTL（遵循与 Set 相同的 TTL 约定），返回键是否存在。
	Touch(ctx context.Context, key string, ttl time.Duration, opts ...ItemOption) (bool, error)

	// IncrVersion 将 key 迁移到下一个版本号（原值保留，旧版本键消失），
	// 返回新版本号。键不存在时返回 ErrKeyNotFound。
	IncrVersion(ctx context.Context, key string, opts ...ItemOption) (int, error)

	// Clear 清空缓存。设置了键前缀时只清除该前缀下的键（所有版本），
	// 否则清空整个数据库。
	Clear(ctx context.Context) error

	// Lock 获取名为 name 的分布式互斥锁，成功返回释放函数。
	// 锁被他人持有时返回 ErrLockHeld，不等待。
	Lock(ctx context.Context, name string, ttl time.Duration) (Unlocker, error)

	// Close 关闭缓存。重复调用返回 ErrCacheClosed。
	Close() error
}
