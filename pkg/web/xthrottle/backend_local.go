package xthrottle

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity 是本地后端默认保留的令牌桶数量。
const DefaultCapacity = 8192

// LocalBackend 是进程内令牌桶后端。
//
// 每个 key 对应一个独立令牌桶，全部桶保存在固定容量的 LRU 中，
// 内存占用有上界；最久未活跃的桶被淘汰后等同于配额重置。
// 适用于单实例部署或作为分布式限流的降级方案。
type LocalBackend struct {
	mu      sync.Mutex
	buckets *lru.Cache[string, *tokenBucket]
	now     func() time.Time
}

// LocalOption 配置 LocalBackend。
type LocalOption func(*localOptions)

type localOptions struct {
	capacity int
	now      func() time.Time
}

// WithCapacity 设置 LRU 保留的令牌桶数量上限。
func WithCapacity(n int) LocalOption {
	return func(o *localOptions) {
		o.capacity = n
	}
}

// WithClock 替换时间源，仅用于测试。
func WithClock(now func() time.Time) LocalOption {
	return func(o *localOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewLocalBackend 创建本地令牌桶后端。
// 容量非正时返回 ErrInvalidCapacity。
func NewLocalBackend(opts ...LocalOption) (*LocalBackend, error) {
	o := localOptions{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if o.capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, o.capacity)
	}

	buckets, err := lru.New[string, *tokenBucket](o.capacity)
	if err != nil {
		return nil, fmt.Errorf("xthrottle: create bucket cache: %w", err)
	}

	return &LocalBackend{
		buckets: buckets,
		now:     o.now,
	}, nil
}

// Allow 实现 Backend 接口。
func (b *LocalBackend) Allow(ctx context.Context, key string, rate Rate) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !rate.valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}

	allowed, remaining, retryAfter := b.bucket(key, rate).take(b.now(), rate)

	return Result{
		Allowed:    allowed,
		Limit:      rate.N,
		Remaining:  remaining,
		RetryAfter: retryAfter,
	}, nil
}

// bucket 返回 key 对应的令牌桶，不存在时创建。
// LRU 自身并发安全，但 get-or-create 需要整体原子，故加外层锁。
func (b *LocalBackend) bucket(key string, rate Rate) *tokenBucket {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bucket, ok := b.buckets.Get(key); ok {
		return bucket
	}

	bucket := &tokenBucket{
		tokens:     float64(rate.N),
		lastUpdate: b.now(),
	}
	b.buckets.Add(key, bucket)
	return bucket
}

// tokenBucket 令牌桶。按流逝时间连续补充令牌，桶满为止。
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// take 尝试取出一个令牌。
// 返回是否成功、剩余令牌数，以及失败时建议的等待时间（成功时为 -1）。
func (tb *tokenBucket) take(now time.Time, rate Rate) (allowed bool, remaining int, retryAfter time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	refillPerSecond := float64(rate.N) / rate.Period.Seconds()

	// 时钟回拨时不补充也不回退水位
	if elapsed := now.Sub(tb.lastUpdate); elapsed > 0 {
		tb.tokens += refillPerSecond * elapsed.Seconds()
		if tb.tokens > float64(rate.N) {
			tb.tokens = float64(rate.N)
		}
		tb.lastUpdate = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true, int(tb.tokens), -1
	}

	deficit := 1 - tb.tokens
	wait := time.Duration(deficit / refillPerSecond * float64(time.Second))
	return false, 0, wait
}

// 确保 LocalBackend 实现了 Backend 接口
var _ Backend = (*LocalBackend)(nil)
