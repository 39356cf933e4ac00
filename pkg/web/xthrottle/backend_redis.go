package xthrottle

import (
	"context"
	"fmt"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// RedisBackend 是基于 Redis 的分布式限流后端。
// 多实例部署共享同一份配额，底层使用 redis_rate 的 GCRA 实现。
type RedisBackend struct {
	limiter *redis_rate.Limiter
}

// NewRedisBackend 创建 Redis 限流后端。
// client 为 nil 时返回 ErrNilClient；client 的生命周期由调用方管理。
func NewRedisBackend(client redis.UniversalClient) (*RedisBackend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisBackend{limiter: redis_rate.NewLimiter(client)}, nil
}

// Allow 实现 Backend 接口。
func (b *RedisBackend) Allow(ctx context.Context, key string, rate Rate) (Result, error) {
	if !rate.valid() {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidRate, rate)
	}

	limit := redis_rate.Limit{
		Rate:   rate.N,
		Burst:  rate.N,
		Period: rate.Period,
	}

	res, err := b.limiter.Allow(ctx, key, limit)
	if err != nil {
		return Result{}, fmt.Errorf("xthrottle: redis allow: %w", err)
	}

	return Result{
		Allowed:    res.Allowed > 0,
		Limit:      rate.N,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// 确保 RedisBackend 实现了 Backend 接口
var _ Backend = (*RedisBackend)(nil)
