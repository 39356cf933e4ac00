package xcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
)

// =============================================================================
// 分布式锁
// =============================================================================

// Lock 实现 Cache。基于 redsync 获取 try-lock 语义的互斥锁:
// 锁被占用时立即返回 ErrLockHeld，不重试不等待。
//
// 锁键与数据键共享键空间，完整键形如 "<prefix>:<version>:lock:<name>"。
//
// 设计决策: 锁操作不参与错误抑制。"没拿到锁"与"拿到了锁"必须可区分，
// 把获取失败吞成成功会破坏互斥语义。
func (c *redisCache) Lock(ctx context.Context, name string, ttl time.Duration) (unlock Unlocker, err error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	ctx, span := c.span(ctx, "lock")
	defer func() { endSpan(span, err) }()

	lockKey := c.opts.fullKey("lock:"+name, itemOptions{})
	mutex := c.rs.NewMutex(lockKey,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if lerr := mutex.TryLockContext(ctx); lerr != nil {
		// redsync 在 context 取消时不一定传播 context 错误，单独检查。
		if cerr := ctx.Err(); cerr != nil {
			err = cerr
			return nil, err
		}
		err = wrapLockError(lerr)
		return nil, err
	}

	return func(ctx context.Context) error {
		ok, uerr := mutex.UnlockContext(ctx)
		if uerr != nil {
			return wrapLockError(uerr)
		}
		if !ok {
			return ErrLockExpired
		}
		return nil
	}, nil
}

// wrapLockError 将 redsync 错误转换为 xcache 错误，保留原始错误链。
func wrapLockError(err error) error {
	if err == nil || isContextError(err) {
		return err
	}

	// ErrTaken 是结构体类型，需要用 errors.As 检查
	var errTaken *redsync.ErrTaken
	if errors.As(err, &errTaken) {
		return fmt.Errorf("%w: %w", ErrLockHeld, err)
	}
	// try-lock 语义下，尝试耗尽等同于锁被占用
	if errors.Is(err, redsync.ErrFailed) {
		return fmt.Errorf("%w: %w", ErrLockHeld, err)
	}
	if errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("%w: %w", ErrLockExpired, err)
	}
	return wrapConnError(err)
}
