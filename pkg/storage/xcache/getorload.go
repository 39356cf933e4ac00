package xcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// =============================================================================
// GetOrLoad
// =============================================================================

// defaultLoadTimeout 是脱离调用方 context 后回源执行的兜底超时，
// 防止 loader 悬挂导致 singleflight 永久占坑。
const defaultLoadTimeout = 30 * time.Second

// GetOrLoad 实现 Cache。
//
// miss 时经 singleflight 合并回源: 进程内对同一版本化键的并发 miss
// 只有一个调用真正执行 load，其余调用共享其结果。回源后的写回是
// 尽力而为的——写失败只记日志，不影响本次返回。
//
// 设计决策: 回源在与调用方 Done 解耦的 context 中执行（保留 Values，
// 另设 defaultLoadTimeout 兜底）。发起者取消只影响它自己的等待，
// 不会连累共享同一结果的其他调用方。
func (c *redisCache) GetOrLoad(ctx context.Context, key string, dest any, ttl time.Duration, load LoadFunc, opts ...ItemOption) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if load == nil {
		return ErrNilLoader
	}
	ctx, span := c.span(ctx, "get_or_load")
	defer func() { endSpan(span, err) }()

	k := c.opts.fullKey(key, resolveItem(opts))

	data, found, callErr := c.getRaw(ctx, k)
	if callErr != nil && !c.suppress(ctx, "get_or_load", callErr) {
		return wrapConnError(callErr)
	}
	if found {
		return c.opts.serializer.Unmarshal(data, dest)
	}

	task := flightTask{
		group:      &c.group,
		key:        k,
		serializer: c.opts.serializer,
		logger:     c.opts.errorLogger,
		load:       load,
		getRaw: func(ctx context.Context) ([]byte, bool, error) {
			return c.getRaw(ctx, k)
		},
		setRaw: func(ctx context.Context, data []byte) error {
			return c.setRaw(ctx, k, data, c.opts.resolveTTL(ttl))
		},
	}
	data, err = task.run(ctx)
	if err != nil {
		return err
	}
	return c.opts.serializer.Unmarshal(data, dest)
}

// =============================================================================
// singleflight 回源
// =============================================================================

// flightTask 描述一次合并回源。getRaw/setRaw 抽象后端访问，
// Redis 与进程内后端共用同一回源流程。
type flightTask struct {
	group      *singleflight.Group
	key        string
	serializer Serializer
	logger     *slog.Logger
	load       LoadFunc
	getRaw     func(ctx context.Context) ([]byte, bool, error)
	setRaw     func(ctx context.Context, data []byte) error
}

// run 执行合并回源，返回序列化后的字节。
// 各等待方在自己的 ctx 上等待: 取消只放弃等待，不中断在途回源。
func (t flightTask) run(ctx context.Context) ([]byte, error) {
	ch := t.group.DoChan(t.key, func() (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrLoadPanic, r)
			}
		}()

		// 脱离发起者的取消信号，保留 context 值（请求 ID 等）。
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultLoadTimeout)
		defer cancel()

		// 双重检查: 排队等 flight 槽位期间可能已有别的进程写入。
		if data, found, gerr := t.getRaw(fctx); gerr == nil && found {
			return data, nil
		}

		value, lerr := t.load(fctx)
		if lerr != nil {
			return nil, lerr
		}
		data, merr := t.serializer.Marshal(value)
		if merr != nil {
			return nil, merr
		}
		if serr := t.setRaw(fctx, data); serr != nil && t.logger != nil {
			t.logger.WarnContext(fctx, "cache set after load failed",
				slog.String("key", t.key),
				slog.Any("error", serr),
			)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}
