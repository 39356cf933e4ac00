package xcache

import (
	"context"
	"iter"
	"strings"
)

// =============================================================================
// 模式操作（SCAN）
// =============================================================================

// Keys 实现 Cache。完整扫描后一次性返回，适合已知基数不大的模式。
func (c *redisCache) Keys(ctx context.Context, pattern string, opts ...ItemOption) (keys []string, err error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "keys")
	defer func() { endSpan(span, err) }()

	io := resolveItem(opts)
	match := c.opts.fullKey(pattern, io)
	root := c.opts.versionRoot(io)

	callErr := c.call(ctx, func() error {
		it := c.client.Scan(ctx, 0, match, c.opts.scanCount).Iterator()
		for it.Next(ctx) {
			keys = append(keys, strings.TrimPrefix(it.Val(), root))
		}
		return it.Err()
	})
	if callErr != nil {
		if c.suppress(ctx, "keys", callErr) {
			return nil, nil
		}
		return nil, wrapConnError(callErr)
	}
	return keys, nil
}

// IterKeys 实现 Cache。
//
// 设计决策: 迭代器的各轮 SCAN 往返与消费方代码交错执行，若整体挂在
// 熔断器的一次执行内，会长时间占用半开状态的试探名额，因此 IterKeys
// 不经过熔断器。错误抑制仍然生效: 抑制模式下迭代静默提前结束。
func (c *redisCache) IterKeys(ctx context.Context, pattern string, opts ...ItemOption) iter.Seq2[string, error] {
	io := resolveItem(opts)
	match := c.opts.fullKey(pattern, io)
	root := c.opts.versionRoot(io)

	return func(yield func(string, error) bool) {
		if c.closed.Load() {
			yield("", ErrCacheClosed)
			return
		}
		ctx, span := c.span(ctx, "iter_keys")
		var err error
		defer func() { endSpan(span, err) }()

		it := c.client.Scan(ctx, 0, match, c.opts.scanCount).Iterator()
		for it.Next(ctx) {
			if !yield(strings.TrimPrefix(it.Val(), root), nil) {
				return
			}
		}
		if serr := it.Err(); serr != nil {
			if c.suppress(ctx, "iter_keys", serr) {
				return
			}
			err = wrapConnError(serr)
			yield("", err)
		}
	}
}

// DeletePattern 实现 Cache。
func (c *redisCache) DeletePattern(ctx context.Context, pattern string, opts ...ItemOption) (deleted int, err error) {
	if c.closed.Load() {
		return 0, ErrCacheClosed
	}
	ctx, span := c.span(ctx, "delete_pattern")
	defer func() { endSpan(span, err) }()

	match := c.opts.fullKey(pattern, resolveItem(opts))
	n, callErr := c.scanDelete(ctx, match)
	if callErr != nil {
		if c.suppress(ctx, "delete_pattern", callErr) {
			return 0, nil
		}
		return 0, wrapConnError(callErr)
	}
	return n, nil
}

// Clear 实现 Cache。设置了键前缀时按 "<prefix>:*" 扫描删除（覆盖所有
// 版本号），未设置前缀时执行 FLUSHDB 清空整个数据库。
func (c *redisCache) Clear(ctx context.Context) (err error) {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	ctx, span := c.span(ctx, "clear")
	defer func() { endSpan(span, err) }()

	var callErr error
	if c.opts.keyPrefix == "" {
		callErr = c.call(ctx, func() error {
			return c.client.FlushDB(ctx).Err()
		})
	} else {
		_, callErr = c.scanDelete(ctx, c.opts.keyPrefix+":*")
	}
	if callErr != nil {
		if c.suppress(ctx, "clear", callErr) {
			return nil
		}
		return wrapConnError(callErr)
	}
	return nil
}

// scanDelete 以 SCAN+DEL 批次删除匹配 match 的键，返回删除数量。
// 整个扫描在熔断器的一次执行内完成。
func (c *redisCache) scanDelete(ctx context.Context, match string) (int, error) {
	deleted := 0
	err := c.call(ctx, func() error {
		batch := make([]string, 0, c.opts.scanCount)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, derr := c.client.Del(ctx, batch...).Result()
			if derr != nil {
				return derr
			}
			deleted += int(n)
			batch = batch[:0]
			return nil
		}

		it := c.client.Scan(ctx, 0, match, c.opts.scanCount).Iterator()
		for it.Next(ctx) {
			batch = append(batch, it.Val())
			if int64(len(batch)) >= c.opts.scanCount {
				if ferr := flush(); ferr != nil {
					return ferr
				}
			}
		}
		if serr := it.Err(); serr != nil {
			return serr
		}
		return flush()
	})
	return deleted, err
}
