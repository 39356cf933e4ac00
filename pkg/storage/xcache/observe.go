package xcache

import (
	"context"
	"errors"

	"github.com/omeyang/apikit/pkg/observability/xmetrics"
)

// =============================================================================
// 观测
// =============================================================================

// startSpan 开启一个缓存操作跨度。observer 为 nil 时返回空跨度，调用方无需判空。
func startSpan(ctx context.Context, observer xmetrics.Observer, backend, op string) (context.Context, xmetrics.Span) {
	return xmetrics.Start(ctx, observer, xmetrics.SpanOptions{
		Component: "xcache",
		Operation: op,
		Kind:      xmetrics.KindClient,
		Attrs:     []xmetrics.Attr{{Key: "backend", Value: backend}},
	})
}

// endSpan 结束跨度。miss、not-found 与锁占用是正常业务结果，不计为跨度错误。
func endSpan(span xmetrics.Span, err error) {
	if err != nil &&
		!errors.Is(err, ErrCacheMiss) &&
		!errors.Is(err, ErrKeyNotFound) &&
		!errors.Is(err, ErrLockHeld) {
		span.End(xmetrics.Result{Status: xmetrics.StatusError, Err: err})
		return
	}
	span.End(xmetrics.Result{Status: xmetrics.StatusOK})
}
