package xctx

import (
	"context"
	"log/slog"
)

// AppendRequestAttrs 将 context 中的请求信息追加到现有切片。
// 零分配热路径优化：传入预分配的切片，只追加非空字段。
//
// 追加的属性：request_id、principal_id（非匿名时）、client_ip。
func AppendRequestAttrs(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	if ctx == nil {
		return attrs
	}

	if v := RequestID(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyRequestID, v))
	}
	if p, ok := PrincipalFrom(ctx); ok && !p.IsAnonymous() {
		attrs = append(attrs, slog.String(KeyPrincipalID, p.ID))
	}
	if v := ClientIP(ctx); v != "" {
		attrs = append(attrs, slog.String(KeyClientIP, v))
	}

	return attrs
}

// RequestAttrs 从 context 提取请求信息，转换为 slog.Attr 切片。
//
// 只返回非空字段，全空时返回 nil。
// 注意：每次调用会分配新切片，热路径建议使用 AppendRequestAttrs。
func RequestAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	attrs := AppendRequestAttrs(make([]slog.Attr, 0, requestFieldCount), ctx)
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
