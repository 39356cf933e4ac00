package xctx

import (
	"context"

	"github.com/google/uuid"
)

// =============================================================================
// RequestID 操作
// =============================================================================

// WithRequestID 将 request ID 注入 context。
//
// 空 requestID 返回 ErrEmptyRequestID；ctx 为 nil 返回 ErrNilContext。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if requestID == "" {
		return nil, ErrEmptyRequestID
	}
	return context.WithValue(ctx, keyRequestID, requestID), nil
}

// RequestID 从 context 提取 request ID，不存在返回空字符串。
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}

// RequireRequestID 从 context 获取 request ID，不存在则返回错误。
func RequireRequestID(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	v := RequestID(ctx)
	if v == "" {
		return "", ErrMissingRequestID
	}
	return v, nil
}

// EnsureRequestID 保证 context 中存在 request ID。
//
// 已存在时原样返回；缺失时生成一个 UUID 注入并返回。
// 入口中间件用它统一补齐请求关联 ID。
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if v := RequestID(ctx); v != "" {
		return ctx, v
	}
	id := uuid.NewString()
	return context.WithValue(ctx, keyRequestID, id), id
}

// =============================================================================
// ClientIP 操作
// =============================================================================

// WithClientIP 将客户端 IP 注入 context。
//
// 空 ip 是合法输入（表示未能解析），原样透传不报错。
func WithClientIP(ctx context.Context, ip string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return context.WithValue(ctx, keyClientIP, ip), nil
}

// ClientIP 从 context 提取客户端 IP，不存在返回空字符串。
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		return v
	}
	return ""
}
