package xthrottle

import (
	"context"
	"time"
)

// Result 表示一次限流检查的结果。
type Result struct {
	// Allowed 是否允许请求通过
	Allowed bool

	// Limit 配额上限
	Limit int

	// Remaining 当前周期内剩余配额
	Remaining int

	// RetryAfter 建议重试等待时间；小于 0 表示未知
	RetryAfter time.Duration
}

// Backend 定义限流状态存储。实现必须并发安全。
// 拒绝通过 Result.Allowed=false 表达，error 只用于基础设施故障。
type Backend interface {
	// Allow 在 key 维度上消耗一次配额并返回判定结果
	Allow(ctx context.Context, key string, rate Rate) (Result, error)
}
