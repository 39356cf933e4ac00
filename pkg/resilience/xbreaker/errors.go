package xbreaker

import (
	"errors"
	"fmt"

	"github.com/sony/gobreaker/v2"
)

// BreakerError 熔断器错误包装类型。
//
// 包装 gobreaker 的拒绝错误（ErrOpenState、ErrTooManyRequests），
// 并实现 Retryable() 返回 false：熔断器错误应该快速失败而非退避重试。
// 设计决策: Err/Name/State 保留为导出字段，便于调用方在日志和监控中直接读取。
type BreakerError struct {
	Err   error  // 原始错误（ErrOpenState 或 ErrTooManyRequests）
	Name  string // 熔断器名称
	State State  // 错误发生时的熔断器状态
}

// Error 实现 error 接口。
func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

// Unwrap 实现 errors.Unwrap 接口。
func (e *BreakerError) Unwrap() error {
	return e.Err
}

// Retryable 报告该错误是否值得重试，熔断器错误恒为 false：
//   - ErrOpenState: 熔断器打开，下游不可用，重试无意义
//   - ErrTooManyRequests: 半开探测饱和，应等待状态变化
func (e *BreakerError) Retryable() bool {
	return false
}

// wrapBreakerError 如果是熔断器拒绝错误则包装，否则原样返回。
//
// 只比较直接的 sentinel error，不使用 errors.Is 遍历错误链，
// 避免嵌套熔断器场景下把内层的错误归因到外层。
// 已经是 BreakerError 的错误不再二次包装。
//
// 设计决策: 从错误类型推导状态（ErrOpenState→StateOpen,
// ErrTooManyRequests→StateHalfOpen），而非在包装时查询 State()——
// cb.Execute 返回后到 State() 调用之间状态可能已被其他 goroutine 改变。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}

	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}

	if err == gobreaker.ErrOpenState {
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	}
	if err == gobreaker.ErrTooManyRequests {
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	}

	return err
}

// IsOpen 检查错误是否是熔断器打开错误。
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// IsTooManyRequests 检查错误是否是半开状态下的请求过多错误。
func IsTooManyRequests(err error) bool {
	return errors.Is(err, gobreaker.ErrTooManyRequests)
}

// IsBreakerError 检查错误是否由熔断器自身产生（而非受保护的操作）。
func IsBreakerError(err error) bool {
	return IsOpen(err) || IsTooManyRequests(err)
}
