package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// 以下是 sony/gobreaker/v2 的类型别名，调用方无需再导入 gobreaker 包。
type (
	// Counts 统计计数，用于熔断判定
	Counts = gobreaker.Counts

	// State 熔断器状态
	State = gobreaker.State
)

// 熔断器状态常量
const (
	// StateClosed 关闭状态（正常）
	StateClosed = gobreaker.StateClosed

	// StateHalfOpen 半开状态（探测）
	StateHalfOpen = gobreaker.StateHalfOpen

	// StateOpen 打开状态（熔断）
	StateOpen = gobreaker.StateOpen
)

// 熔断器错误
var (
	// ErrTooManyRequests 半开状态下请求过多
	ErrTooManyRequests = gobreaker.ErrTooManyRequests

	// ErrOpenState 熔断器处于打开状态
	ErrOpenState = gobreaker.ErrOpenState
)

// TripPolicy 熔断判定策略接口。
// 当 ReadyToTrip 返回 true 时，熔断器从 Closed 转换为 Open。
type TripPolicy interface {
	// ReadyToTrip 判断是否应该触发熔断
	ReadyToTrip(counts Counts) bool
}

// SuccessPolicy 成功判定策略接口（可选）。
// 默认情况下 err == nil 即为成功。
type SuccessPolicy interface {
	// IsSuccessful 判断操作是否成功
	IsSuccessful(err error) bool
}

// Breaker 熔断器执行器。
// 封装 gobreaker 的熔断逻辑，使用 TripPolicy 抽象熔断判定。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	successPolicy SuccessPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[any]
}

// BreakerOption 熔断器配置选项
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略。
// 默认策略：连续失败 5 次触发熔断。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessPolicy 设置成功判定策略。
// 某些场景需要自定义成功判定，例如 HTTP 5xx 算失败但 4xx 算成功。
func WithSuccessPolicy(p SuccessPolicy) BreakerOption {
	return func(b *Breaker) {
		b.successPolicy = p
	}
}

// WithTimeout 设置熔断器从 Open 恢复到 HalfOpen 的超时时间。
// 默认值：60 秒。
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下统计窗口的清零周期。
// 默认值：0（不清除，持续累积）。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		b.interval = d
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许通过的最大请求数。
// 默认值：1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调，可用于日志与监控告警。
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// NewBreaker 创建熔断器执行器。
//
// name 用于日志和监控标识。默认配置：
//   - 熔断策略：连续失败 5 次触发熔断
//   - 超时时间：60 秒
//   - HalfOpen 最大请求数：1
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     60 * time.Second,
		maxRequests: 1,
	}

	for _, opt := range opts {
		opt(b)
	}

	b.cb = gobreaker.NewCircuitBreaker[any](b.buildSettings())

	return b
}

// buildSettings 构建 gobreaker 配置。
func (b *Breaker) buildSettings() gobreaker.Settings {
	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return b.tripPolicy.ReadyToTrip(counts)
		},
	}

	if b.successPolicy != nil {
		st.IsSuccessful = func(err error) bool {
			return b.successPolicy.IsSuccessful(err)
		}
	}

	if b.onStateChange != nil {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			b.onStateChange(name, from, to)
		}
	}

	return st
}

// Do 执行受熔断器保护的操作。
//
// 如果 context 已取消或超时，直接返回 context 错误。
// 如果熔断器处于 Open 状态，操作不会被执行，直接返回包装后的 ErrOpenState。
// 如果熔断器处于 HalfOpen 状态且请求过多，返回包装后的 ErrTooManyRequests。
//
// 注意：context 仅用于入口检查，不会传递给底层操作；
// 熔断器自身的拒绝错误会被包装为 BreakerError（Retryable() 返回 false）。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Execute 执行受熔断器保护的操作（泛型版本）。
// 与 Do 类似，但支持返回值。包级函数而非方法，因为 Go 不支持方法的类型参数。
func Execute[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return zero, wrapBreakerError(err, b.name)
	}
	if result == nil {
		return zero, nil
	}
	if typed, ok := result.(T); ok {
		return typed, nil
	}
	return zero, nil
}

// State 返回熔断器当前状态。
func (b *Breaker) State() State {
	return b.cb.State()
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string {
	return b.name
}

// Counts 返回当前统计计数。
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}
