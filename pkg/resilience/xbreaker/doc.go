// Package xbreaker 提供熔断器功能，保护系统免受级联故障影响。
//
// # 设计理念
//
// xbreaker 封装 [sony/gobreaker/v2]，通过 TripPolicy 抽象熔断触发条件，
// 并把熔断器自身的拒绝错误包装为 BreakerError（Retryable() 返回 false），
// 便于上层区分"后端真的失败了"与"熔断器拦截了请求"。
//
// # 熔断器状态
//
//   - StateClosed（关闭）：正常状态，请求正常通过
//   - StateOpen（打开）：熔断状态，请求直接失败
//   - StateHalfOpen（半开）：探测状态，允许部分请求通过
//
// # 熔断策略
//
//   - ConsecutiveFailuresPolicy：连续失败 N 次后熔断
//   - FailureRatioPolicy：失败率超过阈值后熔断
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
