// Package xthrottle 提供视图级请求限流。
//
// 核心抽象:
//   - Rate: 限流速率（次数/周期），ParseRate 解析 "100/minute" 形式的声明
//   - Throttle: 单条限流策略，Check 判定请求是否放行
//   - Backend: 限流状态存储，提供本地令牌桶与 Redis 两种实现
//   - KeyFunc: 请求身份提取（主体 ID / 客户端 IP），返回 false 时跳过该策略
//
// RateThrottle 将以上组件组装为可挂载到视图的策略：
//
//	backend, _ := xthrottle.NewLocalBackend()
//	throttle, _ := xthrottle.NewRateThrottle("burst", xthrottle.MustParseRate("10/second"), backend)
//
// CheckAll 依次执行视图上的全部策略。所有策略都会被执行并记录各自的
// 消耗历史（即使前面的策略已经拒绝），等待时间取各拒绝策略的最大值。
//
// 后端故障默认向上传播（最终表现为 500）；通过 WithFailOpen 可降级为
// 放行并记录告警日志。
package xthrottle
