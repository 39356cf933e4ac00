package xbreaker

// ConsecutiveFailuresPolicy 连续失败熔断策略。
// 当连续失败次数达到阈值时触发熔断，适用于大多数场景。
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败熔断策略。
// threshold 为触发熔断的连续失败次数。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{
		threshold: threshold,
	}
}

// ReadyToTrip 实现 TripPolicy 接口。
func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// Threshold 返回阈值。
func (p *ConsecutiveFailuresPolicy) Threshold() uint32 {
	return p.threshold
}

// FailureRatioPolicy 失败率熔断策略。
// 当失败率超过阈值时触发熔断；请求数未达到最小请求数时不判定。
type FailureRatioPolicy struct {
	ratio       float64 // 失败率阈值 (0.0 - 1.0)
	minRequests uint32  // 最小请求数
}

// NewFailureRatio 创建失败率熔断策略。
// ratio 为失败率阈值 (0.0 - 1.0)；minRequests 为参与判定的最小请求数。
func NewFailureRatio(ratio float64, minRequests uint32) *FailureRatioPolicy {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &FailureRatioPolicy{
		ratio:       ratio,
		minRequests: minRequests,
	}
}

// ReadyToTrip 实现 TripPolicy 接口。
func (p *FailureRatioPolicy) ReadyToTrip(counts Counts) bool {
	// 请求数不足或为零，不触发熔断（避免除零）
	if counts.Requests == 0 || counts.Requests < p.minRequests {
		return false
	}

	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= p.ratio
}

// Ratio 返回失败率阈值。
func (p *FailureRatioPolicy) Ratio() float64 {
	return p.ratio
}

// MinRequests 返回最小请求数。
func (p *FailureRatioPolicy) MinRequests() uint32 {
	return p.minRequests
}
