package xthrottle

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate 表示限流速率：每 Period 允许 N 次请求。
type Rate struct {
	// N 周期内允许的请求数
	N int

	// Period 限流周期
	Period time.Duration
}

// ParseRate 解析 "<次数>/<单位>" 形式的速率声明，如 "100/minute"。
//
// 支持的单位及缩写：second（sec、s）、minute（min、m）、hour（h）、day（d）。
// 次数必须为正整数；无法解析或数值非法时返回 ErrInvalidRate。
func ParseRate(s string) (Rate, error) {
	numPart, unitPart, ok := strings.Cut(s, "/")
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	n, err := strconv.Atoi(strings.TrimSpace(numPart))
	if err != nil || n <= 0 {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	period, ok := periodOf(strings.ToLower(strings.TrimSpace(unitPart)))
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}

	return Rate{N: n, Period: period}, nil
}

// MustParseRate 是 ParseRate 的 panic 版本，用于编译期已知合法的字面量。
func MustParseRate(s string) Rate {
	rate, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return rate
}

func periodOf(unit string) (time.Duration, bool) {
	switch unit {
	case "second", "sec", "s":
		return time.Second, true
	case "minute", "min", "m":
		return time.Minute, true
	case "hour", "h":
		return time.Hour, true
	case "day", "d":
		return 24 * time.Hour, true
	}
	return 0, false
}

// IsZero 报告速率是否未设置。
func (r Rate) IsZero() bool {
	return r.N == 0 && r.Period == 0
}

// String 返回速率的规范形式，如 "100/minute"。
// 非标准周期按 time.Duration 的格式输出。
func (r Rate) String() string {
	var unit string
	switch r.Period {
	case time.Second:
		unit = "second"
	case time.Minute:
		unit = "minute"
	case time.Hour:
		unit = "hour"
	case 24 * time.Hour:
		unit = "day"
	default:
		unit = r.Period.String()
	}
	return strconv.Itoa(r.N) + "/" + unit
}

func (r Rate) valid() bool {
	return r.N > 0 && r.Period > 0
}
