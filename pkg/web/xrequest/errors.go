package xrequest

import "errors"

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilRequest 表示传入的 *http.Request 为 nil。
	ErrNilRequest = errors.New("xrequest: nil http request")

	// ErrInvalidProxyCIDR 表示可信代理配置中的 CIDR/IP 无法解析。
	ErrInvalidProxyCIDR = errors.New("xrequest: invalid trusted proxy cidr")

	// ErrInvalidMaxBodyBytes 表示请求体上限为负数。
	ErrInvalidMaxBodyBytes = errors.New("xrequest: max body bytes must be >= 0")
)
