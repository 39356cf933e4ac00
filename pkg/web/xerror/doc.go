// Package xerror 提供面向 HTTP API 的错误类型。
//
// 核心类型是 APIError：携带 HTTP 状态码、稳定的机器可读 code、
// 面向客户端的 detail 文本以及随响应发送的附加头（如 Retry-After、
// WWW-Authenticate）。请求处理管线中的每一类失败（解析、认证、鉴权、
// 限流、协商）都有对应的构造函数和哨兵错误。
//
// 基本用法：
//
//	if item == nil {
//	    return nil, xerror.NewNotFound()
//	}
//
// 判断错误类别：
//
//	if errors.Is(err, xerror.ErrNotFound) { ... }
//
// 任意错误统一收口到 APIError：
//
//	apiErr := xerror.FromError(err) // 未知错误映射为 500，内部信息不外泄
//
// 设计决策: detail 文本始终面向客户端，内部错误通过 Err 字段保留给日志；
// FromError 对未识别错误只返回通用的 500 文案，避免泄漏实现细节。
package xerror
