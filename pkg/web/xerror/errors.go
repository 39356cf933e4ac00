package xerror

import "errors"

// =============================================================================
// 类别哨兵错误
// =============================================================================

// 哨兵错误用于 errors.Is 判断 APIError 的类别。
// 它们本身不携带状态码，与 APIError 的对应关系见 (*APIError).Is。
var (
	// ErrParse 表示请求体无法解析（400）。
	ErrParse = errors.New("xerror: parse error")

	// ErrValidation 表示请求数据未通过校验（400）。
	ErrValidation = errors.New("xerror: validation error")

	// ErrNotAuthenticated 表示请求未携带认证凭据（401）。
	ErrNotAuthenticated = errors.New("xerror: not authenticated")

	// ErrAuthenticationFailed 表示认证凭据无效（401）。
	ErrAuthenticationFailed = errors.New("xerror: authentication failed")

	// ErrPermissionDenied 表示权限不足（403）。
	ErrPermissionDenied = errors.New("xerror: permission denied")

	// ErrNotFound 表示资源不存在（404）。
	ErrNotFound = errors.New("xerror: not found")

	// ErrMethodNotAllowed 表示视图未注册该 HTTP 方法（405）。
	ErrMethodNotAllowed = errors.New("xerror: method not allowed")

	// ErrNotAcceptable 表示无法满足 Accept 头（406）。
	ErrNotAcceptable = errors.New("xerror: not acceptable")

	// ErrConflict 表示资源状态冲突（409）。
	ErrConflict = errors.New("xerror: conflict")

	// ErrBodyTooLarge 表示请求体超过配置上限（413）。
	ErrBodyTooLarge = errors.New("xerror: request body too large")

	// ErrUnsupportedMediaType 表示没有解析器支持请求的 Content-Type（415）。
	ErrUnsupportedMediaType = errors.New("xerror: unsupported media type")

	// ErrThrottled 表示请求被限流（429）。
	ErrThrottled = errors.New("xerror: throttled")

	// ErrServer 表示服务端错误（5xx）。
	ErrServer = errors.New("xerror: server error")

	// ErrTimeout 表示请求处理超时（504）。
	ErrTimeout = errors.New("xerror: timeout")

	// ErrClientClosed 表示客户端在处理完成前断开（499）。
	ErrClientClosed = errors.New("xerror: client closed request")
)

// =============================================================================
// 机器可读错误码
// =============================================================================

// 错误码随响应体返回，供客户端程序化处理；文案可变，码保持稳定。
const (
	CodeParseError           = "parse_error"
	CodeValidation           = "invalid"
	CodeNotAuthenticated     = "not_authenticated"
	CodeAuthenticationFailed = "authentication_failed"
	CodePermissionDenied     = "permission_denied"
	CodeNotFound             = "not_found"
	CodeMethodNotAllowed     = "method_not_allowed"
	CodeNotAcceptable        = "not_acceptable"
	CodeConflict             = "conflict"
	CodeBodyTooLarge         = "body_too_large"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeThrottled            = "throttled"
	CodeServerError          = "error"
	CodeTimeout              = "timeout"
	CodeClientClosed         = "client_closed"
)
