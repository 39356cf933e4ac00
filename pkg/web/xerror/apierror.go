package xerror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIError 表示一个可直接转换为 HTTP 响应的错误。
//
// Detail 是面向客户端的文本；内部错误保留在 Err 中供日志使用，
// 不会出现在响应体里。Header 携带需要随错误响应发送的头，
// 例如 Retry-After 和 WWW-Authenticate。
type APIError struct {
	// Status 是 HTTP 状态码，取值范围 [400, 599]（含 499）。
	Status int
	// Code 是稳定的机器可读错误码，见 Code* 常量。
	Code string
	// Detail 是面向客户端的错误描述。
	Detail string
	// Fields 存放字段级校验错误，非空时会随响应体一起返回。
	Fields map[string][]string
	// Header 是随错误响应发送的附加头，可能为 nil。
	Header http.Header
	// Err 是底层错误，仅用于日志与 errors.Is/As 链，不外泄。
	Err error
}

var _ error = (*APIError)(nil)

func (e *APIError) Error() string {
	return fmt.Sprintf("xerror: status=%d, code=%s: %s", e.Status, e.Code, e.Detail)
}

// Unwrap 返回底层错误。
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 的类别匹配。
// 设计决策: 按 Code 而非状态码匹配——401 同时对应"未认证"与"认证失败"
// 两个类别，状态码区分不开；target 均为 errors.New 的简单值，直接 == 比较。
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case CodeParseError:
		return target == ErrParse
	case CodeValidation:
		return target == ErrValidation
	case CodeNotAuthenticated:
		return target == ErrNotAuthenticated
	case CodeAuthenticationFailed:
		return target == ErrAuthenticationFailed
	case CodePermissionDenied:
		return target == ErrPermissionDenied
	case CodeNotFound:
		return target == ErrNotFound
	case CodeMethodNotAllowed:
		return target == ErrMethodNotAllowed
	case CodeNotAcceptable:
		return target == ErrNotAcceptable
	case CodeConflict:
		return target == ErrConflict
	case CodeBodyTooLarge:
		return target == ErrBodyTooLarge
	case CodeUnsupportedMediaType:
		return target == ErrUnsupportedMediaType
	case CodeThrottled:
		return target == ErrThrottled
	case CodeTimeout:
		return target == ErrTimeout
	case CodeClientClosed:
		return target == ErrClientClosed
	}
	if e.Status >= http.StatusInternalServerError {
		return target == ErrServer
	}
	return false
}

// WithDetail 返回替换了 Detail 的副本。
func (e *APIError) WithDetail(detail string) *APIError {
	clone := e.clone()
	clone.Detail = detail
	return clone
}

// WithHeader 返回追加了响应头的副本。
func (e *APIError) WithHeader(key, value string) *APIError {
	clone := e.clone()
	if clone.Header == nil {
		clone.Header = make(http.Header, 1)
	}
	clone.Header.Set(key, value)
	return clone
}

// WithFields 返回携带字段级校验错误的副本。
func (e *APIError) WithFields(fields map[string][]string) *APIError {
	clone := e.clone()
	clone.Fields = fields
	return clone
}

// Wrap 返回记录了底层错误的副本。
func (e *APIError) Wrap(err error) *APIError {
	clone := e.clone()
	clone.Err = err
	return clone
}

func (e *APIError) clone() *APIError {
	clone := *e
	if e.Header != nil {
		clone.Header = e.Header.Clone()
	}
	if e.Fields != nil {
		clone.Fields = make(map[string][]string, len(e.Fields))
		for k, v := range e.Fields {
			clone.Fields[k] = append([]string(nil), v...)
		}
	}
	return &clone
}

// Payload 返回错误响应体：{"detail": ..., "code": ...}，
// 存在字段级错误时附加 "fields"。
func (e *APIError) Payload() map[string]any {
	body := map[string]any{
		"detail": e.Detail,
		"code":   e.Code,
	}
	if len(e.Fields) > 0 {
		body["fields"] = e.Fields
	}
	return body
}

// =============================================================================
// 构造函数
// =============================================================================

// New 构造任意状态码的 APIError。一般应优先使用具名构造函数。
func New(status int, code, detail string) *APIError {
	return &APIError{Status: status, Code: code, Detail: detail}
}

// NewParseError 返回 400：请求体无法解析。
func NewParseError() *APIError {
	return New(http.StatusBadRequest, CodeParseError, "Malformed request.")
}

// NewValidationError 返回 400：请求数据未通过校验。
func NewValidationError() *APIError {
	return New(http.StatusBadRequest, CodeValidation, "Invalid input.")
}

// NewNotAuthenticated 返回 401：未提供认证凭据。
func NewNotAuthenticated() *APIError {
	return New(http.StatusUnauthorized, CodeNotAuthenticated, "Authentication credentials were not provided.")
}

// NewAuthenticationFailed 返回 401：认证凭据无效。
func NewAuthenticationFailed() *APIError {
	return New(http.StatusUnauthorized, CodeAuthenticationFailed, "Incorrect authentication credentials.")
}

// NewPermissionDenied 返回 403：权限不足。
func NewPermissionDenied() *APIError {
	return New(http.StatusForbidden, CodePermissionDenied, "You do not have permission to perform this action.")
}

// NewNotFound 返回 404：资源不存在。
func NewNotFound() *APIError {
	return New(http.StatusNotFound, CodeNotFound, "Not found.")
}

// NewMethodNotAllowed 返回 405，detail 中带上被拒绝的方法名。
func NewMethodNotAllowed(method string) *APIError {
	return New(http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		fmt.Sprintf("Method %q not allowed.", method))
}

// NewNotAcceptable 返回 406：无法满足 Accept 头。
func NewNotAcceptable() *APIError {
	return New(http.StatusNotAcceptable, CodeNotAcceptable, "Could not satisfy the request Accept header.")
}

// NewConflict 返回 409：资源状态冲突。
func NewConflict() *APIError {
	return New(http.StatusConflict, CodeConflict, "Resource conflict.")
}

// NewBodyTooLarge 返回 413：请求体超过上限。
func NewBodyTooLarge() *APIError {
	return New(http.StatusRequestEntityTooLarge, CodeBodyTooLarge,
		"Request body exceeds the configured limit.")
}

// NewUnsupportedMediaType 返回 415，detail 中带上请求的 Content-Type。
func NewUnsupportedMediaType(mediaType string) *APIError {
	return New(http.StatusUnsupportedMediaType, CodeUnsupportedMediaType,
		fmt.Sprintf("Unsupported media type %q in request.", mediaType))
}

// NewThrottled 返回 429：请求被限流。
//
// wait >= 0 时 detail 中带上预计可用时间（向上取整到秒），
// 并设置 Retry-After 头；wait < 0 表示等待时间未知，不设置头。
func NewThrottled(wait time.Duration) *APIError {
	e := New(http.StatusTooManyRequests, CodeThrottled, "Request was throttled.")
	if wait < 0 {
		return e
	}
	seconds := int64((wait + time.Second - 1) / time.Second)
	unit := "seconds"
	if seconds == 1 {
		unit = "second"
	}
	e.Detail = fmt.Sprintf("Request was throttled. Expected available in %d %s.", seconds, unit)
	e.Header = http.Header{"Retry-After": []string{strconv.FormatInt(seconds, 10)}}
	return e
}

// NewServerError 返回 500：通用服务端错误。
func NewServerError() *APIError {
	return New(http.StatusInternalServerError, CodeServerError, "A server error occurred.")
}

// =============================================================================
// 错误归一化
// =============================================================================

// FromError 把任意错误收口为 APIError。
//
// 规则：
//   - nil 返回 nil
//   - 已是 APIError（含包装链）：原样返回
//   - context.DeadlineExceeded：504
//   - context.Canceled：499（客户端断开，nginx 惯例状态码）
//   - 其他：500，detail 使用通用文案，底层错误保留在 Err 供日志
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(http.StatusGatewayTimeout, CodeTimeout, "The request timed out.").Wrap(err)
	}
	if errors.Is(err, context.Canceled) {
		return New(statusClientClosedRequest, CodeClientClosed, "Client closed request.").Wrap(err)
	}
	return NewServerError().Wrap(err)
}

// statusClientClosedRequest 是客户端提前断开的非标准状态码（nginx 499）。
const statusClientClosedRequest = 499

// IsClientError 报告错误是否映射为 4xx（含 499）。
func IsClientError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 400 && apiErr.Status < 500
}

// IsServerError 报告错误是否映射为 5xx。
func IsServerError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status >= 500
}
