package xctx

import "errors"

// =============================================================================
// Context Key 类型定义
// =============================================================================

// 设计决策: contextKey 使用 string 而非 int+iota——包私有类型不会与其他包的
// context key 冲突（context 比较包含类型信息），字符串值在调试时可读性高，
// 性能差异可忽略。
type contextKey string

const (
	keyRequestID = contextKey("xctx:request_id")
	keyPrincipal = contextKey("xctx:principal")
	keyClientIP  = contextKey("xctx:client_ip")
)

// =============================================================================
// 日志属性 Key 常量
// =============================================================================

const (
	KeyRequestID   = "request_id"
	KeyPrincipalID = "principal_id"
	KeyClientIP    = "client_ip"

	// requestFieldCount 请求字段数量（用于 slog 属性预分配）
	requestFieldCount = 3
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrEmptyRequestID 表示尝试注入空的 request ID。
	ErrEmptyRequestID = errors.New("xctx: empty request_id")

	// ErrMissingRequestID 表示 context 中没有 request ID。
	ErrMissingRequestID = errors.New("xctx: missing request_id")

	// ErrNilPrincipal 表示尝试注入 nil 主体。
	// 匿名请求应使用 Anonymous() 而非 nil。
	ErrNilPrincipal = errors.New("xctx: nil principal")

	// ErrMissingPrincipal 表示 context 中没有认证主体。
	ErrMissingPrincipal = errors.New("xctx: missing principal")
)
