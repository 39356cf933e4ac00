package xrequest

import (
	"io"

	"github.com/omeyang/apikit/pkg/context/xctx"
)

// =============================================================================
// 跨包接口声明
//
// 设计决策: Authenticator 由 xauth 实现、Renderer 由 xrender 实现，但接口
// 在本包声明。两者的方法签名都引用 *Request，声明在实现包会造成循环依赖；
// 声明在使用方（本包）符合 Go 的接口归属惯例。xrender 通过类型别名复用
// Renderer，保证全局只有一个接口类型。
// =============================================================================

// Authenticator 定义认证器接口。
//
// Authenticate 返回：
//   - (principal, auth, nil): 认证成功；auth 为底层凭据（token、claims 等）
//   - (nil, nil, nil): 本认证器不处理该请求，继续尝试下一个
//   - (nil, nil, err): 凭据存在但无效，认证链立即终止
type Authenticator interface {
	// Authenticate 尝试认证请求。
	Authenticate(r *Request) (*xctx.Principal, any, error)

	// AuthenticateHeader 返回 401 响应应携带的 WWW-Authenticate 值。
	// 返回空字符串表示该认证器不提供质询。
	AuthenticateHeader(r *Request) string
}

// Renderer 定义响应渲染器接口。
type Renderer interface {
	// MediaType 返回渲染器声明的媒体类型，如 "application/json"。
	MediaType() string

	// Charset 返回字符集；空字符串表示 Content-Type 不附带 charset 参数。
	Charset() string

	// Render 将 data 序列化写入 w。
	Render(w io.Writer, data any) error
}

// Parser 定义请求体解析器接口。
type Parser interface {
	// MediaTypes 返回解析器支持的媒体类型（可含通配，如 "multipart/*"）。
	MediaTypes() []string

	// Parse 从 body 解析数据到 dest。dest 可为 nil，此时仅校验并保留
	// 解析产物（表单类解析器会把结果挂到 Request 上）。
	// 解析失败必须返回可被 FromError 归一化的错误（通常是 400 ParseError）。
	Parse(r *Request, body io.Reader, dest any) error
}
