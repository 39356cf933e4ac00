package xrequest

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go4.org/netipx"

	"github.com/omeyang/apikit/internal/mediatype"
	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
)

// Request 包装 *http.Request，提供惰性解析、惰性认证与协商状态承载。
//
// 并发约束：惰性字段的首次求值发生在视图 dispatch 阶段（单 goroutine）；
// 求值完成后所有访问器对并发读取安全。
type Request struct {
	raw *http.Request

	parsers        []Parser
	authenticators []Authenticator
	maxBodyBytes   int64
	numProxies     int
	numProxiesSet  bool
	trusted        *netipx.IPSet

	// Content-Type 解析缓存
	ctOnce sync.Once
	ct     mediatype.MediaType

	// 查询参数解析缓存
	queryOnce sync.Once
	query     url.Values

	// 请求体一次性读取缓存
	bodyOnce sync.Once
	body     []byte
	bodyErr  error

	// 表单类解析器的解析产物
	form          url.Values
	multipartForm *multipart.Form

	// 认证链一次性执行缓存
	authOnce       sync.Once
	principal      *xctx.Principal
	auth           any
	successfulAuth Authenticator
	authErr        error

	// 客户端 IP 解析缓存
	ipOnce sync.Once
	ip     string

	// 协商与版本状态（由视图在 dispatch 中写入）
	acceptedRenderer  Renderer
	acceptedMediaType string
	version           string
}

// New 创建请求适配器。
//
// 默认配置：无解析器、无认证器、请求体上限 [DefaultMaxBodyBytes]、
// 不信任 X-Forwarded-For。
func New(r *http.Request, opts ...Option) (*Request, error) {
	if r == nil {
		return nil, ErrNilRequest
	}

	cfg := &config{
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	trusted, err := buildTrustedSet(cfg.trustedCIDRs)
	if err != nil {
		return nil, err
	}

	return &Request{
		raw:            r,
		parsers:        cfg.parsers,
		authenticators: cfg.authenticators,
		maxBodyBytes:   cfg.maxBodyBytes,
		numProxies:     cfg.numProxies,
		numProxiesSet:  cfg.numProxiesSet,
		trusted:        trusted,
	}, nil
}

// =============================================================================
// 基础访问器
// =============================================================================

// Raw 返回底层 *http.Request。
func (r *Request) Raw() *http.Request {
	return r.raw
}

// Method 返回大写的 HTTP 方法。
func (r *Request) Method() string {
	return strings.ToUpper(r.raw.Method)
}

// Path 返回请求路径。
func (r *Request) Path() string {
	return r.raw.URL.Path
}

// Header 返回请求头。
func (r *Request) Header() http.Header {
	return r.raw.Header
}

// Context 返回底层请求的 context。
func (r *Request) Context() context.Context {
	return r.raw.Context()
}

// SetContext 替换底层请求的 context。
//
// 设计决策: 命名为 SetContext 而非 WithContext——本方法原地替换底层
// *http.Request（适配层与底层请求一一对应），"With" 前缀会误导调用方
// 以为返回了新副本。
func (r *Request) SetContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	r.raw = r.raw.WithContext(ctx)
}

// ContentType 返回解析后的 Content-Type。
// 缺失或无法解析时返回零值（Type 为空字符串）。
func (r *Request) ContentType() mediatype.MediaType {
	r.ctOnce.Do(func() {
		header := r.raw.Header.Get("Content-Type")
		if header == "" {
			return
		}
		if mt, err := mediatype.Parse(header); err == nil {
			r.ct = mt
		}
	})
	return r.ct
}

// QueryParams 返回解析后的查询参数（解析一次并缓存）。
func (r *Request) QueryParams() url.Values {
	r.queryOnce.Do(func() {
		r.query = r.raw.URL.Query()
	})
	return r.query
}

// =============================================================================
// 请求体
// =============================================================================

// BodyBytes 读取并缓存完整请求体。
//
// 一次性语义：底层 Body 只消费一次，之后的调用返回缓存结果。
// 超过配置上限返回 413（通过多读 1 字节探测溢出，避免信任 Content-Length）。
func (r *Request) BodyBytes() ([]byte, error) {
	r.bodyOnce.Do(r.readBody)
	return r.body, r.bodyErr
}

func (r *Request) readBody() {
	if r.raw.Body == nil || r.raw.Body == http.NoBody {
		return
	}

	// Content-Length 先行检查：声明超限时直接拒绝，不消费请求体
	if r.maxBodyBytes > 0 && r.raw.ContentLength > r.maxBodyBytes {
		r.bodyErr = xerror.NewBodyTooLarge()
		return
	}

	reader := io.Reader(r.raw.Body)
	if r.maxBodyBytes > 0 {
		reader = io.LimitReader(reader, r.maxBodyBytes+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		r.bodyErr = xerror.NewParseError().Wrap(err)
		return
	}
	if r.maxBodyBytes > 0 && int64(len(data)) > r.maxBodyBytes {
		r.bodyErr = xerror.NewBodyTooLarge()
		return
	}
	r.body = data
}

// Data 按 Content-Type 选择解析器解析请求体到 dest。
//
// 规则：
//   - 无 Content-Type 且请求体为空：no-op，dest 不变
//   - 无 Content-Type 但请求体非空：415
//   - 无匹配解析器：415
//   - 解析失败：400（解析器负责构造具体错误）
//   - 请求体超限：413
//
// 解析基于 BodyBytes 的缓存字节，可对不同 dest 重复调用；
// 表单/multipart 解析器的产物同时挂到 PostForm/MultipartForm。
func (r *Request) Data(dest any) error {
	body, err := r.BodyBytes()
	if err != nil {
		return err
	}

	ct := r.ContentType()
	if ct.Type == "" {
		if len(body) == 0 {
			return nil
		}
		return xerror.NewUnsupportedMediaType("")
	}

	parser := r.selectParser(ct)
	if parser == nil {
		return xerror.NewUnsupportedMediaType(ct.String())
	}

	return parser.Parse(r, bytes.NewReader(body), dest)
}

// selectParser 返回第一个媒体类型匹配的解析器。
func (r *Request) selectParser(ct mediatype.MediaType) Parser {
	for _, parser := range r.parsers {
		for _, spec := range parser.MediaTypes() {
			pattern, err := mediatype.Parse(spec)
			if err != nil {
				continue
			}
			if pattern.Matches(ct) {
				return parser
			}
		}
	}
	return nil
}

// PostForm 返回表单解析器的解析产物；未解析或非表单请求时为 nil。
func (r *Request) PostForm() url.Values {
	return r.form
}

// MultipartForm 返回 multipart 解析器的解析产物；未解析时为 nil。
func (r *Request) MultipartForm() *multipart.Form {
	return r.multipartForm
}

// =============================================================================
// 认证
// =============================================================================

// Principal 返回请求的认证主体。
//
// 惰性执行认证链：按顺序尝试认证器，(nil, nil, nil) 表示跳过，
// 错误立即终止并被记住（后续调用重放同一错误），
// 无认证器接受时返回匿名主体。
// 认证成功后主体同时写入请求 context。
func (r *Request) Principal() (*xctx.Principal, error) {
	r.authOnce.Do(r.authenticate)
	if r.authErr != nil {
		return nil, r.authErr
	}
	return r.principal, nil
}

// Auth 返回认证成功时的底层凭据（token、claims 等）；未认证或失败时为 nil。
func (r *Request) Auth() any {
	r.authOnce.Do(r.authenticate)
	return r.auth
}

// SuccessfulAuthenticator 返回实际完成认证的认证器；未认证或失败时为 nil。
func (r *Request) SuccessfulAuthenticator() Authenticator {
	r.authOnce.Do(r.authenticate)
	return r.successfulAuth
}

// Authenticators 返回配置的认证器列表（视图层用于构造 WWW-Authenticate）。
func (r *Request) Authenticators() []Authenticator {
	return r.authenticators
}

func (r *Request) authenticate() {
	for _, a := range r.authenticators {
		principal, credential, err := a.Authenticate(r)
		if err != nil {
			r.authErr = err
			return
		}
		if principal != nil {
			r.principal = principal
			r.auth = credential
			r.successfulAuth = a
			if ctx, err := xctx.WithPrincipal(r.raw.Context(), principal); err == nil {
				r.raw = r.raw.WithContext(ctx)
			}
			return
		}
	}
	r.principal = xctx.Anonymous()
}

// =============================================================================
// 协商与版本状态
// =============================================================================

// SetAccepted 记录内容协商结果（由视图在 dispatch 初始阶段写入）。
func (r *Request) SetAccepted(renderer Renderer, mediaType string) {
	r.acceptedRenderer = renderer
	r.acceptedMediaType = mediaType
}

// AcceptedRenderer 返回协商选中的渲染器；协商前或失败时为 nil。
func (r *Request) AcceptedRenderer() Renderer {
	return r.acceptedRenderer
}

// AcceptedMediaType 返回协商选中的具体媒体类型。
func (r *Request) AcceptedMediaType() string {
	return r.acceptedMediaType
}

// SetVersion 记录版本协商结果（由视图写入）。
func (r *Request) SetVersion(version string) {
	r.version = version
}

// Version 返回协商确定的 API 版本；未配置版本化时为空字符串。
func (r *Request) Version() string {
	return r.version
}
