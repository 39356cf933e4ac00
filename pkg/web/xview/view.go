package xview

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/observability/xmetrics"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xthrottle"
)

// HandlerFunc 是视图的业务入口。
// 返回响应或错误二选一；两者皆 nil 视为编程错误，按 500 处理。
type HandlerFunc func(r *xrequest.Request) (*xrender.Response, error)

// View 是按方法分发的 API 视图，实现 http.Handler。
// 通过 New 创建后不可再修改，可安全地被多个 goroutine 并用。
type View struct {
	name        string
	description string

	handlers       map[string]HandlerFunc
	renderers      []xrender.Renderer
	parsers        []xrequest.Parser
	authenticators []xrequest.Authenticator
	permissions    []xperm.Permission
	throttles      []xthrottle.Throttle
	negotiator     xrender.Negotiator
	versioning     Versioning
	metadata       Metadata
	maxBodyBytes   int64
	clientIPOpts   []xrequest.Option

	logger   xlog.Logger
	observer xmetrics.Observer
}

// 编译时接口检查
var _ http.Handler = (*View)(nil)

// New 创建视图。未显式配置的策略取 Defaults 的进程级默认值。
func New(opts ...Option) *View {
	policy := Defaults()
	v := &View{
		handlers:       make(map[string]HandlerFunc),
		renderers:      policy.Renderers,
		parsers:        policy.Parsers,
		authenticators: policy.Authenticators,
		permissions:    policy.Permissions,
		throttles:      policy.Throttles,
		negotiator:     policy.Negotiator,
		metadata:       policy.Metadata,
		maxBodyBytes:   policy.MaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	if v.negotiator == nil {
		v.negotiator = xrender.NewDefaultNegotiator()
	}
	if v.metadata == nil {
		v.metadata = SimpleMetadata{}
	}
	return v
}

// Name 返回视图名。
func (v *View) Name() string { return v.name }

// Description 返回视图描述。
func (v *View) Description() string { return v.description }

// Renderers 返回配置的渲染器，调用方不得修改。
func (v *View) Renderers() []xrender.Renderer { return v.renderers }

// Parsers 返回配置的解析器，调用方不得修改。
func (v *View) Parsers() []xrequest.Parser { return v.parsers }

// AllowedMethods 返回视图响应的方法列表，已排序。
// 注册了 GET 即隐含 HEAD；OPTIONS 始终可用。
func (v *View) AllowedMethods() []string {
	set := map[string]bool{http.MethodOptions: true}
	for method := range v.handlers {
		set[method] = true
	}
	if set[http.MethodGet] {
		set[http.MethodHead] = true
	}
	return slices.Sorted(maps.Keys(set))
}

// ServeHTTP 实现 http.Handler。
func (v *View) ServeHTTP(w http.ResponseWriter, httpReq *http.Request) {
	start := time.Now()

	ctx, requestID := xctx.EnsureRequestID(httpReq.Context())
	httpReq = httpReq.WithContext(ctx)

	ww := &responseWriter{ResponseWriter: w}
	ww.Header().Set("X-Request-ID", requestID)

	req, err := xrequest.New(httpReq, v.requestOptions()...)
	if err != nil {
		// 构造失败意味着视图配置非法（如坏的代理网段），与具体请求无关
		v.resolveLogger().Error(ctx, "build request failed", xlog.Err(err))
		v.writeFallback(ww)
		v.logAccess(ctx, httpReq.Method, httpReq.URL.Path, ww, time.Since(start))
		return
	}

	if ipCtx, err := xctx.WithClientIP(req.Context(), req.ClientIP()); err == nil {
		req.SetContext(ipCtx)
	}

	spanCtx, span := xmetrics.Start(req.Context(), v.observer, xmetrics.SpanOptions{
		Component: "xview",
		Operation: v.operationName(),
		Kind:      xmetrics.KindServer,
		Attrs: []xmetrics.Attr{
			{Key: "method", Value: req.Method()},
			{Key: "path", Value: req.Path()},
		},
	})
	req.SetContext(spanCtx)

	response := v.dispatch(req)
	v.finalize(req, response)

	if err := response.Write(ww, req.Method() == http.MethodHead); err != nil {
		v.resolveLogger().Error(req.Context(), "write response failed", xlog.Err(err))
		v.writeFallback(ww)
	}

	span.End(xmetrics.Result{
		Status: spanStatus(ww.Status()),
		Attrs:  []xmetrics.Attr{{Key: "status_code", Value: ww.Status()}},
	})
	v.logAccess(req.Context(), req.Method(), req.Path(), ww, time.Since(start))
}

// dispatch 执行处理管线并兜底 panic，保证总能产出一个响应。
func (v *View) dispatch(req *xrequest.Request) (response *xrender.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			v.resolveLogger().Stack(req.Context(), "handler panic",
				slog.Any("panic", rec),
				xlog.Method(req.Method()),
				xlog.Path(req.Path()),
			)
			response = xrender.Error(xerror.NewServerError())
		}
	}()

	if err := v.initial(req); err != nil {
		return v.errorResponse(req, err)
	}

	handler, err := v.handlerFor(req)
	if err != nil {
		return v.errorResponse(req, err)
	}

	resp, err := handler(req)
	if err != nil {
		return v.errorResponse(req, err)
	}
	if resp == nil {
		v.resolveLogger().Error(req.Context(), "handler returned neither response nor error",
			xlog.Method(req.Method()),
			xlog.Path(req.Path()),
		)
		return xrender.Error(xerror.NewServerError())
	}
	return resp
}

// initial 执行 handler 之前的各阶段：协商、版本、认证、权限、限流。
func (v *View) initial(req *xrequest.Request) error {
	renderer, mediaType, err := v.negotiator.Select(req, v.renderers)
	if err != nil {
		return err
	}
	req.SetAccepted(renderer, mediaType)

	if v.versioning != nil {
		version, err := v.versioning.DetermineVersion(req)
		if err != nil {
			return err
		}
		req.SetVersion(version)
	}

	if _, err := req.Principal(); err != nil {
		return err
	}

	if err := xperm.Check(req, v.permissions); err != nil {
		return err
	}

	return xthrottle.CheckAll(req.Context(), req, v.throttles)
}

// handlerFor 按方法查找 handler。
// HEAD 回落到 GET；OPTIONS 未注册时由元数据 handler 兜底。
func (v *View) handlerFor(req *xrequest.Request) (HandlerFunc, error) {
	method := req.Method()
	if h, ok := v.handlers[method]; ok {
		return h, nil
	}
	if method == http.MethodHead {
		if h, ok := v.handlers[http.MethodGet]; ok {
			return h, nil
		}
	}
	if method == http.MethodOptions {
		return v.handleOptions, nil
	}
	return nil, xerror.NewMethodNotAllowed(method)
}

func (v *View) handleOptions(req *xrequest.Request) (*xrender.Response, error) {
	return xrender.OK(v.metadata.Determine(v, req)), nil
}

// errorResponse 把错误翻译为响应：归一化为 APIError、处理 401 质询、
// 按严重程度记日志。
func (v *View) errorResponse(req *xrequest.Request, err error) *xrender.Response {
	apiErr := xerror.FromError(err)

	if apiErr.Status == http.StatusUnauthorized {
		if challenge := v.challenge(req); challenge != "" {
			apiErr = apiErr.WithHeader("WWW-Authenticate", challenge)
		} else {
			// 发不出质询的 401 不成立，降为 403
			downgraded := *apiErr
			downgraded.Status = http.StatusForbidden
			apiErr = &downgraded
		}
	}

	logger := v.resolveLogger()
	if apiErr.Status >= http.StatusInternalServerError {
		logger.Error(req.Context(), "request failed",
			xlog.Err(err),
			xlog.StatusCode(apiErr.Status),
			xlog.Method(req.Method()),
			xlog.Path(req.Path()),
		)
	} else {
		logger.Info(req.Context(), "request rejected",
			xlog.StatusCode(apiErr.Status),
			slog.String("code", apiErr.Code),
			xlog.Method(req.Method()),
			xlog.Path(req.Path()),
		)
	}

	return xrender.Error(apiErr)
}

// challenge 返回第一个认证器的 WWW-Authenticate 质询。
func (v *View) challenge(req *xrequest.Request) string {
	if len(v.authenticators) == 0 {
		return ""
	}
	return v.authenticators[0].AuthenticateHeader(req)
}

// finalize 补全响应的渲染器与默认响应头。
func (v *View) finalize(req *xrequest.Request, response *xrender.Response) {
	if response.Renderer() == nil {
		renderer, mediaType := req.AcceptedRenderer(), req.AcceptedMediaType()
		if renderer == nil && len(v.renderers) > 0 {
			// 协商失败时用第一个渲染器兜底，保证 406 错误体仍有格式
			renderer = v.renderers[0]
			mediaType = renderer.MediaType()
		}
		response.SetNegotiated(renderer, mediaType)
	}

	response.SetHeader("Allow", strings.Join(v.AllowedMethods(), ", "))
	if len(v.renderers) > 1 {
		xrender.PatchVary(response.Header, "Accept")
	}
}

func (v *View) requestOptions() []xrequest.Option {
	opts := []xrequest.Option{
		xrequest.WithParsers(v.parsers...),
		xrequest.WithAuthenticators(v.authenticators...),
		xrequest.WithMaxBodyBytes(v.maxBodyBytes),
	}
	return append(opts, v.clientIPOpts...)
}

func (v *View) resolveLogger() xlog.Logger {
	if v.logger != nil {
		return v.logger
	}
	return xlog.Default()
}

func (v *View) operationName() string {
	if v.name != "" {
		return v.name
	}
	return "dispatch"
}

// writeFallback 在正常渲染路径不可用时写出最简 500 响应。
// 响应头已发出时无法补救，只能留给日志。
func (v *View) writeFallback(ww *responseWriter) {
	if ww.wroteHeader {
		return
	}
	ww.Header().Set("Content-Type", "application/json")
	ww.WriteHeader(http.StatusInternalServerError)
	_, _ = ww.Write([]byte(`{"detail":"A server error occurred.","code":"server_error"}`))
}

func (v *View) logAccess(ctx context.Context, method, path string, ww *responseWriter, elapsed time.Duration) {
	attrs := []slog.Attr{
		xlog.Method(method),
		xlog.Path(path),
		xlog.StatusCode(ww.Status()),
		xlog.Duration(elapsed),
		slog.Int64("bytes", ww.Bytes()),
	}
	if v.name != "" {
		attrs = append(attrs, slog.String("view", v.name))
	}
	v.resolveLogger().Info(ctx, "http request", attrs...)
}

func spanStatus(code int) xmetrics.Status {
	if code >= http.StatusInternalServerError {
		return xmetrics.StatusError
	}
	return xmetrics.StatusOK
}

// responseWriter 包装 http.ResponseWriter，捕获状态码与字节数供访问日志使用。
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// WriteHeader 实现 http.ResponseWriter。
func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write 实现 io.Writer。
func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

// Unwrap 暴露底层 writer，供 http.ResponseController 使用。
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Status 返回已写出的状态码，未写头时为 200。
func (w *responseWriter) Status() int {
	if !w.wroteHeader {
		return http.StatusOK
	}
	return w.status
}

// Bytes 返回已写出的响应体字节数。
func (w *responseWriter) Bytes() int64 {
	return w.bytes
}
