package xview

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/observability/xmetrics"
	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xthrottle"
)

// Option 配置 View。
type Option func(*View)

// WithName 设置视图名，用于日志、观测跨度和 OPTIONS 载荷。
func WithName(name string) Option {
	return func(v *View) {
		v.name = name
	}
}

// WithDescription 设置视图描述，出现在 OPTIONS 载荷里。
func WithDescription(description string) Option {
	return func(v *View) {
		v.description = description
	}
}

// knownMethods 是可注册 handler 的方法集合。
var knownMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// WithHandler 注册指定方法的 handler。
// 方法名大小写不敏感；未知方法名属于接线期编程错误，直接 panic。
func WithHandler(method string, h HandlerFunc) Option {
	upper := strings.ToUpper(method)
	if !knownMethods[upper] {
		panic(fmt.Sprintf("xview: unknown method %q", method))
	}
	return func(v *View) {
		if h != nil {
			v.handlers[upper] = h
		}
	}
}

// WithGet 注册 GET handler；未单独注册 HEAD 时同时服务 HEAD 请求。
func WithGet(h HandlerFunc) Option { return WithHandler(http.MethodGet, h) }

// WithPost 注册 POST handler。
func WithPost(h HandlerFunc) Option { return WithHandler(http.MethodPost, h) }

// WithPut 注册 PUT handler。
func WithPut(h HandlerFunc) Option { return WithHandler(http.MethodPut, h) }

// WithPatch 注册 PATCH handler。
func WithPatch(h HandlerFunc) Option { return WithHandler(http.MethodPatch, h) }

// WithDelete 注册 DELETE handler。
func WithDelete(h HandlerFunc) Option { return WithHandler(http.MethodDelete, h) }

// WithRenderers 覆盖响应渲染器，顺序即协商优先级。
func WithRenderers(renderers ...xrender.Renderer) Option {
	return func(v *View) {
		v.renderers = renderers
	}
}

// WithParsers 覆盖请求体解析器。
func WithParsers(parsers ...xrequest.Parser) Option {
	return func(v *View) {
		v.parsers = parsers
	}
}

// WithAuthenticators 覆盖认证器链。
func WithAuthenticators(authenticators ...xrequest.Authenticator) Option {
	return func(v *View) {
		v.authenticators = authenticators
	}
}

// WithPermissions 覆盖权限列表。
func WithPermissions(permissions ...xperm.Permission) Option {
	return func(v *View) {
		v.permissions = permissions
	}
}

// WithThrottles 覆盖限流策略。
func WithThrottles(throttles ...xthrottle.Throttle) Option {
	return func(v *View) {
		v.throttles = throttles
	}
}

// WithNegotiator 覆盖内容协商器。
func WithNegotiator(n xrender.Negotiator) Option {
	return func(v *View) {
		if n != nil {
			v.negotiator = n
		}
	}
}

// WithVersioning 启用版本方案，默认不做版本处理。
func WithVersioning(scheme Versioning) Option {
	return func(v *View) {
		v.versioning = scheme
	}
}

// WithMetadata 覆盖 OPTIONS 载荷生成器。
func WithMetadata(m Metadata) Option {
	return func(v *View) {
		if m != nil {
			v.metadata = m
		}
	}
}

// WithMaxBodyBytes 覆盖请求体上限，0 表示不限制。
func WithMaxBodyBytes(n int64) Option {
	return func(v *View) {
		v.maxBodyBytes = n
	}
}

// WithNumProxies 声明信任的反向代理层数，据此从 X-Forwarded-For 取客户端 IP。
func WithNumProxies(n int) Option {
	return func(v *View) {
		v.clientIPOpts = []xrequest.Option{xrequest.WithNumProxies(n)}
	}
}

// WithTrustedProxies 声明信任的代理网段，从 X-Forwarded-For 反向回溯客户端 IP。
func WithTrustedProxies(cidrs ...string) Option {
	return func(v *View) {
		v.clientIPOpts = []xrequest.Option{xrequest.WithTrustedProxies(cidrs...)}
	}
}

// WithLogger 设置日志记录器，默认使用 xlog 全局默认。
func WithLogger(logger xlog.Logger) Option {
	return func(v *View) {
		v.logger = logger
	}
}

// WithObserver 设置观测器，每次分发产生 component=xview 的跨度。
func WithObserver(observer xmetrics.Observer) Option {
	return func(v *View) {
		v.observer = observer
	}
}
