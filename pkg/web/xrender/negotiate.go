package xrender

import (
	"errors"
	"fmt"

	"github.com/omeyang/apikit/internal/mediatype"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// ErrNoRenderers 表示协商时渲染器列表为空；属于调用方编程错误。
var ErrNoRenderers = errors.New("xrender: no renderers configured")

// Negotiator 在配置的渲染器中选出满足请求的那个。
//
// 返回选中的渲染器与具体媒体类型（取 offer 与 Accept 子句中更具体的
// 一侧，参数来自 Accept 子句）。无法满足时返回 406 的 APIError。
type Negotiator interface {
	Select(r *xrequest.Request, renderers []Renderer) (Renderer, string, error)
}

var _ Negotiator = (*DefaultNegotiator)(nil)

// DefaultFormatParam 是 format 覆盖使用的默认查询参数名。
const DefaultFormatParam = "format"

// DefaultNegotiator 按 Accept 头特异度分组协商。
//
// 设计决策: 同一特异度层级内按渲染器配置顺序而非 q 值决定优先级——
// 服务端声明的渲染器顺序表达了偏好，客户端 q 值只在跨层级排序时参与
// （由 mediatype.ParseAccept 完成）。?format=<短名> 在协商前收窄候选，
// 收窄后为空同样按 406 处理。
type DefaultNegotiator struct {
	formatParam string
}

// NegotiateOption 定义 DefaultNegotiator 的配置选项。
type NegotiateOption func(*DefaultNegotiator)

// WithFormatParam 设置 format 覆盖的查询参数名；空字符串禁用覆盖。
func WithFormatParam(name string) NegotiateOption {
	return func(n *DefaultNegotiator) {
		n.formatParam = name
	}
}

// NewDefaultNegotiator 创建默认协商器。
func NewDefaultNegotiator(opts ...NegotiateOption) *DefaultNegotiator {
	n := &DefaultNegotiator{
		formatParam: DefaultFormatParam,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Select 实现 Negotiator 接口。
func (n *DefaultNegotiator) Select(r *xrequest.Request, renderers []Renderer) (Renderer, string, error) {
	if len(renderers) == 0 {
		return nil, "", ErrNoRenderers
	}

	candidates := renderers
	if n.formatParam != "" && r != nil {
		if format := r.QueryParams().Get(n.formatParam); format != "" {
			candidates = filterByFormat(renderers, format)
			if len(candidates) == 0 {
				return nil, "", xerror.NewNotAcceptable().
					WithDetail(fmt.Sprintf("Format %q is not available.", format))
			}
		}
	}

	accepts := mediatype.ParseAccept(acceptHeader(r))

	// 按特异度层级分组遍历：层级内渲染器顺序优先于子句顺序
	for start := 0; start < len(accepts); {
		end := start
		for end < len(accepts) && accepts[end].Precedence() == accepts[start].Precedence() {
			end++
		}
		group := accepts[start:end]

		for _, renderer := range candidates {
			offer, err := mediatype.Parse(renderer.MediaType())
			if err != nil {
				continue
			}
			for _, clause := range group {
				if offer.Matches(clause) {
					return renderer, acceptedMediaType(offer, clause), nil
				}
			}
		}
		start = end
	}

	return nil, "", xerror.NewNotAcceptable()
}

func acceptHeader(r *xrequest.Request) string {
	if r == nil {
		return ""
	}
	return r.Header().Get("Accept")
}

func filterByFormat(renderers []Renderer, format string) []Renderer {
	var out []Renderer
	for _, renderer := range renderers {
		hinter, ok := renderer.(FormatHinter)
		if ok && hinter.Format() == format {
			out = append(out, renderer)
		}
	}
	return out
}

// acceptedMediaType 返回协商出的具体媒体类型。
//
// offer 比 Accept 子句更具体时（如客户端发 */*），采用 offer 的类型并
// 携带子句的参数；否则原样返回子句（如 application/json; indent=4）。
func acceptedMediaType(offer, clause mediatype.MediaType) string {
	if offer.Precedence() > clause.Precedence() {
		if len(clause.Params) > 0 {
			merged := offer
			merged.Params = clause.Params
			return merged.String()
		}
		return offer.String()
	}
	return clause.String()
}
