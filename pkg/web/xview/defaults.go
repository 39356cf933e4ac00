package xview

import (
	"slices"
	"sync/atomic"

	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xthrottle"
)

// Policy 是视图策略的进程级默认值集合。
// New 创建视图时为未显式配置的策略取此处的值。
type Policy struct {
	// Renderers 响应渲染器，按协商优先级排列
	Renderers []xrender.Renderer

	// Parsers 请求体解析器
	Parsers []xrequest.Parser

	// Authenticators 认证器链
	Authenticators []xrequest.Authenticator

	// Permissions 权限
	Permissions []xperm.Permission

	// Throttles 限流策略
	Throttles []xthrottle.Throttle

	// Negotiator 内容协商器
	Negotiator xrender.Negotiator

	// Metadata OPTIONS 载荷生成器
	Metadata Metadata

	// MaxBodyBytes 请求体上限；0 表示不限制
	MaxBodyBytes int64
}

// clone 返回策略的浅拷贝，切片复制一层，防止调用方改动默认值。
func (p Policy) clone() Policy {
	p.Renderers = slices.Clone(p.Renderers)
	p.Parsers = slices.Clone(p.Parsers)
	p.Authenticators = slices.Clone(p.Authenticators)
	p.Permissions = slices.Clone(p.Permissions)
	p.Throttles = slices.Clone(p.Throttles)
	return p
}

var defaultPolicy atomic.Pointer[Policy]

func init() {
	p := builtinPolicy()
	defaultPolicy.Store(&p)
}

// builtinPolicy 返回出厂默认策略：JSON 渲染、三类常用解析器、
// 无认证、放行全部、不限流。
func builtinPolicy() Policy {
	return Policy{
		Renderers: []xrender.Renderer{xrender.NewJSONRenderer()},
		Parsers: []xrequest.Parser{
			xrequest.NewJSONParser(),
			xrequest.NewFormParser(),
			xrequest.NewMultipartParser(),
		},
		Permissions:  []xperm.Permission{xperm.AllowAny{}},
		Negotiator:   xrender.NewDefaultNegotiator(),
		Metadata:     SimpleMetadata{},
		MaxBodyBytes: xrequest.DefaultMaxBodyBytes,
	}
}

// Defaults 返回当前进程级默认策略的副本。
func Defaults() Policy {
	return defaultPolicy.Load().clone()
}

// SetDefaults 替换进程级默认策略，已创建的视图不受影响。
// 通常在启动时调用一次，统一全服务的认证、渲染与限流口径。
func SetDefaults(p Policy) {
	cloned := p.clone()
	defaultPolicy.Store(&cloned)
}

// ResetDefaults 恢复出厂默认策略，主要用于测试。
func ResetDefaults() {
	p := builtinPolicy()
	defaultPolicy.Store(&p)
}
