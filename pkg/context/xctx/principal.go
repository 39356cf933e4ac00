package xctx

import (
	"context"
	"slices"
)

// =============================================================================
// Principal 类型
// =============================================================================

// Principal 表示经过认证的调用方。
//
// ID 为空视为匿名。认证器（pkg/web/xauth）负责构造，
// 请求管线注入 context，权限与业务代码读取。
type Principal struct {
	// ID 是主体的稳定标识，匿名时为空。
	ID string `json:"id"`
	// Name 是可读名称，可能为空。
	Name string `json:"name,omitempty"`
	// Scopes 是授权范围列表。
	Scopes []string `json:"scopes,omitempty"`
	// Admin 标记管理员主体。
	Admin bool `json:"admin,omitempty"`
}

// Anonymous 返回匿名主体。
//
// 设计决策: 未认证请求的主体是匿名值而非 nil——调用方无需判空即可
// 安全调用 IsAnonymous/HasScope，与"请求总有一个主体"的管线不变量一致。
func Anonymous() *Principal {
	return &Principal{}
}

// IsAnonymous 报告主体是否为匿名（nil 或空 ID）。
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.ID == ""
}

// HasScope 报告主体是否拥有指定范围。匿名主体恒为 false。
func (p *Principal) HasScope(scope string) bool {
	if p.IsAnonymous() {
		return false
	}
	return slices.Contains(p.Scopes, scope)
}

// Clone 返回主体的深拷贝，nil 安全。
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Scopes = slices.Clone(p.Scopes)
	return &clone
}

// =============================================================================
// Principal context 操作
// =============================================================================

// WithPrincipal 将认证主体注入 context。
//
// principal 为 nil 返回 ErrNilPrincipal（匿名请求应传 Anonymous()）；
// ctx 为 nil 返回 ErrNilContext。
func WithPrincipal(ctx context.Context, principal *Principal) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if principal == nil {
		return nil, ErrNilPrincipal
	}
	return context.WithValue(ctx, keyPrincipal, principal), nil
}

// PrincipalFrom 从 context 提取主体。
//
// 第二个返回值报告主体是否存在；不存在时第一个返回值为 nil。
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	if v, ok := ctx.Value(keyPrincipal).(*Principal); ok {
		return v, true
	}
	return nil, false
}

// RequirePrincipal 从 context 获取非匿名主体，缺失或匿名时返回错误。
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	p, ok := PrincipalFrom(ctx)
	if !ok || p.IsAnonymous() {
		return nil, ErrMissingPrincipal
	}
	return p, nil
}
