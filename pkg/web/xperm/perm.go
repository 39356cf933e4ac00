package xperm

import (
	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// Permission 判定请求是否被允许。实现必须无状态且并发安全。
type Permission interface {
	HasPermission(r *xrequest.Request) bool
}

// Messenger 是 Permission 的可选扩展：拒绝时细化 403 的 detail。
type Messenger interface {
	Message() string
}

// ObjectPermission 是 Permission 的可选扩展：针对具体对象的检查，
// 由 handler 在加载对象后通过 CheckObject 触发。
type ObjectPermission interface {
	HasObjectPermission(r *xrequest.Request, obj any) bool
}

// requestMessenger 是组合子内部的消息协议：拒绝文案依赖请求
// （需要重新定位第一个拒绝的操作数）。
type requestMessenger interface {
	messageFor(r *xrequest.Request) string
}

// principalOf 返回请求主体；认证未进行或失败时按匿名处理。
// 权限阶段在认证之后执行，这里的错误分支只服务于脱离管线的直接调用。
func principalOf(r *xrequest.Request) *xctx.Principal {
	if r == nil {
		return xctx.Anonymous()
	}
	principal, err := r.Principal()
	if err != nil || principal == nil {
		return xctx.Anonymous()
	}
	return principal
}

// messageOf 返回权限的拒绝文案，无文案时为空串。
func messageOf(r *xrequest.Request, perm Permission) string {
	if m, ok := perm.(requestMessenger); ok {
		return m.messageFor(r)
	}
	if m, ok := perm.(Messenger); ok {
		return m.Message()
	}
	return ""
}

// Check 依次执行权限检查，全部通过返回 nil，
// 第一个拒绝的权限决定返回的错误与文案。nil 权限被跳过。
func Check(r *xrequest.Request, perms []Permission) error {
	for _, perm := range perms {
		if perm == nil || perm.HasPermission(r) {
			continue
		}
		return DenialFor(r, hasAuthenticators(r), messageOf(r, perm))
	}
	return nil
}

// CheckObject 对已加载的对象执行对象级权限检查。
// 只有实现 ObjectPermission 的权限参与；其余视为通过。
func CheckObject(r *xrequest.Request, perms []Permission, obj any) error {
	for _, perm := range perms {
		objPerm, ok := perm.(ObjectPermission)
		if !ok || objPerm.HasObjectPermission(r, obj) {
			continue
		}
		return DenialFor(r, hasAuthenticators(r), messageOf(r, perm))
	}
	return nil
}

// DenialFor 把权限拒绝翻译为 HTTP 错误。
//
// authed 表示视图配置了认证方式：匿名请求在可认证的视图上收到
// 401（NotAuthenticated，提示补全凭据而非权限不足）；
// 其余情况返回 403，msg 非空时作为 detail。
func DenialFor(r *xrequest.Request, authed bool, msg string) error {
	if authed && principalOf(r).IsAnonymous() {
		return xerror.NewNotAuthenticated()
	}
	denied := xerror.NewPermissionDenied()
	if msg != "" {
		denied = denied.WithDetail(msg)
	}
	return denied
}

func hasAuthenticators(r *xrequest.Request) bool {
	return r != nil && len(r.Authenticators()) > 0
}
