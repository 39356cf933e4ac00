package xperm

import "github.com/omeyang/apikit/pkg/web/xrequest"

// 编译时接口检查
var (
	_ Permission       = andPermission{}
	_ ObjectPermission = andPermission{}
	_ Permission       = orPermission{}
	_ ObjectPermission = orPermission{}
	_ Permission       = notPermission{}
)

// And 组合权限：全部通过才放行，短路求值。
// 拒绝文案取第一个拒绝的操作数。无操作数时恒为通过。
func And(perms ...Permission) Permission {
	return andPermission{perms: append([]Permission(nil), perms...)}
}

// Or 组合权限：任一通过即放行，短路求值。
// 拒绝文案取第一个操作数。无操作数时恒为拒绝。
func Or(perms ...Permission) Permission {
	return orPermission{perms: append([]Permission(nil), perms...)}
}

// Not 反转权限判定。反转后的拒绝没有来自操作数的文案。
func Not(perm Permission) Permission {
	return notPermission{perm: perm}
}

type andPermission struct {
	perms []Permission
}

func (p andPermission) HasPermission(r *xrequest.Request) bool {
	for _, perm := range p.perms {
		if perm != nil && !perm.HasPermission(r) {
			return false
		}
	}
	return true
}

// HasObjectPermission 实现 ObjectPermission 接口。
// 未实现对象级检查的操作数视为通过。
func (p andPermission) HasObjectPermission(r *xrequest.Request, obj any) bool {
	for _, perm := range p.perms {
		objPerm, ok := perm.(ObjectPermission)
		if ok && !objPerm.HasObjectPermission(r, obj) {
			return false
		}
	}
	return true
}

func (p andPermission) messageFor(r *xrequest.Request) string {
	for _, perm := range p.perms {
		if perm != nil && !perm.HasPermission(r) {
			return messageOf(r, perm)
		}
	}
	return ""
}

type orPermission struct {
	perms []Permission
}

func (p orPermission) HasPermission(r *xrequest.Request) bool {
	for _, perm := range p.perms {
		if perm != nil && perm.HasPermission(r) {
			return true
		}
	}
	return false
}

// HasObjectPermission 实现 ObjectPermission 接口。
// 操作数未实现对象级检查时，其请求级判定即为对象级判定。
func (p orPermission) HasObjectPermission(r *xrequest.Request, obj any) bool {
	for _, perm := range p.perms {
		if perm == nil {
			continue
		}
		if objPerm, ok := perm.(ObjectPermission); ok {
			if objPerm.HasObjectPermission(r, obj) {
				return true
			}
			continue
		}
		if perm.HasPermission(r) {
			return true
		}
	}
	return false
}

func (p orPermission) messageFor(r *xrequest.Request) string {
	for _, perm := range p.perms {
		if perm != nil {
			return messageOf(r, perm)
		}
	}
	return ""
}

type notPermission struct {
	perm Permission
}

func (p notPermission) HasPermission(r *xrequest.Request) bool {
	return p.perm == nil || !p.perm.HasPermission(r)
}
