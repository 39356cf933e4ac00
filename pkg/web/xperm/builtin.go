package xperm

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// 编译时接口检查
var (
	_ Permission = AllowAny{}
	_ Permission = IsAuthenticated{}
	_ Permission = IsAdmin{}
	_ Permission = IsAuthenticatedOrReadOnly{}
	_ Permission = hasScope{}
	_ Messenger  = IsAdmin{}
	_ Messenger  = hasScope{}
)

// AllowAny 放行所有请求。显式声明"无需权限"比空权限列表更可读。
type AllowAny struct{}

// HasPermission 实现 Permission 接口。
func (AllowAny) HasPermission(*xrequest.Request) bool { return true }

// IsAuthenticated 只放行已认证请求。
type IsAuthenticated struct{}

// HasPermission 实现 Permission 接口。
func (IsAuthenticated) HasPermission(r *xrequest.Request) bool {
	return !principalOf(r).IsAnonymous()
}

// IsAdmin 只放行管理员主体。
type IsAdmin struct{}

// HasPermission 实现 Permission 接口。
func (IsAdmin) HasPermission(r *xrequest.Request) bool {
	principal := principalOf(r)
	return !principal.IsAnonymous() && principal.Admin
}

// Message 实现 Messenger 接口。
func (IsAdmin) Message() string {
	return "Administrator access required."
}

// IsAuthenticatedOrReadOnly 放行只读方法（GET/HEAD/OPTIONS），
// 写方法要求已认证。
type IsAuthenticatedOrReadOnly struct{}

// HasPermission 实现 Permission 接口。
func (IsAuthenticatedOrReadOnly) HasPermission(r *xrequest.Request) bool {
	if r != nil && isSafeMethod(r.Method()) {
		return true
	}
	return !principalOf(r).IsAnonymous()
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// hasScope 要求主体持有全部给定范围。
type hasScope struct {
	scopes []string
}

// HasScope 构造范围检查权限；要求主体同时持有全部 scopes。
// 空列表等价于 IsAuthenticated。
func HasScope(scopes ...string) Permission {
	return hasScope{scopes: append([]string(nil), scopes...)}
}

// HasPermission 实现 Permission 接口。
func (p hasScope) HasPermission(r *xrequest.Request) bool {
	principal := principalOf(r)
	if principal.IsAnonymous() {
		return false
	}
	for _, scope := range p.scopes {
		if !principal.HasScope(scope) {
			return false
		}
	}
	return true
}

// Message 实现 Messenger 接口。
// Messenger 不接触请求，文案列出全部要求的范围。
func (p hasScope) Message() string {
	if len(p.scopes) == 0 {
		return "Authentication required."
	}
	return fmt.Sprintf("Required scopes: %s.", strings.Join(p.scopes, ", "))
}
