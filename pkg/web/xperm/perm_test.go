package xperm_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xperm"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// grantAuthenticator 无条件返回固定主体；principal 为 nil 时跳过
type grantAuthenticator struct {
	principal *xctx.Principal
}

func (a grantAuthenticator) Authenticate(*xrequest.Request) (*xctx.Principal, any, error) {
	if a.principal == nil {
		return nil, nil, nil
	}
	return a.principal, nil, nil
}

func (grantAuthenticator) AuthenticateHeader(*xrequest.Request) string {
	return `Token realm="api"`
}

// authedRequest 构造带认证器且认证为指定主体的请求
func authedRequest(t *testing.T, method string, principal *xctx.Principal) *xrequest.Request {
	t.Helper()
	httpReq := httptest.NewRequest(method, "/api/notes", nil)
	req, err := xrequest.New(httpReq,
		xrequest.WithAuthenticators(grantAuthenticator{principal: principal}))
	require.NoError(t, err)
	return req
}

// anonRequest 构造匿名请求；withAuthenticators 控制视图是否配置了认证方式
func anonRequest(t *testing.T, method string, withAuthenticators bool) *xrequest.Request {
	t.Helper()
	httpReq := httptest.NewRequest(method, "/api/notes", nil)

	var opts []xrequest.Option
	if withAuthenticators {
		opts = append(opts, xrequest.WithAuthenticators(grantAuthenticator{}))
	}
	req, err := xrequest.New(httpReq, opts...)
	require.NoError(t, err)
	return req
}

func alice() *xctx.Principal {
	return &xctx.Principal{ID: "u1", Name: "alice", Scopes: []string{"notes:read", "notes:write"}}
}

func admin() *xctx.Principal {
	return &xctx.Principal{ID: "u9", Name: "root", Admin: true}
}

// =============================================================================
// 内置权限
// =============================================================================

func TestAllowAny(t *testing.T) {
	assert.True(t, xperm.AllowAny{}.HasPermission(anonRequest(t, "GET", false)))
	assert.True(t, xperm.AllowAny{}.HasPermission(nil))
}

func TestIsAuthenticated(t *testing.T) {
	perm := xperm.IsAuthenticated{}
	assert.False(t, perm.HasPermission(anonRequest(t, "GET", true)))
	assert.True(t, perm.HasPermission(authedRequest(t, "GET", alice())))
}

func TestIsAdmin(t *testing.T) {
	perm := xperm.IsAdmin{}
	assert.False(t, perm.HasPermission(authedRequest(t, "GET", alice())))
	assert.True(t, perm.HasPermission(authedRequest(t, "GET", admin())))
	assert.Equal(t, "Administrator access required.", perm.Message())
}

func TestIsAuthenticatedOrReadOnly(t *testing.T) {
	perm := xperm.IsAuthenticatedOrReadOnly{}

	tests := []struct {
		name   string
		method string
		authed bool
		want   bool
	}{
		{name: "anonymous_get", method: "GET", authed: false, want: true},
		{name: "anonymous_head", method: "HEAD", authed: false, want: true},
		{name: "anonymous_options", method: "OPTIONS", authed: false, want: true},
		{name: "anonymous_post", method: "POST", authed: false, want: false},
		{name: "anonymous_delete", method: "DELETE", authed: false, want: false},
		{name: "authenticated_post", method: "POST", authed: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *xrequest.Request
			if tt.authed {
				req = authedRequest(t, tt.method, alice())
			} else {
				req = anonRequest(t, tt.method, true)
			}
			assert.Equal(t, tt.want, perm.HasPermission(req))
		})
	}
}

func TestHasScope(t *testing.T) {
	t.Run("all_scopes_present", func(t *testing.T) {
		perm := xperm.HasScope("notes:read", "notes:write")
		assert.True(t, perm.HasPermission(authedRequest(t, "GET", alice())))
	})

	t.Run("missing_scope", func(t *testing.T) {
		perm := xperm.HasScope("notes:admin")
		assert.False(t, perm.HasPermission(authedRequest(t, "GET", alice())))
	})

	t.Run("anonymous_denied", func(t *testing.T) {
		perm := xperm.HasScope("notes:read")
		assert.False(t, perm.HasPermission(anonRequest(t, "GET", true)))
	})

	t.Run("empty_scopes_requires_authentication", func(t *testing.T) {
		perm := xperm.HasScope()
		assert.True(t, perm.HasPermission(authedRequest(t, "GET", alice())))
		assert.False(t, perm.HasPermission(anonRequest(t, "GET", true)))
	})

	t.Run("message_lists_scopes", func(t *testing.T) {
		perm := xperm.HasScope("notes:read", "notes:write")
		m, ok := perm.(xperm.Messenger)
		require.True(t, ok)
		assert.Equal(t, "Required scopes: notes:read, notes:write.", m.Message())
	})
}

// =============================================================================
// 组合子
// =============================================================================

// countingPermission 记录调用次数，验证短路求值
type countingPermission struct {
	allow bool
	calls int
}

func (p *countingPermission) HasPermission(*xrequest.Request) bool {
	p.calls++
	return p.allow
}

func TestAnd(t *testing.T) {
	req := authedRequest(t, "GET", alice())

	assert.True(t, xperm.And(xperm.AllowAny{}, xperm.IsAuthenticated{}).HasPermission(req))
	assert.False(t, xperm.And(xperm.AllowAny{}, xperm.IsAdmin{}).HasPermission(req))
	assert.True(t, xperm.And().HasPermission(req), "空 And 恒为通过")
}

func TestAnd_ShortCircuits(t *testing.T) {
	deny := &countingPermission{allow: false}
	never := &countingPermission{allow: true}

	assert.False(t, xperm.And(deny, never).HasPermission(authedRequest(t, "GET", alice())))
	assert.Equal(t, 1, deny.calls)
	assert.Equal(t, 0, never.calls, "第一个拒绝后不再求值")
}

func TestOr(t *testing.T) {
	req := authedRequest(t, "GET", alice())

	assert.True(t, xperm.Or(xperm.IsAdmin{}, xperm.HasScope("notes:write")).HasPermission(req))
	assert.False(t, xperm.Or(xperm.IsAdmin{}, xperm.HasScope("notes:admin")).HasPermission(req))
	assert.False(t, xperm.Or().HasPermission(req), "空 Or 恒为拒绝")
}

func TestOr_ShortCircuits(t *testing.T) {
	allow := &countingPermission{allow: true}
	never := &countingPermission{allow: true}

	assert.True(t, xperm.Or(allow, never).HasPermission(authedRequest(t, "GET", alice())))
	assert.Equal(t, 1, allow.calls)
	assert.Equal(t, 0, never.calls, "第一个通过后不再求值")
}

func TestNot(t *testing.T) {
	anon := anonRequest(t, "GET", true)

	assert.False(t, xperm.Not(xperm.AllowAny{}).HasPermission(anon))
	assert.True(t, xperm.Not(xperm.IsAuthenticated{}).HasPermission(anon))
}

func TestCombinators_Nested(t *testing.T) {
	// 管理员，或持有写范围的认证用户
	perm := xperm.Or(
		xperm.IsAdmin{},
		xperm.And(xperm.IsAuthenticated{}, xperm.HasScope("notes:write")),
	)

	assert.True(t, perm.HasPermission(authedRequest(t, "POST", admin())))
	assert.True(t, perm.HasPermission(authedRequest(t, "POST", alice())))
	assert.False(t, perm.HasPermission(anonRequest(t, "POST", true)))
}

// =============================================================================
// Check / CheckObject / DenialFor
// =============================================================================

func TestCheck_AllPass(t *testing.T) {
	req := authedRequest(t, "GET", alice())
	err := xperm.Check(req, []xperm.Permission{xperm.AllowAny{}, xperm.IsAuthenticated{}})
	assert.NoError(t, err)
}

func TestCheck_NilPermissionSkipped(t *testing.T) {
	req := authedRequest(t, "GET", alice())
	err := xperm.Check(req, []xperm.Permission{nil, xperm.AllowAny{}})
	assert.NoError(t, err)
}

func TestCheck_AnonymousWithAuthenticators_Returns401(t *testing.T) {
	req := anonRequest(t, "POST", true)

	err := xperm.Check(req, []xperm.Permission{xperm.IsAuthenticated{}})
	require.ErrorIs(t, err, xerror.ErrNotAuthenticated)
}

func TestCheck_AnonymousWithoutAuthenticators_Returns403(t *testing.T) {
	// 视图未配置认证方式时补发凭据无济于事，直接 403
	req := anonRequest(t, "POST", false)

	err := xperm.Check(req, []xperm.Permission{xperm.IsAuthenticated{}})
	require.ErrorIs(t, err, xerror.ErrPermissionDenied)
}

func TestCheck_AuthenticatedDenied_Returns403WithMessage(t *testing.T) {
	req := authedRequest(t, "POST", alice())

	err := xperm.Check(req, []xperm.Permission{xperm.IsAdmin{}})
	require.ErrorIs(t, err, xerror.ErrPermissionDenied)

	var apiErr *xerror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Administrator access required.", apiErr.Detail)
}

func TestCheck_CombinatorMessagePropagates(t *testing.T) {
	req := authedRequest(t, "POST", alice())

	err := xperm.Check(req, []xperm.Permission{
		xperm.And(xperm.IsAuthenticated{}, xperm.IsAdmin{}),
	})
	require.ErrorIs(t, err, xerror.ErrPermissionDenied)

	var apiErr *xerror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Administrator access required.", apiErr.Detail,
		"And 的文案来自第一个拒绝的操作数")
}

type testNote struct {
	Owner string
}

// ownerOnly 请求级恒通过，对象级要求主体为所有者
type ownerOnly struct{}

func (ownerOnly) HasPermission(*xrequest.Request) bool { return true }

func (ownerOnly) HasObjectPermission(r *xrequest.Request, obj any) bool {
	note, ok := obj.(testNote)
	if !ok {
		return false
	}
	principal, err := r.Principal()
	if err != nil {
		return false
	}
	return principal.ID == note.Owner
}

func (ownerOnly) Message() string { return "You do not own this note." }

func TestCheckObject(t *testing.T) {
	perms := []xperm.Permission{xperm.IsAuthenticated{}, ownerOnly{}}

	t.Run("owner_allowed", func(t *testing.T) {
		req := authedRequest(t, "DELETE", alice())
		assert.NoError(t, xperm.CheckObject(req, perms, testNote{Owner: "u1"}))
	})

	t.Run("non_owner_denied_with_message", func(t *testing.T) {
		req := authedRequest(t, "DELETE", alice())
		err := xperm.CheckObject(req, perms, testNote{Owner: "u2"})
		require.ErrorIs(t, err, xerror.ErrPermissionDenied)

		var apiErr *xerror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "You do not own this note.", apiErr.Detail)
	})

	t.Run("request_level_permissions_skipped", func(t *testing.T) {
		// IsAuthenticated 未实现 ObjectPermission，对象检查时跳过
		req := authedRequest(t, "DELETE", alice())
		err := xperm.CheckObject(req, []xperm.Permission{xperm.IsAuthenticated{}}, testNote{})
		assert.NoError(t, err)
	})
}

func TestDenialFor(t *testing.T) {
	t.Run("anonymous_with_auth_gets_401", func(t *testing.T) {
		err := xperm.DenialFor(anonRequest(t, "GET", true), true, "nope")
		assert.ErrorIs(t, err, xerror.ErrNotAuthenticated)
	})

	t.Run("anonymous_without_auth_gets_403", func(t *testing.T) {
		err := xperm.DenialFor(anonRequest(t, "GET", false), false, "nope")
		require.ErrorIs(t, err, xerror.ErrPermissionDenied)

		var apiErr *xerror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "nope", apiErr.Detail)
	})

	t.Run("authenticated_gets_403_default_detail", func(t *testing.T) {
		err := xperm.DenialFor(authedRequest(t, "GET", alice()), true, "")
		require.ErrorIs(t, err, xerror.ErrPermissionDenied)

		var apiErr *xerror.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "You do not have permission to perform this action.", apiErr.Detail)
	})
}
