package xauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// TokenStore 按令牌键查找主体。
//
// 令牌不存在返回（包装了）ErrTokenNotFound；其他错误视为基础设施
// 故障，认证器会原样上抛而非降级为 401。
type TokenStore interface {
	Lookup(ctx context.Context, key string) (*xctx.Principal, error)
}

// DefaultTokenKeyword 是 TokenAuthenticator 默认的认证方案关键字。
const DefaultTokenKeyword = "Token"

var _ xrequest.Authenticator = (*TokenAuthenticator)(nil)

// TokenAuthenticator 处理 `Authorization: <keyword> <key>` 形式的
// 不透明令牌认证，令牌到主体的映射由 TokenStore 提供。
type TokenAuthenticator struct {
	store   TokenStore
	keyword string
	realm   string
}

// TokenOption 定义 TokenAuthenticator 的配置选项。
type TokenOption func(*TokenAuthenticator)

// WithKeyword 设置认证方案关键字（如 "Bearer"），默认 "Token"。
func WithKeyword(keyword string) TokenOption {
	return func(a *TokenAuthenticator) {
		if keyword != "" {
			a.keyword = keyword
		}
	}
}

// WithTokenRealm 设置 WWW-Authenticate 质询的 realm，默认 "api"。
func WithTokenRealm(realm string) TokenOption {
	return func(a *TokenAuthenticator) {
		if realm != "" {
			a.realm = realm
		}
	}
}

// NewTokenAuthenticator 创建令牌认证器。store 不可为 nil。
func NewTokenAuthenticator(store TokenStore, opts ...TokenOption) (*TokenAuthenticator, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	a := &TokenAuthenticator{
		store:   store,
		keyword: DefaultTokenKeyword,
		realm:   DefaultRealm,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate 实现 xrequest.Authenticator 接口。
//
// 头缺失或关键字不匹配时跳过；存储中不存在的令牌返回
// "Invalid token."；存储故障原样上抛。
func (a *TokenAuthenticator) Authenticate(r *xrequest.Request) (*xctx.Principal, any, error) {
	key, ok, err := splitCredential(r, a.keyword, "token", "Token")
	if err != nil || !ok {
		return nil, nil, err
	}

	principal, err := a.store.Lookup(r.Context(), key)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, nil, xerror.NewAuthenticationFailed().
				WithDetail("Invalid token.").
				Wrap(err)
		}
		return nil, nil, fmt.Errorf("xauth: token lookup: %w", err)
	}
	return principal, key, nil
}

// AuthenticateHeader 实现 xrequest.Authenticator 接口。
func (a *TokenAuthenticator) AuthenticateHeader(*xrequest.Request) string {
	return challenge(a.keyword, a.realm)
}
