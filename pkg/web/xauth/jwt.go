package xauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// DefaultJWTKeyword 是 JWT 认证的方案关键字。
const DefaultJWTKeyword = "Bearer"

var _ xrequest.Authenticator = (*JWTAuthenticator)(nil)

// JWTAuthenticator 处理 HMAC 签名的 JWT Bearer 认证。
//
// 主体直接来自令牌声明，无需外部存储：
//
//	sub    -> Principal.ID（缺失视为无效令牌）
//	name   -> Principal.Name
//	scopes -> Principal.Scopes（字符串数组）
//	admin  -> Principal.Admin
type JWTAuthenticator struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	leeway time.Duration
	realm  string
	parser *jwt.Parser
}

// JWTOption 定义 JWTAuthenticator 的配置选项。
type JWTOption func(*JWTAuthenticator)

// WithLeeway 设置校验 exp/nbf/iat 时允许的时钟偏差，默认 0。
func WithLeeway(d time.Duration) JWTOption {
	return func(a *JWTAuthenticator) {
		if d > 0 {
			a.leeway = d
		}
	}
}

// WithSigningMethod 设置 HMAC 签名算法，默认 HS256。
func WithSigningMethod(method *jwt.SigningMethodHMAC) JWTOption {
	return func(a *JWTAuthenticator) {
		if method != nil {
			a.method = method
		}
	}
}

// WithJWTRealm 设置 WWW-Authenticate 质询的 realm，默认 "api"。
func WithJWTRealm(realm string) JWTOption {
	return func(a *JWTAuthenticator) {
		if realm != "" {
			a.realm = realm
		}
	}
}

// NewJWTAuthenticator 创建 JWT 认证器。secret 不可为空。
func NewJWTAuthenticator(secret []byte, opts ...JWTOption) (*JWTAuthenticator, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	a := &JWTAuthenticator{
		secret: append([]byte(nil), secret...),
		method: jwt.SigningMethodHS256,
		realm:  DefaultRealm,
	}
	for _, opt := range opts {
		opt(a)
	}
	// 只接受构造时声明的算法，杜绝 alg 混淆类攻击
	a.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithLeeway(a.leeway),
	)
	return a, nil
}

// Authenticate 实现 xrequest.Authenticator 接口。
//
// 头缺失或非 Bearer 时跳过；过期令牌返回 "Token has expired."，
// 其余解析失败统一 "Invalid token."。cred 为解析后的 *jwt.Token。
func (a *JWTAuthenticator) Authenticate(r *xrequest.Request) (*xctx.Principal, any, error) {
	raw, ok, err := splitCredential(r, DefaultJWTKeyword, "token", "Token")
	if err != nil || !ok {
		return nil, nil, err
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, nil, xerror.NewAuthenticationFailed().
				WithDetail("Token has expired.").
				Wrap(err)
		}
		return nil, nil, xerror.NewAuthenticationFailed().
			WithDetail("Invalid token.").
			Wrap(err)
	}

	principal, perr := principalFromClaims(claims)
	if perr != nil {
		return nil, nil, xerror.NewAuthenticationFailed().
			WithDetail("Invalid token.").
			Wrap(perr)
	}
	return principal, token, nil
}

// AuthenticateHeader 实现 xrequest.Authenticator 接口。
func (a *JWTAuthenticator) AuthenticateHeader(*xrequest.Request) string {
	return challenge(DefaultJWTKeyword, a.realm)
}

var errMissingSubject = errors.New("xauth: jwt claims missing subject")

func principalFromClaims(claims jwt.MapClaims) (*xctx.Principal, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errMissingSubject
	}

	principal := &xctx.Principal{ID: sub}
	if name, ok := claims["name"].(string); ok {
		principal.Name = name
	}
	if admin, ok := claims["admin"].(bool); ok {
		principal.Admin = admin
	}
	if raw, ok := claims["scopes"].([]any); ok {
		scopes := make([]string, 0, len(raw))
		for _, item := range raw {
			if scope, ok := item.(string); ok {
				scopes = append(scopes, scope)
			}
		}
		if len(scopes) > 0 {
			principal.Scopes = scopes
		}
	}
	return principal, nil
}
