package xauth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"
	"sync"

	"github.com/omeyang/apikit/pkg/context/xctx"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// CredentialVerifier 校验用户名密码并返回对应主体。
//
// 凭据不匹配返回（包装了）ErrInvalidCredentials；其他错误视为
// 基础设施故障原样上抛。实现必须对密码做常数时间比较。
type CredentialVerifier interface {
	Verify(ctx context.Context, username, password string) (*xctx.Principal, error)
}

var _ xrequest.Authenticator = (*BasicAuthenticator)(nil)

// BasicAuthenticator 处理 Authorization: Basic 认证。
type BasicAuthenticator struct {
	verifier CredentialVerifier
	realm    string
}

// BasicOption 定义 BasicAuthenticator 的配置选项。
type BasicOption func(*BasicAuthenticator)

// WithBasicRealm 设置 WWW-Authenticate 质询的 realm，默认 "api"。
func WithBasicRealm(realm string) BasicOption {
	return func(a *BasicAuthenticator) {
		if realm != "" {
			a.realm = realm
		}
	}
}

// NewBasicAuthenticator 创建 Basic 认证器。verifier 不可为 nil。
func NewBasicAuthenticator(verifier CredentialVerifier, opts ...BasicOption) (*BasicAuthenticator, error) {
	if verifier == nil {
		return nil, ErrNilVerifier
	}
	a := &BasicAuthenticator{
		verifier: verifier,
		realm:    DefaultRealm,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Authenticate 实现 xrequest.Authenticator 接口。
//
// 头缺失或非 Basic 时跳过；base64 或结构错误返回 401；
// 凭据不匹配统一返回 "Invalid username/password."，
// 不区分用户不存在与密码错误。
func (a *BasicAuthenticator) Authenticate(r *xrequest.Request) (*xctx.Principal, any, error) {
	encoded, ok, err := splitCredential(r, "Basic", "basic", "Credentials")
	if err != nil || !ok {
		return nil, nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, xerror.NewAuthenticationFailed().
			WithDetail("Invalid basic header. Credentials not correctly base64 encoded.").
			Wrap(err)
	}

	username, password, _ := strings.Cut(string(decoded), ":")

	principal, err := a.verifier.Verify(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, nil, xerror.NewAuthenticationFailed().
				WithDetail("Invalid username/password.").
				Wrap(err)
		}
		return nil, nil, err
	}
	return principal, nil, nil
}

// AuthenticateHeader 实现 xrequest.Authenticator 接口。
func (a *BasicAuthenticator) AuthenticateHeader(*xrequest.Request) string {
	return challenge("Basic", a.realm)
}

// =============================================================================
// MemoryCredentialStore
// =============================================================================

var _ CredentialVerifier = (*MemoryCredentialStore)(nil)

type memoryCredential struct {
	password  string
	principal *xctx.Principal
}

// MemoryCredentialStore 是内存凭据表，适用于测试与小型部署。
// 并发安全；密码比较为常数时间。
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	users map[string]memoryCredential
}

// NewMemoryCredentialStore 创建空的内存凭据表。
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		users: make(map[string]memoryCredential),
	}
}

// Add 登记或覆盖一个用户的凭据与主体。
func (s *MemoryCredentialStore) Add(username, password string, principal *xctx.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = memoryCredential{
		password:  password,
		principal: principal.Clone(),
	}
}

// Remove 删除一个用户，不存在时为 no-op。
func (s *MemoryCredentialStore) Remove(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}

// Verify 实现 CredentialVerifier 接口。
func (s *MemoryCredentialStore) Verify(_ context.Context, username, password string) (*xctx.Principal, error) {
	s.mu.RLock()
	cred, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		// 用户不存在时仍执行一次比较，避免存在性探测的时间差
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(cred.password)) != 1 {
		return nil, ErrInvalidCredentials
	}
	return cred.principal.Clone(), nil
}
