package xauth

import "errors"

var (
	// ErrNilVerifier 表示构造 BasicAuthenticator 时凭据校验器为 nil。
	ErrNilVerifier = errors.New("xauth: nil credential verifier")

	// ErrNilStore 表示构造 TokenAuthenticator 时令牌存储为 nil。
	ErrNilStore = errors.New("xauth: nil token store")

	// ErrNilClient 表示构造 RedisTokenStore 时 Redis 客户端为 nil。
	ErrNilClient = errors.New("xauth: nil redis client")

	// ErrEmptySecret 表示构造 JWTAuthenticator 时签名密钥为空。
	ErrEmptySecret = errors.New("xauth: empty signing secret")

	// ErrTokenNotFound 表示令牌在存储中不存在。
	// TokenStore 实现用它区分"令牌无效"与基础设施故障。
	ErrTokenNotFound = errors.New("xauth: token not found")

	// ErrInvalidCredentials 表示用户名或密码不匹配。
	// CredentialVerifier 实现用它表达凭据校验失败。
	ErrInvalidCredentials = errors.New("xauth: invalid credentials")
)
