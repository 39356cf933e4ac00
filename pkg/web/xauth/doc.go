// Package xauth 提供请求认证器，均实现 xrequest.Authenticator。
//
// 三种认证方式：
//   - BasicAuthenticator: Authorization: Basic，凭据校验委托给
//     CredentialVerifier 接口（内置 MemoryCredentialStore，常数时间比较）
//   - TokenAuthenticator: Authorization: <keyword> <key>，令牌查找委托给
//     TokenStore 接口（内置 MemoryTokenStore 与 RedisTokenStore）
//   - JWTAuthenticator: HMAC 签名的 JWT，声明直接映射为 Principal，
//     无需外部存储
//
// 所有认证器遵循三态约定：头缺失或关键字不匹配时跳过（nil, nil, nil），
// 头格式错误或凭据无效时返回 401 的 APIError，基础设施故障（如 Redis
// 不可达）原样上抛由错误阶段归一为 500。
//
// 认证失败的 401 响应应携带 WWW-Authenticate 质询头，
// 值由 AuthenticateHeader 提供，视图层负责写入。
package xauth
