package xthrottle

import (
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// KeyFunc 从请求中提取限流身份。
// 返回 false 表示该请求不受此策略约束（如匿名请求跳过按用户限流）。
type KeyFunc func(r *xrequest.Request) (string, bool)

// IdentKey 返回请求的通用身份：已认证时为主体 ID，否则为客户端 IP。
// 两类身份加前缀区分，避免主体 ID 与 IP 字面量同值时互相占用配额。
func IdentKey(r *xrequest.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	if principal, err := r.Principal(); err == nil && !principal.IsAnonymous() {
		return "user:" + principal.ID, true
	}
	return "ip:" + r.ClientIP(), true
}

// PrincipalKey 返回已认证主体的 ID，匿名请求跳过。
func PrincipalKey(r *xrequest.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	principal, err := r.Principal()
	if err != nil || principal.IsAnonymous() {
		return "", false
	}
	return principal.ID, true
}

// ClientIPKey 返回客户端 IP。
func ClientIPKey(r *xrequest.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.ClientIP(), true
}

// cacheKey 构建后端存储键。
// 身份经 xxhash 压缩成定长十六进制，键长可控且不泄露原始身份。
func cacheKey(scope, ident string) string {
	return "throttle:" + scope + ":" + strconv.FormatUint(xxhash.Sum64String(ident), 16)
}
