package xauth

import (
	"fmt"
	"strings"

	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// DefaultRealm 是 WWW-Authenticate 质询的默认 realm。
const DefaultRealm = "api"

// splitCredential 从 Authorization 头中提取 `<keyword> <credential>`。
//
// 返回值三态与 Authenticator 约定一致：头缺失或关键字不匹配时
// ok 为 false 且无错误（跳过）；关键字匹配但格式错误时返回 401。
// label 与 noun 用于错误文案（如 "basic"/"Credentials"、"token"/"Token"）。
func splitCredential(r *xrequest.Request, keyword, label, noun string) (string, bool, error) {
	if r == nil {
		return "", false, nil
	}

	header := r.Header().Get("Authorization")
	if header == "" {
		return "", false, nil
	}

	fields := strings.Fields(header)
	if len(fields) == 0 || !strings.EqualFold(fields[0], keyword) {
		return "", false, nil
	}
	if len(fields) == 1 {
		return "", false, xerror.NewAuthenticationFailed().
			WithDetail(fmt.Sprintf("Invalid %s header. No credentials provided.", label))
	}
	if len(fields) > 2 {
		return "", false, xerror.NewAuthenticationFailed().
			WithDetail(fmt.Sprintf("Invalid %s header. %s string should not contain spaces.", label, noun))
	}
	return fields[1], true, nil
}

func challenge(keyword, realm string) string {
	return fmt.Sprintf("%s realm=%q", keyword, realm)
}
