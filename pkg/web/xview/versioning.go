package xview

import (
	"fmt"
	"slices"

	"github.com/omeyang/apikit/internal/mediatype"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// Versioning 决定请求的 API 版本。
// DetermineVersion 在内容协商之后、认证之前执行，返回的版本
// 写入请求供 handler 读取；版本非法时返回相应的 HTTP 错误。
type Versioning interface {
	DetermineVersion(r *xrequest.Request) (string, error)
}

// 编译时接口检查
var (
	_ Versioning = AcceptHeaderVersioning{}
	_ Versioning = QueryParameterVersioning{}
	_ Versioning = HeaderVersioning{}
)

// AcceptHeaderVersioning 从协商出的媒体类型的 version 参数取版本，
// 如 "Accept: application/json; version=2"。
type AcceptHeaderVersioning struct {
	// Allowed 允许的版本列表；空表示接受任意版本
	Allowed []string

	// Default 请求未携带版本时使用的默认值
	Default string
}

// DetermineVersion 实现 Versioning 接口。
func (v AcceptHeaderVersioning) DetermineVersion(r *xrequest.Request) (string, error) {
	version := v.Default
	if accepted := r.AcceptedMediaType(); accepted != "" {
		mt, err := mediatype.Parse(accepted)
		if err == nil {
			if param, ok := mt.Params["version"]; ok {
				version = param
			}
		}
	}
	if !versionAllowed(version, v.Allowed) {
		return "", xerror.NewNotAcceptable().WithDetail(`Invalid version in "Accept" header.`)
	}
	return version, nil
}

// DefaultVersionParam 是查询参数版本方案的默认参数名。
const DefaultVersionParam = "version"

// QueryParameterVersioning 从查询参数取版本，如 "?version=2"。
type QueryParameterVersioning struct {
	// Param 查询参数名，空时使用 DefaultVersionParam
	Param string

	// Allowed 允许的版本列表；空表示接受任意版本
	Allowed []string

	// Default 请求未携带版本时使用的默认值
	Default string
}

// DetermineVersion 实现 Versioning 接口。
func (v QueryParameterVersioning) DetermineVersion(r *xrequest.Request) (string, error) {
	param := v.Param
	if param == "" {
		param = DefaultVersionParam
	}

	version := r.QueryParams().Get(param)
	if version == "" {
		version = v.Default
	}
	if !versionAllowed(version, v.Allowed) {
		return "", xerror.NewNotFound().WithDetail("Invalid version in query parameter.")
	}
	return version, nil
}

// DefaultVersionHeader 是请求头版本方案的默认头名。
const DefaultVersionHeader = "X-API-Version"

// HeaderVersioning 从独立请求头取版本，如 "X-API-Version: 2"。
type HeaderVersioning struct {
	// Header 请求头名，空时使用 DefaultVersionHeader
	Header string

	// Allowed 允许的版本列表；空表示接受任意版本
	Allowed []string

	// Default 请求未携带版本时使用的默认值
	Default string
}

// DetermineVersion 实现 Versioning 接口。
func (v HeaderVersioning) DetermineVersion(r *xrequest.Request) (string, error) {
	header := v.Header
	if header == "" {
		header = DefaultVersionHeader
	}

	version := r.Header().Get(header)
	if version == "" {
		version = v.Default
	}
	if !versionAllowed(version, v.Allowed) {
		return "", xerror.NewNotAcceptable().WithDetail(fmt.Sprintf("Invalid version in %q header.", header))
	}
	return version, nil
}

// versionAllowed 报告版本是否在允许列表内；空列表接受任意版本。
func versionAllowed(version string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	return slices.Contains(allowed, version)
}
