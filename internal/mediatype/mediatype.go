package mediatype

import (
	"errors"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

// 解析错误。
var (
	// ErrInvalidMediaType 表示媒体类型字符串无法解析。
	ErrInvalidMediaType = errors.New("mediatype: invalid media type")
)

// 特异度层级，数值越大越具体。
const (
	// PrecedenceWildcard 表示 */*。
	PrecedenceWildcard = 0
	// PrecedenceType 表示 type/*。
	PrecedenceType = 1
	// PrecedenceFull 表示不带参数的完整类型。
	PrecedenceFull = 2
	// PrecedenceFullParams 表示带参数的完整类型。
	PrecedenceFullParams = 3
)

// MediaType 表示一个已解析的媒体类型。
//
// Params 不包含 q 参数；q 值单独解析到 Quality 字段。
// 零值不可用，应通过 Parse 或 New 构造。
type MediaType struct {
	// Type 是主类型，如 "application"，可能为 "*"。
	Type string
	// Subtype 是子类型，如 "json"，可能为 "*"。
	Subtype string
	// Params 是除 q 以外的媒体类型参数，键为小写。
	Params map[string]string
	// Quality 是 q 值，范围 [0, 1]，缺省为 1。
	Quality float64
}

// New 构造一个不带参数的媒体类型。
func New(typ, subtype string) MediaType {
	return MediaType{Type: typ, Subtype: subtype, Quality: 1}
}

// Parse 解析单个媒体类型字符串，如 "application/json; version=2; q=0.8"。
//
// 解析失败返回包装了 ErrInvalidMediaType 的错误。
// q 参数被提取到 Quality 字段（无效 q 按 1 处理并截断到 [0, 1]），
// 其余参数保留在 Params 中。
func Parse(s string) (MediaType, error) {
	name, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaType{}, fmt.Errorf("%w: %q: %w", ErrInvalidMediaType, s, err)
	}

	typ, subtype, ok := strings.Cut(name, "/")
	if !ok || typ == "" || subtype == "" {
		return MediaType{}, fmt.Errorf("%w: %q: missing subtype", ErrInvalidMediaType, s)
	}

	mt := MediaType{Type: typ, Subtype: subtype, Quality: 1}

	if len(params) > 0 {
		if raw, ok := params["q"]; ok {
			if q, err := strconv.ParseFloat(raw, 64); err == nil {
				mt.Quality = clampQuality(q)
			}
			delete(params, "q")
		}
		if len(params) > 0 {
			mt.Params = params
		}
	}
	return mt, nil
}

func clampQuality(q float64) float64 {
	switch {
	case q < 0:
		return 0
	case q > 1:
		return 1
	default:
		return q
	}
}

// Precedence 返回特异度层级（0-3），数值越大越具体。
func (m MediaType) Precedence() int {
	switch {
	case m.Type == "*":
		return PrecedenceWildcard
	case m.Subtype == "*":
		return PrecedenceType
	case len(m.Params) == 0:
		return PrecedenceFull
	default:
		return PrecedenceFullParams
	}
}

// Matches 报告 m 是否与 other 匹配。
//
// 匹配是通配符对称的：任一侧的 "*" 视为匹配。
// m 的全部参数必须在 other 中取相同值；other 多出的参数不影响匹配。
// 因此把更具体的一侧放在 m 上时，参数（如版本号）才参与约束。
func (m MediaType) Matches(other MediaType) bool {
	for key, value := range m.Params {
		if other.Params[key] != value {
			return false
		}
	}
	if m.Subtype != "*" && other.Subtype != "*" && m.Subtype != other.Subtype {
		return false
	}
	if m.Type != "*" && other.Type != "*" && m.Type != other.Type {
		return false
	}
	return true
}

// String 返回规范化的媒体类型字符串，参数按键排序。
// Quality 不参与输出。
func (m MediaType) String() string {
	name := m.Type + "/" + m.Subtype
	if len(m.Params) == 0 {
		return name
	}
	return mime.FormatMediaType(name, m.Params)
}

// =============================================================================
// 常用类型判断
// =============================================================================

// IsJSON 报告 Content-Type 是否为 JSON（application/json 或 +json 后缀）。
func IsJSON(ct string) bool {
	mt, err := Parse(ct)
	if err != nil {
		return false
	}
	return mt.Subtype == "json" || strings.HasSuffix(mt.Subtype, "+json")
}

// IsForm 报告 Content-Type 是否为 URL 编码表单。
func IsForm(ct string) bool {
	mt, err := Parse(ct)
	if err != nil {
		return false
	}
	return mt.Type == "application" && mt.Subtype == "x-www-form-urlencoded"
}

// IsMultipart 报告 Content-Type 是否为 multipart 表单。
func IsMultipart(ct string) bool {
	mt, err := Parse(ct)
	if err != nil {
		return false
	}
	return mt.Type == "multipart"
}
