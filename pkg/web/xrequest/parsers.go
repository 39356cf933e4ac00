package xrequest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"

	"github.com/omeyang/apikit/pkg/web/xerror"
)

// 编译时接口检查
var (
	_ Parser = (*JSONParser)(nil)
	_ Parser = (*FormParser)(nil)
	_ Parser = (*MultipartParser)(nil)
)

// =============================================================================
// JSONParser
// =============================================================================

// JSONParser 解析 application/json 请求体。
type JSONParser struct{}

// NewJSONParser 创建 JSON 解析器。
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

// MediaTypes 实现 Parser 接口。
func (*JSONParser) MediaTypes() []string {
	return []string{"application/json"}
}

// Parse 实现 Parser 接口。
//
// dest 为 nil 时仅校验 JSON 合法性。解码后若存在尾随数据视为解析失败
// （一个请求体承载且仅承载一个 JSON 文档）。
func (*JSONParser) Parse(_ *Request, body io.Reader, dest any) error {
	if dest == nil {
		var sink any
		dest = &sink
	}

	dec := json.NewDecoder(body)
	if err := dec.Decode(dest); err != nil {
		return xerror.NewParseError().
			WithDetail(fmt.Sprintf("JSON parse error - %s", err)).
			Wrap(err)
	}
	if dec.More() {
		return xerror.NewParseError().
			WithDetail("JSON parse error - trailing data after document.")
	}
	return nil
}

// =============================================================================
// FormParser
// =============================================================================

// FormParser 解析 application/x-www-form-urlencoded 请求体。
type FormParser struct{}

// NewFormParser 创建表单解析器。
func NewFormParser() *FormParser {
	return &FormParser{}
}

// MediaTypes 实现 Parser 接口。
func (*FormParser) MediaTypes() []string {
	return []string{"application/x-www-form-urlencoded"}
}

// Parse 实现 Parser 接口。
//
// 解析产物挂到 Request.PostForm；dest 只接受 *url.Values 或 nil，
// 其他类型属于调用方编程错误。
func (*FormParser) Parse(r *Request, body io.Reader, dest any) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return xerror.NewParseError().Wrap(err)
	}

	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return xerror.NewParseError().
			WithDetail(fmt.Sprintf("Form parse error - %s", err)).
			Wrap(err)
	}

	if r != nil {
		r.form = values
	}

	switch d := dest.(type) {
	case nil:
		return nil
	case *url.Values:
		*d = values
		return nil
	default:
		return fmt.Errorf("xrequest: form parser requires *url.Values dest, got %T", dest)
	}
}

// =============================================================================
// MultipartParser
// =============================================================================

// DefaultMultipartMemory multipart 解析的内存阈值（10 MiB），超出部分落盘。
const DefaultMultipartMemory = 10 << 20

// MultipartParser 解析 multipart/form-data 请求体。
type MultipartParser struct {
	maxMemory int64
}

// MultipartOption 定义 MultipartParser 的配置选项。
type MultipartOption func(*MultipartParser)

// WithMaxMemory 设置内存中保留的最大字节数，超出部分写入临时文件。
func WithMaxMemory(n int64) MultipartOption {
	return func(p *MultipartParser) {
		if n > 0 {
			p.maxMemory = n
		}
	}
}

// NewMultipartParser 创建 multipart 解析器。
func NewMultipartParser(opts ...MultipartOption) *MultipartParser {
	p := &MultipartParser{
		maxMemory: DefaultMultipartMemory,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MediaTypes 实现 Parser 接口。
func (*MultipartParser) MediaTypes() []string {
	return []string{"multipart/form-data"}
}

// Parse 实现 Parser 接口。
//
// 字段值挂到 Request.PostForm，文件部分挂到 Request.MultipartForm；
// dest 只接受 **multipart.Form 或 nil。
// 落盘的临时文件由 Request.Cleanup 释放（视图层在响应完成后调用）。
func (p *MultipartParser) Parse(r *Request, body io.Reader, dest any) error {
	if r == nil {
		return ErrNilRequest
	}

	boundary, ok := r.ContentType().Params["boundary"]
	if !ok || boundary == "" {
		return xerror.NewParseError().
			WithDetail("Multipart form parse error - boundary missing.")
	}

	form, err := multipart.NewReader(body, boundary).ReadForm(p.maxMemory)
	if err != nil {
		return xerror.NewParseError().
			WithDetail(fmt.Sprintf("Multipart form parse error - %s", err)).
			Wrap(err)
	}

	r.multipartForm = form
	r.form = url.Values(form.Value)

	switch d := dest.(type) {
	case nil:
		return nil
	case **multipart.Form:
		*d = form
		return nil
	default:
		return fmt.Errorf("xrequest: multipart parser requires **multipart.Form dest, got %T", dest)
	}
}

// Cleanup 释放 multipart 解析产生的临时文件。
// 幂等；未进行 multipart 解析时为 no-op。
func (r *Request) Cleanup() error {
	if r.multipartForm == nil {
		return nil
	}
	form := r.multipartForm
	r.multipartForm = nil
	return form.RemoveAll()
}
