package xrender

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// Renderer 把响应数据序列化为某种媒体类型。
// 与 xrequest.Renderer 为同一类型：接口由使用方包声明，本包提供实现。
type Renderer = xrequest.Renderer

// FormatHinter 是渲染器的可选扩展：声明 format 查询参数使用的短名
// （如 "json"、"txt"）。未实现该接口的渲染器不参与 format 过滤。
type FormatHinter interface {
	Format() string
}

// 编译时接口检查
var (
	_ Renderer     = (*JSONRenderer)(nil)
	_ FormatHinter = (*JSONRenderer)(nil)
	_ Renderer     = (*PlainTextRenderer)(nil)
	_ FormatHinter = (*PlainTextRenderer)(nil)
)

// =============================================================================
// JSONRenderer
// =============================================================================

// JSONRenderer 渲染 application/json。
type JSONRenderer struct {
	indent string
}

// JSONOption 定义 JSONRenderer 的配置选项。
type JSONOption func(*JSONRenderer)

// WithIndent 设置缩进空格数开启多行输出；n <= 0 保持紧凑输出。
func WithIndent(n int) JSONOption {
	return func(r *JSONRenderer) {
		if n > 0 {
			r.indent = strings.Repeat(" ", n)
		}
	}
}

// NewJSONRenderer 创建 JSON 渲染器。
func NewJSONRenderer(opts ...JSONOption) *JSONRenderer {
	r := &JSONRenderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MediaType 实现 Renderer 接口。
func (*JSONRenderer) MediaType() string { return "application/json" }

// Charset 实现 Renderer 接口。
//
// JSON 响应不声明 charset：编码由规范固定为 UTF-8，
// Content-Type 保持纯净的 application/json。
func (*JSONRenderer) Charset() string { return "" }

// Format 实现 FormatHinter 接口。
func (*JSONRenderer) Format() string { return "json" }

// Render 实现 Renderer 接口。data 为 nil 时不产生任何输出。
func (r *JSONRenderer) Render(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	var (
		buf []byte
		err error
	)
	if r.indent != "" {
		buf, err = json.MarshalIndent(data, "", r.indent)
	} else {
		buf, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("xrender: marshal json: %w", err)
	}

	_, err = w.Write(buf)
	return err
}

// =============================================================================
// PlainTextRenderer
// =============================================================================

// PlainTextRenderer 渲染 text/plain; charset=utf-8。
type PlainTextRenderer struct{}

// NewPlainTextRenderer 创建纯文本渲染器。
func NewPlainTextRenderer() *PlainTextRenderer {
	return &PlainTextRenderer{}
}

// MediaType 实现 Renderer 接口。
func (*PlainTextRenderer) MediaType() string { return "text/plain" }

// Charset 实现 Renderer 接口。
func (*PlainTextRenderer) Charset() string { return "utf-8" }

// Format 实现 FormatHinter 接口。
func (*PlainTextRenderer) Format() string { return "txt" }

// Render 实现 Renderer 接口。
// 字符串与字节切片直接写出，其余类型走 fmt 的 %v 格式化
// （覆盖 Stringer 与 error）。
func (*PlainTextRenderer) Render(w io.Writer, data any) error {
	var err error
	switch v := data.(type) {
	case nil:
		return nil
	case string:
		_, err = io.WriteString(w, v)
	case []byte:
		_, err = w.Write(v)
	default:
		_, err = fmt.Fprintf(w, "%v", v)
	}
	return err
}
