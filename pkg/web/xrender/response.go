package xrender

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/omeyang/apikit/pkg/web/xerror"
)

// Response 是视图层的统一响应载体。
//
// Data 在 Write 时由协商出的渲染器序列化；Header 中的条目会在
// 状态码发出前合并进实际响应头。
type Response struct {
	// Status 是 HTTP 状态码。
	Status int
	// Data 是待渲染的响应数据，nil 表示空响应体。
	Data any
	// Header 是随响应发送的附加头，可能为 nil。
	Header http.Header

	// 协商结果，由视图层在 finalize 阶段写入
	renderer  Renderer
	mediaType string
}

// OK 构造 200 响应。
func OK(data any) *Response {
	return &Response{Status: http.StatusOK, Data: data}
}

// Created 构造 201 响应。
func Created(data any) *Response {
	return &Response{Status: http.StatusCreated, Data: data}
}

// NoContent 构造 204 响应。
func NoContent() *Response {
	return &Response{Status: http.StatusNoContent}
}

// Error 把 APIError 转换为响应：状态码、{"detail", "code"} 响应体与
// 错误携带的头（如 Retry-After、WWW-Authenticate）。
// 错误响应与正常响应走同一渲染器，因此同样参与内容协商。
func Error(apiErr *xerror.APIError) *Response {
	if apiErr == nil {
		apiErr = xerror.NewServerError()
	}
	resp := &Response{
		Status: apiErr.Status,
		Data:   apiErr.Payload(),
	}
	if apiErr.Header != nil {
		resp.Header = apiErr.Header.Clone()
	}
	return resp
}

// SetHeader 设置单个响应头，按需初始化 Header。
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(http.Header, 2)
	}
	r.Header.Set(key, value)
}

// SetNegotiated 记录协商结果。mediaType 为空时退回渲染器自身的媒体类型。
func (r *Response) SetNegotiated(renderer Renderer, mediaType string) {
	r.renderer = renderer
	r.mediaType = mediaType
}

// Renderer 返回协商出的渲染器，未协商时为 nil。
func (r *Response) Renderer() Renderer { return r.renderer }

// MediaType 返回协商出的媒体类型，未协商时为空。
func (r *Response) MediaType() string { return r.mediaType }

// Write 渲染并发送响应。
//
// 渲染先进缓冲区，Content-Length 因此总是精确值；204/304 不发送
// 响应体也不声明 Content-Type；headOnly（HEAD 请求）正常渲染并
// 发送全部头，仅省略响应体。每个请求只应调用一次。
func (r *Response) Write(w http.ResponseWriter, headOnly bool) error {
	header := w.Header()
	for key, values := range r.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}

	suppressBody := r.Status == http.StatusNoContent || r.Status == http.StatusNotModified

	var body []byte
	if !suppressBody && r.Data != nil {
		if r.renderer == nil {
			return ErrNoRenderers
		}
		var buf bytes.Buffer
		if err := r.renderer.Render(&buf, r.Data); err != nil {
			return fmt.Errorf("xrender: render response: %w", err)
		}
		body = buf.Bytes()
	}

	if !suppressBody {
		if r.Data != nil {
			header.Set("Content-Type", r.contentType())
		}
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	w.WriteHeader(r.Status)

	if headOnly || suppressBody || len(body) == 0 {
		return nil
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("xrender: write response: %w", err)
	}
	return nil
}

func (r *Response) contentType() string {
	mt := r.mediaType
	if mt == "" && r.renderer != nil {
		mt = r.renderer.MediaType()
	}
	if r.renderer != nil {
		if charset := r.renderer.Charset(); charset != "" && !strings.Contains(mt, "charset=") {
			return mt + "; charset=" + charset
		}
	}
	return mt
}

// PatchVary 把字段合并进 Vary 头：保留既有条目与顺序，大小写不敏感
// 去重；任一侧出现 "*" 时结果折叠为 "*"。
func PatchVary(h http.Header, fields ...string) {
	if len(fields) == 0 {
		return
	}

	var merged []string
	if current := h.Get("Vary"); current != "" {
		for _, field := range strings.Split(current, ",") {
			if field = strings.TrimSpace(field); field != "" {
				merged = append(merged, field)
			}
		}
	}

	seen := make(map[string]bool, len(merged)+len(fields))
	for _, field := range merged {
		seen[strings.ToLower(field)] = true
	}
	for _, field := range fields {
		if field == "" || seen[strings.ToLower(field)] {
			continue
		}
		seen[strings.ToLower(field)] = true
		merged = append(merged, field)
	}

	if len(merged) == 0 {
		return
	}
	for _, field := range merged {
		if field == "*" {
			h.Set("Vary", "*")
			return
		}
	}
	h.Set("Vary", strings.Join(merged, ", "))
}
