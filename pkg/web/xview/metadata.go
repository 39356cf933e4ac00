package xview

import "github.com/omeyang/apikit/pkg/web/xrequest"

// Metadata 生成视图的自描述信息，作为默认 OPTIONS 响应的载荷。
type Metadata interface {
	Determine(v *View, r *xrequest.Request) any
}

// SimpleMetadata 返回视图名称、描述与支持的媒体类型。
type SimpleMetadata struct{}

// Determine 实现 Metadata 接口。
func (SimpleMetadata) Determine(v *View, _ *xrequest.Request) any {
	renders := make([]string, 0, len(v.Renderers()))
	for _, renderer := range v.Renderers() {
		renders = append(renders, renderer.MediaType())
	}

	parses := make([]string, 0)
	for _, parser := range v.Parsers() {
		parses = append(parses, parser.MediaTypes()...)
	}

	return map[string]any{
		"name":        v.Name(),
		"description": v.Description(),
		"renders":     renders,
		"parses":      parses,
	}
}

// 编译时接口检查
var _ Metadata = SimpleMetadata{}
