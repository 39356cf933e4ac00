// Package xrender 提供响应渲染与内容协商。
//
// 渲染器实现 Renderer 接口（与 xrequest.Renderer 为同一类型）：
//   - JSONRenderer: application/json，默认紧凑输出，WithIndent 开启缩进
//   - PlainTextRenderer: text/plain; charset=utf-8，字符串直写，其余 %v
//
// DefaultNegotiator 按 Accept 头的特异度分组协商渲染器：
// format 查询参数（?format=json）先按短名过滤候选，随后在每个
// 特异度层级内按渲染器配置顺序匹配。全部失败返回 406。
//
// Response 是视图层的统一响应载体，Write 先渲染到缓冲区再发送，
// 保证 Content-Length 精确；204/304 与 HEAD 不发送响应体。
package xrender
