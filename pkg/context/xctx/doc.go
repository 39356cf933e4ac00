// Package xctx 管理请求作用域的 context 值：请求 ID、认证主体与客户端 IP。
//
// 这些值由请求处理管线（pkg/web/xview）在派发时注入，
// 业务代码与日志在下游读取。三类值各有一组操作：
//
//   - WithXxx(ctx, v) 注入值，拒绝非法输入（nil context、空值）
//   - Xxx(ctx) 宽松读取，缺失时返回零值
//   - RequireXxx(ctx) 强制读取，缺失时返回错误
//
// 日志集成见 AppendRequestAttrs：把 context 中的请求信息追加为 slog 属性，
// 供 xlog 的 EnrichHandler 在每条日志上自动补充。
package xctx
