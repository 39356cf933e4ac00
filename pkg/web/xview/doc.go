// Package xview 提供 API 视图的分发管线。
//
// View 是标准的 http.Handler，按方法注册业务 handler，并在调用前后
// 完成一套固定的处理阶段：
//
//	内容协商 → 版本确定 → 认证 → 权限 → 限流 → handler → 错误翻译 → 响应落盘
//
// 各阶段的策略组件（渲染器、解析器、认证器、权限、限流、协商器）都可以
// 按视图覆盖，未指定时取 Defaults 的进程级默认值：
//
//	view := xview.New(
//	    xview.WithName("note-list"),
//	    xview.WithGet(listNotes),
//	    xview.WithPost(createNote),
//	    xview.WithPermissions(xperm.IsAuthenticated{}),
//	)
//	mux.Handle("/api/notes", view)
//
// handler 返回 *xrender.Response 或 error；error 经 xerror.FromError 翻译
// 后与正常响应走同一条渲染路径，错误体同样参与内容协商。
//
// 每次分发产生一条结构化访问日志和一个可选的观测跨度；请求 ID 缺失时
// 自动补齐并回写 X-Request-ID 响应头。
package xview
