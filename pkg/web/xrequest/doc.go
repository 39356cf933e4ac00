// Package xrequest 提供 HTTP 请求适配层。
//
// Request 包装 *http.Request，提供：
//   - 受上限保护的一次性请求体读取（BodyBytes，默认上限 10 MiB）
//   - 按 Content-Type 选择解析器的惰性请求体解析（Data）
//   - 惰性认证链（Principal/Auth/SuccessfulAuthenticator）
//   - 可信代理感知的客户端 IP 解析（ClientIP）
//   - 内容协商结果与 API 版本的承载（由视图层写入）
//
// # 接口归属
//
// Authenticator 与 Renderer 接口在本包声明、由 xauth/xrender 实现，
// 避免 xrequest 与上层包之间的循环依赖。
//
// # 惰性求值
//
// 请求体最多读取一次（不超过上限 +1 字节），结果缓存；
// Data 基于缓存字节解析，可对不同目标重复调用。
// 认证链最多执行一次，凭据错误被记住并在每次访问时重放。
//
// # 使用示例
//
//	req, err := xrequest.New(r,
//		xrequest.WithParsers(xrequest.NewJSONParser()),
//		xrequest.WithAuthenticators(tokenAuth),
//		xrequest.WithMaxBodyBytes(1<<20),
//	)
//	if err != nil {
//		return err
//	}
//	var payload createNoteInput
//	if err := req.Data(&payload); err != nil {
//		return err // 已是 *xerror.APIError（400/413/415）
//	}
package xrequest
