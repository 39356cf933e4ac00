// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// # 概述
//
// 一个 Group 并发运行多个服务函数；任一服务返回错误或收到终止信号时，
// 共享 context 被取消，其余服务应监听 ctx.Done() 并优雅退出。
// Wait 返回第一个有语义的退出原因。
//
// # 快速开始
//
// 最常用的形态是 Run：信号监听 + 服务列表，阻塞直到退出：
//
//	server := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
//	err := xrun.Run(ctx,
//	    xrun.HTTPServer(server, cfg.Server.ShutdownTimeout),
//	    func(ctx context.Context) error {
//	        return watchConfig(ctx)
//	    },
//	)
//	if xrun.IsSignal(err) {
//	    // 信号触发的正常退出
//	}
//
// 需要更细控制时直接使用 Group：
//
//	g, ctx := xrun.NewGroup(ctx, xrun.WithName("apikitd"))
//	g.GoWithName("http", xrun.HTTPServer(server, 10*time.Second))
//	g.GoWithName("sync", runSync)
//	err := g.Wait()
//
// # 退出原因
//
// Wait 的返回值遵循：
//   - 服务返回的非 context.Canceled 错误原样返回；
//   - context.Canceled 若源自编组关闭（Cancel 或父 context 取消）则被过滤，
//     此时返回显式的取消原因（如 SignalError），无显式原因返回 nil；
//   - 服务内部自行产生的 context.Canceled（causeCtx 未取消）不过滤。
//
// # 信号处理
//
// Run/RunWithOptions 自动监听 DefaultSignals()（SIGHUP/SIGINT/SIGTERM/SIGQUIT），
// 收到信号后以 &SignalError{Signal: sig} 为原因取消编组。
// K8s 终止 Pod 前发送 SIGTERM，服务的关闭逻辑应在
// terminationGracePeriodSeconds 内完成。
// WithSignals 自定义信号列表，WithoutSignalHandler 完全禁用。
// 直接使用 NewGroup 时不含信号处理，需自行管理。
package xrun
