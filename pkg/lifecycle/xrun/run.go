package xrun

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// DefaultSignals 返回默认监听的系统信号列表。
//
// 包含 SIGHUP、SIGINT、SIGTERM、SIGQUIT。SIGHUP 在终端断开（如 SSH 断连）
// 时也会触发，容器化部署中通常无此问题；如需排除可用 WithSignals 自定义。
//
// 每次调用返回新切片，调用者可安全修改。
func DefaultSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
}

// testSigChanKey 用于在测试中通过 context 注入信号通道，
// 避免测试发送真实系统信号（可能影响进程或被 CI 拦截）。
// 定义在非测试文件中是因为 signalService（生产代码）需要读取它。
type testSigChanKey struct{}

func testSigChan(ctx context.Context) <-chan os.Signal {
	c, ok := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	if !ok {
		return nil
	}
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}

// Run 是最常用的启动模式：监听信号 + 运行服务，阻塞直到退出。
//
// 收到 DefaultSignals 中的信号时共享 context 被取消，所有服务应优雅关闭；
// Run 返回 *SignalError 表示信号退出，可用 IsSignal 判断。
// 对 HTTP 服务器推荐配合 [HTTPServer] 使用。
func Run(ctx context.Context, services ...func(ctx context.Context) error) error {
	return runGroup(ctx, nil, func(g *Group) {
		for _, svc := range services {
			g.Go(svc)
		}
	})
}

// RunWithOptions 与 Run 相同，但支持配置选项。
func RunWithOptions(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	return runGroup(ctx, opts, func(g *Group) {
		for _, svc := range services {
			g.Go(svc)
		}
	})
}

// runGroup 是 Run/RunWithOptions 的共享实现：
// 建组、按需注册信号服务、注册业务服务、等待退出。
func runGroup(ctx context.Context, opts []Option, setup func(g *Group)) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		g.Go(signalService(g))
	}

	setup(g)
	return g.Wait()
}

// signalService 返回监听系统信号的服务函数，
// 收到信号后以 &SignalError{Signal: sig} 为原因取消编组。
func signalService(g *Group) func(ctx context.Context) error {
	signals := g.opts.signals
	// 空列表回落到默认信号：signal.Notify 无参调用会订阅全部信号，
	// 这不是调用方的预期；彻底禁用应使用 WithoutSignalHandler。
	if len(signals) == 0 {
		signals = DefaultSignals()
	}

	return func(ctx context.Context) error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, signals...)
		defer signal.Stop(sigCh)

		testCh := testSigChan(ctx)

		var sig os.Signal
		select {
		case sig = <-testCh:
		case sig = <-sigCh:
		case <-ctx.Done():
			return ctx.Err()
		}

		g.opts.logger.Info("received signal",
			slog.String("group", g.opts.name),
			slog.String("signal", sig.String()),
		)
		g.Cancel(&SignalError{Signal: sig})
		return nil
	}
}
