package xrun

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServerInterface 定义 HTTP 服务器接口，*http.Server 天然满足。
// 导出以支持自定义实现和测试替身。
// 接口名带 Interface 后缀是因为 HTTPServer 已被同名便捷函数占用。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 将 HTTP 服务器包装为支持优雅关闭的服务函数。
//
// ctx 取消后调用 Shutdown 等待在途请求完成；shutdownTimeout 为 0 或负数
// 表示无限等待。Shutdown 的错误（如超时）会作为服务函数的返回值传播。
//
//	server := &http.Server{Addr: ":8080", Handler: mux}
//	err := xrun.Run(ctx, xrun.HTTPServer(server, 10*time.Second))
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}

		shutdownErrCh := make(chan error, 1)
		// listenDone 通知 shutdown goroutine：ListenAndServe 已返回
		// （外部关闭或启动失败），避免其永久阻塞。
		listenDone := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				shutdownCtx := context.Background()
				if shutdownTimeout > 0 {
					var cancel context.CancelFunc
					shutdownCtx, cancel = context.WithTimeout(shutdownCtx, shutdownTimeout)
					defer cancel()
				}
				shutdownErrCh <- server.Shutdown(shutdownCtx)
			case <-listenDone:
			}
		}()

		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			// 三路 select 区分关闭来源：
			//   1. shutdownErrCh 有值 → ctx 驱动的关闭已完成，返回其结果
			//   2. ctx 已取消 → ctx 驱动的关闭进行中，等待结果
			//   3. default → 外部直接调用了 Shutdown/Close，返回 nil
			select {
			case shutdownErr := <-shutdownErrCh:
				return shutdownErr
			case <-ctx.Done():
				return <-shutdownErrCh
			default:
				close(listenDone)
				return nil
			}
		}

		// 启动失败（如端口占用），通知 goroutine 退出
		close(listenDone)
		return err
	}
}
