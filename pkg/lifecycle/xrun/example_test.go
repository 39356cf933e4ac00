package xrun_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/omeyang/apikit/pkg/lifecycle/xrun"
)

func ExampleGroup() {
	g, _ := xrun.NewGroup(context.Background())

	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// 主动关闭并携带退出原因
	g.Cancel(errors.New("maintenance window"))

	fmt.Println(g.Wait())
	// Output:
	// maintenance window
}

func ExampleRun() {
	server := &http.Server{
		Addr:              ":8080",
		Handler:           http.NewServeMux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 阻塞运行：HTTP 服务 + 自定义后台服务，SIGTERM 等信号触发优雅退出
	err := xrun.Run(context.Background(),
		xrun.HTTPServer(server, 10*time.Second),
		xrun.Ticker(time.Minute, false, func(ctx context.Context) error {
			// 周期性后台任务
			return nil
		}),
	)
	if err != nil && !xrun.IsSignal(err) {
		log.Fatal(err)
	}
}
