// apikitd 是基于 apikit 组件的参考 API 服务。
//
// 它演示各组件的完整接线方式: xconf 配置加载与热更新、xlog 结构化日志与
// 轮转、Redis 连接与启动重试、xcache 缓存存储、xauth 令牌认证、
// xthrottle 限流、xview 视图管线、xrun 进程生命周期。
//
// 用法:
//
//	apikitd [全局选项] [命令]
//
// 全局选项:
//
//	-c, --config   配置文件路径 (yaml/json)，缺省使用内置默认配置
//	-a, --addr     监听地址，覆盖配置中的 server.addr
//
// 命令:
//
//	serve          启动 HTTP 服务（默认命令）
//	token add      签发访问令牌并打印
//	token revoke   吊销访问令牌
//
// 路由:
//
//	GET    /healthz      健康检查（免认证、免限流）
//	GET    /notes        列出全部笔记
//	POST   /notes        创建笔记（需要令牌）
//	GET    /notes/{id}   查看笔记
//	PUT    /notes/{id}   更新笔记（需要令牌）
//	DELETE /notes/{id}   删除笔记（需要令牌）
//
// 认证使用 "Authorization: Token <key>" 请求头，令牌通过 token add 签发，
// 存储在 Redis 中。读操作对匿名开放，写操作要求已认证主体。
//
// 退出码:
//
//	0: 正常退出（含收到终止信号后的优雅停机）
//	1: 运行期错误（配置无效、Redis 不可达、监听失败等）
//	2: 参数错误（未知命令、非法 flag、缺少必需参数等）
//
// 示例:
//
//	apikitd --config /etc/apikit/config.yaml
//	apikitd --addr :9090 serve
//	apikitd --config config.yaml token add --name alice --scopes notes
//	curl -s http://localhost:8080/notes
//	curl -s -X POST -H "Authorization: Token <key>" \
//	    -H "Content-Type: application/json" \
//	    -d '{"title":"hello"}' http://localhost:8080/notes
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// appName 服务名，用于日志与 xrun 分组标识。
const appName = "apikitd"

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    appName,
		Usage:   "apikit 参考 API 服务",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (yaml/json)",
			},
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "监听地址，覆盖配置中的 server.addr",
			},
		},
		Commands: []*cli.Command{
			createServeCommand(),
			createTokenCommand(),
		},
		DefaultCommand: "serve",
		Authors: []any{
			"APIKit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// ExitCoder 错误（如未知命令）的消息需在此输出，
			// 替代 HandleExitCoder 的默认 os.Exit 行为。
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
	}
}

// createServeCommand 创建 serve 子命令。
func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动 HTTP 服务",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServe(ctx, cmd.String("config"), cmd.String("addr"))
		},
	}
}

// usageError 表示调用方参数错误，映射到退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...any) *usageError {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isCLIUsageError 识别 cli 框架自身产生的参数解析错误。
// 设计决策: urfave/cli 没有导出统一的参数错误类型，按消息特征识别，
// 覆盖 flag 解析失败与未知命令两类最常见的输入错误。
func isCLIUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"flag provided but not defined",
		"flag needs an argument",
		"invalid value",
		"unknown command",
		"No help topic for",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func run(args []string) int {
	app := createApp()

	if err := app.Run(context.Background(), args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			// ExitErrHandler 或 flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
