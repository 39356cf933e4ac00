package xrun

import (
	"log/slog"
	"os"
	"slices"
)

// Option 配置 Group 的选项函数。
type Option func(*groupOptions)

type groupOptions struct {
	logger          *slog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool
}

func defaultOptions() *groupOptions {
	return &groupOptions{
		logger: slog.Default(),
		name:   "xrun",
	}
}

// WithLogger 设置生命周期事件（服务启动、退出、收到信号）的日志记录器。
// 默认使用 slog.Default()。
func WithLogger(logger *slog.Logger) Option {
	return func(o *groupOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 Group 名称，用于在日志中区分不同编组。
// 默认值为 "xrun"。
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 设置 Run/RunWithOptions 监听的信号列表，
// 覆盖默认的 DefaultSignals()。
func WithSignals(signals []os.Signal) Option {
	// 创建时拷贝，调用方后续修改切片不影响已生效的配置
	copied := slices.Clone(signals)
	return func(o *groupOptions) {
		o.signals = copied
	}
}

// WithoutSignalHandler 禁用自动信号处理。
// 使用后 Run/RunWithOptions 不注册信号监听，调用方自行管理信号。
func WithoutSignalHandler() Option {
	return func(o *groupOptions) {
		o.noSignalHandler = true
	}
}
