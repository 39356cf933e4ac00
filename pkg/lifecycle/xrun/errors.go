package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 表示因收到系统信号而终止。
	// 使用 IsSignal 或 errors.Is(err, ErrSignal) 判断。
	ErrSignal = errors.New("received signal")

	// ErrNilFunc 表示注册了 nil 服务函数。
	ErrNilFunc = errors.New("xrun: nil service func")

	// ErrNilServer 表示 HTTPServer 收到 nil 服务器。
	ErrNilServer = errors.New("xrun: nil http server")

	// ErrInvalidInterval 表示 Ticker 的间隔参数无效（必须为正数）。
	ErrInvalidInterval = errors.New("xrun: interval must be positive")
)

// SignalError 包含触发终止的具体信号信息。
//
// Run/RunWithOptions 在收到系统信号时返回此错误。
// 使用 errors.As 获取具体信号值：
//
//	var sigErr *xrun.SignalError
//	if errors.As(err, &sigErr) {
//	    log.Printf("received signal: %v", sigErr.Signal)
//	}
type SignalError struct {
	Signal os.Signal
}

// Error 实现 error 接口。
func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal) 判断。
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}

// Unwrap 返回底层错误。
func (e *SignalError) Unwrap() error {
	return ErrSignal
}

// IsSignal 判断 err 是否为信号触发的退出。
// 信号退出通常按正常关闭处理而非故障。
func IsSignal(err error) bool {
	return errors.Is(err, ErrSignal)
}
