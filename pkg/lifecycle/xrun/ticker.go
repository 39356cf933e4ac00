package xrun

import (
	"context"
	"time"
)

// Ticker 返回周期性执行任务的服务函数。
//
// interval 必须为正数，否则服务函数返回 ErrInvalidInterval。
// immediate 为 true 时启动即执行一次。fn 返回错误会终止整个编组；
// ctx 取消时返回 ctx.Err()。
//
//	g.Go(xrun.Ticker(time.Minute, false, func(ctx context.Context) error {
//	    return reportStats(ctx)
//	}))
func Ticker(interval time.Duration, immediate bool, fn func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return ErrInvalidInterval
		}
		if fn == nil {
			return ErrNilFunc
		}

		if immediate {
			// 已取消的 context 不触发业务副作用
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := fn(ctx); err != nil {
				return err
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// WaitForDone 返回等待 context 取消的占位服务函数，
// 用于保持编组运行直到收到取消信号。
func WaitForDone() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
}
