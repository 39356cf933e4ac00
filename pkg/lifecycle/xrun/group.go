package xrun

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Group 基于 errgroup + context 管理多个服务的并发运行与协调关闭。
//
// 任一服务返回错误或 context 被取消时，所有服务都会收到取消信号。
// Go、GoWithName、Cancel 可从多个 goroutine 并发调用；Wait 应仅调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建新的 Group，返回 Group 和派生的 context。
// 任一服务返回错误时，返回的 context 会被取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	// nil context 归一化，context.WithCancelCause(nil) 会 panic
	if ctx == nil {
		ctx = context.Background()
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(options)
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 启动一个 goroutine 执行 fn。
//
// fn 应监听 ctx.Done() 以响应取消；返回非 nil 错误会触发
// 其他所有服务的取消。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同，并以 name 记录服务的启动与退出日志。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}

		g.opts.logger.Debug("service starting",
			slog.String("group", g.opts.name),
			slog.String("service", name),
		)

		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn("service exited with error",
				slog.String("group", g.opts.name),
				slog.String("service", name),
				slog.Any("error", err),
			)
		} else {
			g.opts.logger.Debug("service stopped",
				slog.String("group", g.opts.name),
				slog.String("service", name),
			)
		}
		return err
	})
}

// Wait 等待所有服务退出，返回第一个有语义的退出原因。
//
// context.Canceled 若源自编组关闭（Cancel 或父 context 取消）会被过滤，
// 此时返回显式的取消原因（如 SignalError），无显式原因返回 nil。
// 服务内部自行产生的 context.Canceled 不属于编组关闭，原样返回。
// 即使所有服务返回 nil，Cancel(cause) 设置的原因也不会丢失。
func (g *Group) Wait() error {
	// CancelCauseFunc 幂等，defer 确保 causeCtx 的资源最终释放；
	// 放在所有 cause 检查之后执行，不影响返回值。
	defer g.cancel(nil)

	err := g.eg.Wait()

	g.opts.logger.Debug("all services stopped",
		slog.String("group", g.opts.name),
	)

	if errors.Is(err, context.Canceled) {
		// causeCtx 被取消说明是编组关闭；否则 Canceled 来自服务内部
		if g.causeCtx.Err() != nil {
			return g.explicitCause()
		}
		return err
	}

	// 所有服务返回 nil 时仍可能存在显式 Cancel(cause)
	if err == nil && g.causeCtx.Err() != nil {
		return g.explicitCause()
	}
	return err
}

// explicitCause 返回主动取消时设置的退出原因；普通取消返回 nil。
func (g *Group) explicitCause() error {
	if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Cancel 主动取消所有服务，cause 会成为 Wait 的返回值。
//
// cause 不应包装 context.Canceled，否则会被 Wait 当作普通取消过滤掉；
// 有语义的退出原因应使用独立错误类型（如 SignalError）。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的共享 context。
func (g *Group) Context() context.Context {
	return g.ctx
}
