package xthrottle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/observability/xmetrics"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrequest"
)

// Throttle 定义单条限流策略。实现必须并发安全。
type Throttle interface {
	// Name 返回策略名，用于日志和指标
	Name() string

	// Check 消耗配额并判定请求是否放行。
	// 拒绝通过 Result.Allowed=false 表达，error 只用于基础设施故障。
	Check(ctx context.Context, r *xrequest.Request) (Result, error)
}

// RateThrottle 按固定速率在某个身份维度上限流。
type RateThrottle struct {
	scope    string
	rate     Rate
	keyFunc  KeyFunc
	backend  Backend
	failOpen bool
	logger   xlog.Logger
	observer xmetrics.Observer
}

// Option 配置 RateThrottle。
type Option func(*RateThrottle)

// WithKeyFunc 替换身份提取函数，默认为 IdentKey。
func WithKeyFunc(fn KeyFunc) Option {
	return func(t *RateThrottle) {
		if fn != nil {
			t.keyFunc = fn
		}
	}
}

// WithFailOpen 将后端故障降级为放行并记录告警日志。
// 默认行为是故障向上传播（最终表现为 500）。
// logger 为 nil 时使用 xlog 全局默认。
//
// 设计决策: 降级方向由业务权衡决定——限流保护的是后端容量，
// 后端存储故障时拒绝全部流量往往比放行更具破坏性。
func WithFailOpen(logger xlog.Logger) Option {
	return func(t *RateThrottle) {
		t.failOpen = true
		t.logger = logger
	}
}

// WithObserver 设置观测器，Check 产生 component=xthrottle 的跨度。
func WithObserver(observer xmetrics.Observer) Option {
	return func(t *RateThrottle) {
		t.observer = observer
	}
}

// NewRateThrottle 创建限流策略。
// scope 区分策略（如 "burst"、"sustained"），同 scope 的策略共享配额历史。
func NewRateThrottle(scope string, rate Rate, backend Backend, opts ...Option) (*RateThrottle, error) {
	if scope == "" {
		return nil, ErrEmptyScope
	}
	if !rate.valid() {
		return nil, ErrInvalidRate
	}
	if backend == nil {
		return nil, ErrNilBackend
	}

	t := &RateThrottle{
		scope:   scope,
		rate:    rate,
		keyFunc: IdentKey,
		backend: backend,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t, nil
}

// Name 实现 Throttle 接口。
func (t *RateThrottle) Name() string {
	return t.scope
}

// Rate 返回策略速率。
func (t *RateThrottle) Rate() Rate {
	return t.rate
}

// Check 实现 Throttle 接口。
func (t *RateThrottle) Check(ctx context.Context, r *xrequest.Request) (res Result, err error) {
	ctx, span := xmetrics.Start(ctx, t.observer, xmetrics.SpanOptions{
		Component: "xthrottle",
		Operation: "check",
		Attrs:     []xmetrics.Attr{{Key: "scope", Value: t.scope}},
	})
	defer func() {
		span.End(xmetrics.Result{
			Err:   err,
			Attrs: []xmetrics.Attr{{Key: "allowed", Value: res.Allowed}},
		})
	}()

	ident, ok := t.keyFunc(r)
	if !ok {
		return Result{Allowed: true, Limit: t.rate.N, Remaining: t.rate.N, RetryAfter: -1}, nil
	}

	res, err = t.backend.Allow(ctx, cacheKey(t.scope, ident), t.rate)
	if err == nil {
		return res, nil
	}

	if t.failOpen {
		logger := t.logger
		if logger == nil {
			logger = xlog.Default()
		}
		logger.Warn(ctx, "throttle backend failed, allowing request",
			slog.String("scope", t.scope),
			xlog.Err(err),
		)
		return Result{Allowed: true, Limit: t.rate.N, Remaining: 0, RetryAfter: -1}, nil
	}
	return Result{}, err
}

// CheckAll 依次执行全部限流策略，nil 策略被跳过。
//
// 所有策略都会被执行并记录各自的消耗历史，即使前面的策略已经拒绝；
// 否则多策略视图在被限流期间会停止记录短周期策略的流量，解除限流的
// 瞬间放出突发。全部执行后：
//   - 任一策略拒绝 ⇒ 返回 429，等待时间取各拒绝策略已知等待的最大值
//   - 无拒绝但有后端错误 ⇒ 错误向上传播
func CheckAll(ctx context.Context, r *xrequest.Request, throttles []Throttle) error {
	var (
		denied  bool
		maxWait = time.Duration(-1)
		errs    []error
	)

	for _, throttle := range throttles {
		if throttle == nil {
			continue
		}
		res, err := throttle.Check(ctx, r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res.Allowed {
			continue
		}
		denied = true
		if res.RetryAfter >= 0 && res.RetryAfter > maxWait {
			maxWait = res.RetryAfter
		}
	}

	// 拒绝优先于后端错误：既然有策略成功判定了超限，429 就是准确答案；
	// 故障后端的问题会在未被拒绝的请求上暴露出来。
	if denied {
		return xerror.NewThrottled(maxWait)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// 确保 RateThrottle 实现了 Throttle 接口
var _ Throttle = (*RateThrottle)(nil)
