package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/apikit/pkg/config/xconf"
	"github.com/omeyang/apikit/pkg/lifecycle/xrun"
	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/observability/xrotate"
	"github.com/omeyang/apikit/pkg/resilience/xbreaker"
	"github.com/omeyang/apikit/pkg/storage/xcache"
	"github.com/omeyang/apikit/pkg/web/xauth"
	"github.com/omeyang/apikit/pkg/web/xerror"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xthrottle"
	"github.com/omeyang/apikit/pkg/web/xview"
)

// =============================================================================
// 启动参数
// =============================================================================

const (
	// redisPingAttempts 服务启动时等待 Redis 就绪的 Ping 次数。
	redisPingAttempts = 5
	// redisPingDelay 首次重试间隔，之后指数退避。
	redisPingDelay = 500 * time.Millisecond
	// redisPingMaxDelay 重试间隔上限。
	redisPingMaxDelay = 5 * time.Second
	// redisPingTimeout 单次 Ping 的超时。
	redisPingTimeout = 2 * time.Second

	// statsInterval 笔记统计日志的输出间隔。
	statsInterval = time.Minute
)

// =============================================================================
// 配置与基础设施
// =============================================================================

// loadConfig 加载配置；path 为空时使用内置默认值，addrOverride 覆盖监听地址。
func loadConfig(path, addrOverride string) (*xconf.Config, error) {
	cfg := xconf.DefaultConfig()
	if path != "" {
		loaded, err := xconf.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if addrOverride != "" {
		cfg.Server.Addr = addrOverride
	}
	return cfg, nil
}

// buildLogger 按配置构建日志实例，配置了输出文件时启用轮转。
func buildLogger(cfg xconf.LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(cfg.Level).
		SetFormat(cfg.Format)
	if cfg.File != "" {
		b.SetRotation(cfg.File,
			xrotate.WithMaxSize(cfg.MaxSizeMB),
			xrotate.WithMaxBackups(cfg.MaxBackups),
			xrotate.WithMaxAge(cfg.MaxAgeDays))
	}
	return b.Build()
}

// connectRedis 创建 Redis 客户端并确认连通。
// 容器编排下依赖服务晚于本进程就绪是常态，启动期用指数退避重试 Ping，
// 全部失败才放弃。
func connectRedis(ctx context.Context, cfg xconf.RedisConfig, logger xlog.Logger, attempts uint) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    cfg.Addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(redisPingDelay),
		retry.MaxDelay(redisPingMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			// OnRetry 的 n 从 0 开始计数
			logger.Warn(ctx, "redis not ready, retrying",
				slog.Uint64("attempt", uint64(n)+1),
				xlog.Err(err))
		}),
	).Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		closeErr := client.Close()
		return nil, errors.Join(fmt.Errorf("redis unreachable: %w", err), closeErr)
	}
	return client, nil
}

// buildCache 构建笔记的主存储缓存。
// 熔断器吸收 Redis 故障期的雪崩重试，错误日志走统一输出管线。
func buildCache(client redis.UniversalClient, cfg xconf.CacheConfig, logger xlog.Logger) (xcache.Cache, error) {
	opts := []xcache.Option{
		xcache.WithKeyPrefix(cfg.Prefix),
		xcache.WithVersion(cfg.Version),
		xcache.WithScanCount(cfg.ScanCount),
		xcache.WithErrorLogger(xlog.Slog(logger)),
		xcache.WithBreaker(xbreaker.NewBreaker("cache")),
	}
	if cfg.DefaultTTL > 0 {
		opts = append(opts, xcache.WithDefaultTTL(cfg.DefaultTTL))
	}
	if cfg.IgnoreErrors {
		opts = append(opts, xcache.WithIgnoreErrors(true))
	}
	return xcache.NewRedis(client, opts...)
}

// =============================================================================
// 视图依赖
// =============================================================================

// viewDeps 汇集各视图共享的横切依赖。
type viewDeps struct {
	logger         xlog.Logger
	authenticators []xrequest.Authenticator
	throttles      []xthrottle.Throttle
	api            xconf.APIConfig
}

// buildViewDeps 构建认证器与限流策略等视图公共依赖。
func buildViewDeps(client redis.UniversalClient, api xconf.APIConfig, logger xlog.Logger) (viewDeps, error) {
	store, err := xauth.NewRedisTokenStore(client)
	if err != nil {
		return viewDeps{}, err
	}
	tokenAuth, err := xauth.NewTokenAuthenticator(store)
	if err != nil {
		return viewDeps{}, err
	}
	throttles, err := buildThrottles(api.ThrottleRates, client, logger)
	if err != nil {
		return viewDeps{}, err
	}
	return viewDeps{
		logger:         logger,
		authenticators: []xrequest.Authenticator{tokenAuth},
		throttles:      throttles,
		api:            api,
	}, nil
}

// commonOptions 返回笔记资源各视图共享的管线配置。
func (d viewDeps) commonOptions() []xview.Option {
	opts := []xview.Option{
		xview.WithRenderers(xrender.NewJSONRenderer()),
		xview.WithParsers(xrequest.NewJSONParser()),
		xview.WithAuthenticators(d.authenticators...),
		xview.WithThrottles(d.throttles...),
		xview.WithMaxBodyBytes(d.api.MaxBodyBytes),
		xview.WithLogger(d.logger),
	}
	if d.api.FormatParam != "" && d.api.FormatParam != xrender.DefaultFormatParam {
		opts = append(opts, xview.WithNegotiator(
			xrender.NewDefaultNegotiator(xrender.WithFormatParam(d.api.FormatParam))))
	}
	// 两种代理口径互斥，可信网段优先
	switch {
	case len(d.api.TrustedProxies) > 0:
		opts = append(opts, xview.WithTrustedProxies(d.api.TrustedProxies...))
	case d.api.NumProxies > 0:
		opts = append(opts, xview.WithNumProxies(d.api.NumProxies))
	}
	if len(d.api.AllowedVersions) > 0 {
		opts = append(opts, xview.WithVersioning(xview.QueryParameterVersioning{
			Allowed: d.api.AllowedVersions,
			Default: d.api.DefaultVersion,
		}))
	}
	return opts
}

// buildThrottles 按配置的 scope → rate 映射构建限流策略。
// scope 的身份口径: "user" 只限已认证主体，"anon" 只限匿名来源 IP，
// 其余 scope 按通用身份（主体 ID 或客户端 IP）。后端故障时放行并告警。
func buildThrottles(rates map[string]string, client redis.UniversalClient, logger xlog.Logger) ([]xthrottle.Throttle, error) {
	if len(rates) == 0 {
		return nil, nil
	}
	backend, err := xthrottle.NewRedisBackend(client)
	if err != nil {
		return nil, err
	}
	throttles := make([]xthrottle.Throttle, 0, len(rates))
	for _, scope := range slices.Sorted(maps.Keys(rates)) {
		rate, err := xthrottle.ParseRate(rates[scope])
		if err != nil {
			return nil, fmt.Errorf("throttle scope %s: %w", scope, err)
		}
		t, err := xthrottle.NewRateThrottle(scope, rate, backend,
			xthrottle.WithKeyFunc(keyFuncForScope(scope)),
			xthrottle.WithFailOpen(logger))
		if err != nil {
			return nil, fmt.Errorf("throttle scope %s: %w", scope, err)
		}
		throttles = append(throttles, t)
	}
	return throttles, nil
}

func keyFuncForScope(scope string) xthrottle.KeyFunc {
	switch scope {
	case "user":
		return xthrottle.PrincipalKey
	case "anon":
		return anonClientIPKey
	default:
		return xthrottle.IdentKey
	}
}

// anonClientIPKey 只对匿名请求按客户端 IP 限流，已认证请求跳过。
func anonClientIPKey(r *xrequest.Request) (string, bool) {
	if principal, err := r.Principal(); err == nil && !principal.IsAnonymous() {
		return "", false
	}
	return xthrottle.ClientIPKey(r)
}

// =============================================================================
// 路由与服务编排
// =============================================================================

// newMux 组装路由表。视图自身负责方法分发与 405 渲染，
// 这里只登记路径模式。
func newMux(store *noteStore, d viewDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/healthz", newHealthzView(d.logger))
	mux.Handle("/notes", newNotesView(store, d))
	mux.Handle("/notes/{id}", newNoteDetailView(store, d))
	// 未匹配路由的兜底，保持与视图一致的 JSON 错误形态
	mux.HandleFunc("/", notFoundHandler)
	return mux
}

// notFoundHandler 渲染未匹配路由的 JSON 404。
func notFoundHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(xerror.NewNotFound().Payload())
}

// newHealthzView 创建健康检查视图。
// 出厂默认策略即放行全部且不限流，探针流量不计入业务配额。
func newHealthzView(logger xlog.Logger) *xview.View {
	return xview.New(
		xview.WithName("healthz"),
		xview.WithDescription("Process liveness probe."),
		xview.WithLogger(logger),
		xview.WithGet(func(_ *xrequest.Request) (*xrender.Response, error) {
			return xrender.OK(map[string]string{
				"status":  "ok",
				"version": Version,
			}), nil
		}),
	)
}

// runServe 加载配置、完成全部接线并启动 HTTP 服务，
// 阻塞直到收到终止信号或某个服务失败。
func runServe(ctx context.Context, configPath, addrOverride string) error {
	cfg, err := loadConfig(configPath, addrOverride)
	if err != nil {
		return err
	}

	logger, cleanup, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	client, err := connectRedis(ctx, cfg.Redis, logger, redisPingAttempts)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	cache, err := buildCache(client, cfg.Cache, logger)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	deps, err := buildViewDeps(client, cfg.API, logger)
	if err != nil {
		return err
	}

	store := newNoteStore(cache)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newMux(store, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info(ctx, "server starting",
		slog.String("addr", cfg.Server.Addr),
		slog.String("version", Version),
		slog.String("commit", GitCommit))

	services := []func(context.Context) error{
		xrun.HTTPServer(srv, cfg.Server.ShutdownTimeout),
		statsService(store, logger),
	}
	if configPath != "" {
		services = append(services, configWatcher(configPath, logger))
	}

	err = xrun.RunWithOptions(ctx,
		[]xrun.Option{
			xrun.WithName(appName),
			xrun.WithLogger(xlog.Slog(logger)),
		},
		services...)
	if xrun.IsSignal(err) {
		// 信号触发的停机属于正常退出
		logger.Info(ctx, "received shutdown signal, server stopped")
		return nil
	}
	return err
}

// configWatcher 返回配置热更新服务。
// 目前只热应用日志级别，其余字段（监听地址、限流阈值等）需要重启生效。
func configWatcher(path string, logger xlog.LoggerWithLevel) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return xconf.Watch(ctx, path, func(next *xconf.Config) {
			applyLogLevel(ctx, logger, next)
		}, xconf.WithWatchLogger(xlog.Slog(logger)))
	}
}

// applyLogLevel 将热加载的日志级别应用到运行中的 logger。
func applyLogLevel(ctx context.Context, logger xlog.LoggerWithLevel, next *xconf.Config) {
	level, err := xlog.ParseLevel(next.Log.Level)
	if err != nil {
		// Watch 回调拿到的配置已通过校验，到这里失败属于防御分支
		return
	}
	old := logger.GetLevel()
	if old == level {
		return
	}
	logger.SetLevel(level)
	logger.Info(ctx, "log level updated",
		slog.String("old", old.String()),
		slog.String("new", level.String()))
}

// statsService 返回周期性输出笔记总量的后台服务。
func statsService(store *noteStore, logger xlog.Logger) func(ctx context.Context) error {
	return xrun.Ticker(statsInterval, false, func(ctx context.Context) error {
		count, err := store.Count(ctx)
		if err != nil {
			// 统计失败不值得终止进程
			logger.Warn(ctx, "notes stats unavailable", xlog.Err(err))
			return nil
		}
		logger.Info(ctx, "notes stats", xlog.Count(int64(count)))
		return nil
	})
}
