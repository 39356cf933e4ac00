package xcache

import (
	"log/slog"
	"time"

	"github.com/omeyang/apikit/pkg/observability/xmetrics"
	"github.com/omeyang/apikit/pkg/resilience/xbreaker"
)

// =============================================================================
// 缓存级选项
// =============================================================================

// options 保存缓存实例的配置，Redis 与进程内后端共享。
type options struct {
	keyPrefix    string
	version      int
	keyFunc      KeyFunc
	serializer   Serializer
	defaultTTL   time.Duration
	scanCount    int64
	ignoreErrors bool
	errorLogger  *slog.Logger
	breaker      *xbreaker.Breaker
	observer     xmetrics.Observer
	owned        bool
}

func defaultOptions() *options {
	return &options{
		version:    1,
		keyFunc:    DefaultKeyFunc,
		serializer: JSONSerializer{},
		defaultTTL: NoExpiry,
		scanCount:  DefaultScanCount,
	}
}

// Option 配置缓存实例。
type Option func(*options)

// WithKeyPrefix 设置键前缀，用于多应用共享同一 Redis 库时的命名空间隔离。
// 设置后 Clear 只清除该前缀下的键。
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithVersion 设置默认键版本号，默认 1。负数被忽略。
func WithVersion(version int) Option {
	return func(o *options) {
		if version >= 0 {
			o.version = version
		}
	}
}

// WithKeyFunc 自定义键构造函数。nil 值被忽略。
// 约束见 KeyFunc 的文档。
func WithKeyFunc(fn KeyFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.keyFunc = fn
		}
	}
}

// WithSerializer 设置序列化器，默认 JSONSerializer。nil 值被忽略。
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithDefaultTTL 设置 TTL 参数为 0 时使用的默认存活时间，默认 NoExpiry。
// 取值必须为正或 NoExpiry，其余值被忽略。
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 || ttl == NoExpiry {
			o.defaultTTL = ttl
		}
	}
}

// WithScanCount 设置 SCAN 类操作每轮的数量提示，默认 DefaultScanCount。
// 非正值被忽略。
func WithScanCount(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.scanCount = n
		}
	}
}

// WithIgnoreErrors 开启错误抑制模式。
// 后端连接错误不再传播: 读操作降级为 miss，写操作静默跳过。
// 抑制行为的完整矩阵见包文档。
func WithIgnoreErrors(ignore bool) Option {
	return func(o *options) {
		o.ignoreErrors = ignore
	}
}

// WithErrorLogger 设置错误抑制时的日志记录器。
// 仅在 WithIgnoreErrors(true) 时生效，每次抑制记录一条 Warn 日志。
// nil 值被忽略（抑制仍然生效，只是不记日志）。
func WithErrorLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.errorLogger = logger
		}
	}
}

// WithBreaker 为后端调用挂载熔断器。
// 熔断器打开时的快速失败视作连接错误，参与错误抑制。
func WithBreaker(b *xbreaker.Breaker) Option {
	return func(o *options) {
		if b != nil {
			o.breaker = b
		}
	}
}

// WithObserver 设置观测器，每个缓存操作产生一个 KindClient 跨度。
// miss 与 not-found 属于正常结果，不标记为跨度错误。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithOwnedClient 声明缓存拥有客户端的生命周期，Close 时一并关闭客户端。
// 默认不拥有: 客户端由调用方创建，也由调用方负责关闭。
func WithOwnedClient() Option {
	return func(o *options) {
		o.owned = true
	}
}

// =============================================================================
// 按调用选项
// =============================================================================

// itemOptions 保存单次操作的覆盖项。
type itemOptions struct {
	version *int
}

// ItemOption 配置单次缓存操作。
type ItemOption func(*itemOptions)

// WithItemVersion 覆盖本次操作的键版本号。
func WithItemVersion(version int) ItemOption {
	return func(io *itemOptions) {
		io.version = &version
	}
}

func resolveItem(opts []ItemOption) itemOptions {
	var io itemOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&io)
		}
	}
	return io
}

// =============================================================================
// 键与 TTL 解析
// =============================================================================

// itemVersion 返回本次操作的生效版本号。
func (o *options) itemVersion(io itemOptions) int {
	if io.version != nil {
		return *io.version
	}
	return o.version
}

// fullKey 构造后端完整键。
func (o *options) fullKey(key string, io itemOptions) string {
	return o.keyFunc(key, o.keyPrefix, o.itemVersion(io))
}

// versionRoot 返回当前 (prefix, version) 下完整键的公共前缀，
// 用于从 SCAN 结果恢复原始键。
func (o *options) versionRoot(io itemOptions) string {
	return o.keyFunc("", o.keyPrefix, o.itemVersion(io))
}

// resolveTTL 将接口层 TTL 约定映射为后端取值:
// 0 → 默认 TTL，NoExpiry（及其它负值）→ 0（后端的"永不过期"），正值原样。
func (o *options) resolveTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = o.defaultTTL
	}
	if ttl < 0 {
		return 0
	}
	return ttl
}
