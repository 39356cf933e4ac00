package xconf

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/apikit/pkg/observability/xlog"
	"github.com/omeyang/apikit/pkg/observability/xrotate"
	"github.com/omeyang/apikit/pkg/storage/xcache"
	"github.com/omeyang/apikit/pkg/web/xrender"
	"github.com/omeyang/apikit/pkg/web/xrequest"
	"github.com/omeyang/apikit/pkg/web/xthrottle"
)

// =============================================================================
// 配置结构
// =============================================================================

// Config 服务配置根结构。
// 零值不可直接使用，请通过 DefaultConfig 或 Load/LoadBytes 获取。
type Config struct {
	Server ServerConfig `koanf:"server" json:"server" yaml:"server"`
	Log    LogConfig    `koanf:"log" json:"log" yaml:"log"`
	Redis  RedisConfig  `koanf:"redis" json:"redis" yaml:"redis"`
	Cache  CacheConfig  `koanf:"cache" json:"cache" yaml:"cache"`
	API    APIConfig    `koanf:"api" json:"api" yaml:"api"`
}

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	// Addr 监听地址，如 ":8080"。
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`

	// ReadTimeout 读取整个请求（含 body）的超时。
	ReadTimeout time.Duration `koanf:"read_timeout" json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout 写响应的超时。
	WriteTimeout time.Duration `koanf:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout 优雅关闭的等待上限。
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig 日志配置。
type LogConfig struct {
	// Level 日志级别：debug/info/warn/error。
	Level string `koanf:"level" json:"level" yaml:"level"`

	// Format 输出格式：text 或 json。
	Format string `koanf:"format" json:"format" yaml:"format"`

	// File 日志文件路径；为空时输出到 stderr，不启用轮转。
	File string `koanf:"file" json:"file" yaml:"file"`

	// MaxSizeMB 单个日志文件最大大小（MB），超过时触发轮转。
	MaxSizeMB int `koanf:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups 保留的轮转文件数量。
	MaxBackups int `koanf:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays 轮转文件保留天数。
	MaxAgeDays int `koanf:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// RedisConfig Redis 连接配置。
type RedisConfig struct {
	// Addrs Redis 地址列表；单个地址为单机模式，多个为集群模式。
	Addrs []string `koanf:"addrs" json:"addrs" yaml:"addrs"`

	// Password 连接密码，为空表示无认证。
	Password string `koanf:"password" json:"password" yaml:"password"`

	// DB 数据库编号，仅单机模式有效。
	DB int `koanf:"db" json:"db" yaml:"db"`
}

// CacheConfig 缓存行为配置，映射到 xcache 的同名选项。
type CacheConfig struct {
	// Prefix 键前缀，参与缓存触及的所有键的构造。
	Prefix string `koanf:"prefix" json:"prefix" yaml:"prefix"`

	// Version 缓存版本号，调大可整体失效旧版本数据。
	Version int `koanf:"version" json:"version" yaml:"version"`

	// DefaultTTL 默认过期时间；0 表示永不过期。
	DefaultTTL time.Duration `koanf:"default_ttl" json:"default_ttl" yaml:"default_ttl"`

	// ScanCount SCAN 类操作的每轮批量。
	ScanCount int64 `koanf:"scan_count" json:"scan_count" yaml:"scan_count"`

	// IgnoreErrors 后端故障时是否降级：读按未命中处理，写按空操作处理。
	IgnoreErrors bool `koanf:"ignore_errors" json:"ignore_errors" yaml:"ignore_errors"`
}

// APIConfig API 层行为配置，映射到 xview/xrequest/xrender/xthrottle 的选项。
type APIConfig struct {
	// MaxBodyBytes 请求体上限；0 表示不限制。
	MaxBodyBytes int64 `koanf:"max_body_bytes" json:"max_body_bytes" yaml:"max_body_bytes"`

	// FormatParam 内容协商的 format 覆盖查询参数名。
	FormatParam string `koanf:"format_param" json:"format_param" yaml:"format_param"`

	// ThrottleRates 限流作用域到速率串的映射，如 {"user": "100/m"}。
	ThrottleRates map[string]string `koanf:"throttle_rates" json:"throttle_rates" yaml:"throttle_rates"`

	// AllowedVersions 允许的 API 版本列表；为空表示不限制。
	AllowedVersions []string `koanf:"allowed_versions" json:"allowed_versions" yaml:"allowed_versions"`

	// DefaultVersion 请求未携带版本时使用的默认版本。
	DefaultVersion string `koanf:"default_version" json:"default_version" yaml:"default_version"`

	// NumProxies 请求链路上的反向代理数量，用于客户端 IP 解析。
	NumProxies int `koanf:"num_proxies" json:"num_proxies" yaml:"num_proxies"`

	// TrustedProxies 可信代理网段（CIDR 或单个 IP），与 NumProxies 互斥。
	TrustedProxies []string `koanf:"trusted_proxies" json:"trusted_proxies" yaml:"trusted_proxies"`
}

// =============================================================================
// 默认值
// =============================================================================

// DefaultConfig 返回全部字段的默认配置。
// 默认值与被配置子包导出的默认常量保持一致，
// 配置文件只需写出与默认值不同的部分。
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  xrotate.DefaultMaxSizeMB,
			MaxBackups: xrotate.DefaultMaxBackups,
			MaxAgeDays: xrotate.DefaultMaxAgeDays,
		},
		Redis: RedisConfig{
			Addrs: []string{"127.0.0.1:6379"},
		},
		Cache: CacheConfig{
			Prefix:    "apikit",
			Version:   1,
			ScanCount: xcache.DefaultScanCount,
		},
		API: APIConfig{
			MaxBodyBytes:  xrequest.DefaultMaxBodyBytes,
			FormatParam:   xrender.DefaultFormatParam,
			ThrottleRates: map[string]string{},
		},
	}
}

// =============================================================================
// 校验
// =============================================================================

// Validate 校验配置值，返回的错误包装 ErrInvalidConfig。
// Load/LoadBytes 成功返回前会自动调用；手工构造或修改配置后应显式调用。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}

	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}

	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("%w: redis.addrs is empty", ErrInvalidConfig)
	}

	if c.Cache.Version < 0 {
		return fmt.Errorf("%w: cache.version must be >= 0", ErrInvalidConfig)
	}

	if c.API.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: api.max_body_bytes must be >= 0", ErrInvalidConfig)
	}
	for scope, rate := range c.API.ThrottleRates {
		if _, err := xthrottle.ParseRate(rate); err != nil {
			return fmt.Errorf("%w: api.throttle_rates[%s]: %w", ErrInvalidConfig, scope, err)
		}
	}
	for _, cidr := range c.API.TrustedProxies {
		if !validProxyAddr(cidr) {
			return fmt.Errorf("%w: api.trusted_proxies: invalid entry %q", ErrInvalidConfig, cidr)
		}
	}
	if len(c.API.AllowedVersions) > 0 && c.API.DefaultVersion != "" &&
		!slices.Contains(c.API.AllowedVersions, c.API.DefaultVersion) {
		return fmt.Errorf("%w: api.default_version %q not in api.allowed_versions", ErrInvalidConfig, c.API.DefaultVersion)
	}

	return nil
}

// validProxyAddr 判断可信代理条目是否为合法的 CIDR 或单个 IP，
// 与 xrequest.WithTrustedProxies 的接受规则一致。
func validProxyAddr(s string) bool {
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

// =============================================================================
// 拷贝
// =============================================================================

// Clone 返回配置的深拷贝。
// 热重载回调中可放心修改副本而不影响正在生效的配置。
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	out := *c
	out.Redis.Addrs = slices.Clone(c.Redis.Addrs)
	out.API.ThrottleRates = maps.Clone(c.API.ThrottleRates)
	out.API.AllowedVersions = slices.Clone(c.API.AllowedVersions)
	out.API.TrustedProxies = slices.Clone(c.API.TrustedProxies)
	return &out
}
