package xrotate

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Lumberjack 默认配置值
const (
	// DefaultMaxSizeMB 默认单个日志文件最大大小（MB）
	DefaultMaxSizeMB = 100

	// DefaultMaxBackups 默认保留的备份文件数量
	DefaultMaxBackups = 7

	// DefaultMaxAgeDays 默认保留备份的天数
	DefaultMaxAgeDays = 30

	// DefaultCompress 默认是否压缩备份
	DefaultCompress = true

	// maxSizeMB 单个日志文件大小上限（10 GB）
	maxSizeMB = 10240

	// maxBackups 备份文件数量上限
	maxBackups = 1024

	// maxAgeDays 备份保留天数上限（约 10 年）
	maxAgeDays = 3650
)

// lumberjackConfig lumberjack 轮转器配置
type lumberjackConfig struct {
	// MaxSizeMB 单个日志文件最大大小（MB），超过时触发轮转。必须 > 0。
	MaxSizeMB int

	// MaxBackups 保留的备份文件数量，0 表示不按数量清理（仍受 MaxAgeDays 约束）。
	MaxBackups int

	// MaxAgeDays 备份保留天数，0 表示不按天数清理（仍受 MaxBackups 约束）。
	MaxAgeDays int

	// Compress 是否 gzip 压缩备份文件。
	Compress bool

	// LocalTime 备份文件名是否使用本地时间，false 时使用 UTC。
	LocalTime bool
}

// Option lumberjack 配置选项函数
type Option func(*lumberjackConfig)

// WithMaxSize 设置单个日志文件最大大小（MB）
func WithMaxSize(mb int) Option {
	return func(c *lumberjackConfig) {
		c.MaxSizeMB = mb
	}
}

// WithMaxBackups 设置保留的备份文件数量
func WithMaxBackups(n int) Option {
	return func(c *lumberjackConfig) {
		c.MaxBackups = n
	}
}

// WithMaxAge 设置保留备份的天数
func WithMaxAge(days int) Option {
	return func(c *lumberjackConfig) {
		c.MaxAgeDays = days
	}
}

// WithCompress 设置是否压缩备份文件
func WithCompress(compress bool) Option {
	return func(c *lumberjackConfig) {
		c.Compress = compress
	}
}

// WithLocalTime 设置备份文件名是否使用本地时间
func WithLocalTime(local bool) Option {
	return func(c *lumberjackConfig) {
		c.LocalTime = local
	}
}

// lumberjackRotator 基于 lumberjack 的 Rotator 实现
//
// lumberjack 提供按大小自动轮转、备份管理与并发安全写入；
// 本类型在其上补充 Close 后的 ErrClosed 契约。
type lumberjackRotator struct {
	logger *lumberjack.Logger
	closed atomic.Bool
}

var _ Rotator = (*lumberjackRotator)(nil)

// NewLumberjack 创建基于 lumberjack 的日志轮转器。
//
// filename 为日志文件路径（必需），父目录不存在时自动创建（权限 0750）。
func NewLumberjack(filename string, opts ...Option) (Rotator, error) {
	if filename == "" {
		return nil, ErrEmptyFilename
	}

	cfg := lumberjackConfig{
		MaxSizeMB:  DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAgeDays: DefaultMaxAgeDays,
		Compress:   DefaultCompress,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	path := filepath.Clean(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("xrotate: create log directory: %w", err)
	}

	return &lumberjackRotator{
		logger: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
	}, nil
}

func (c *lumberjackConfig) validate() error {
	if c.MaxSizeMB <= 0 || c.MaxSizeMB > maxSizeMB {
		return fmt.Errorf("%w: got %d, want 1~%d", ErrInvalidMaxSize, c.MaxSizeMB, maxSizeMB)
	}
	if c.MaxBackups < 0 || c.MaxBackups > maxBackups {
		return fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxBackups, c.MaxBackups, maxBackups)
	}
	if c.MaxAgeDays < 0 || c.MaxAgeDays > maxAgeDays {
		return fmt.Errorf("%w: got %d, want 0~%d", ErrInvalidMaxAge, c.MaxAgeDays, maxAgeDays)
	}
	if c.MaxBackups == 0 && c.MaxAgeDays == 0 {
		return fmt.Errorf("%w: MaxBackups and MaxAgeDays cannot both be 0", ErrNoCleanupPolicy)
	}
	return nil
}

// Write 实现 io.Writer 接口
func (r *lumberjackRotator) Write(p []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	n, err := r.logger.Write(p)
	if err != nil {
		// Write 通过 closed 前置检查后，Close 可能在 logger.Write 执行期间
		// 完成。后置检查确保调用者始终得到 ErrClosed 而非底层 I/O 错误。
		if r.closed.Load() {
			return n, ErrClosed
		}
		return n, err
	}
	return n, nil
}

// Close 实现 io.Closer 接口
//
// 使用 Swap 标记关闭状态；首次 Close 失败后不重置标记，
// 关闭后不会有新的写入到达底层 logger。
func (r *lumberjackRotator) Close() error {
	if r.closed.Swap(true) {
		return ErrClosed
	}
	return r.logger.Close()
}

// Rotate 手动触发轮转
func (r *lumberjackRotator) Rotate() error {
	if r.closed.Load() {
		return ErrClosed
	}
	if err := r.logger.Rotate(); err != nil {
		if r.closed.Load() {
			return ErrClosed
		}
		return err
	}
	return nil
}
