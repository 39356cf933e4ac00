package xconf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// 默认防抖时间。
const defaultWatchDebounce = 100 * time.Millisecond

// WatchOption 监视器配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	logger   *slog.Logger
}

func defaultWatchOptions() *watchOptions {
	return &watchOptions{
		debounce: defaultWatchDebounce,
		logger:   slog.Default(),
	}
}

// WithDebounce 设置防抖时间。
// 在指定时间内的多次变更只触发一次重载。
// 默认值为 100ms，适合大多数场景。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithWatchLogger 设置监视过程的日志输出。
// 重载失败与底层 watcher 错误通过该 logger 记录，默认 slog.Default()。
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(o *watchOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Watch 监视配置文件变更并自动重载。
//
// 文件发生变更后经防抖间隔重新 Load，加载成功时以新配置调用 onChange；
// 加载或校验失败时记录日志并跳过，之前的配置保持生效。
//
// 监视的是配置文件所在目录而非文件本身：编辑器保存文件时可能先删除再创建，
// 直接监视文件会丢失事件。Write/Create/Rename 事件都视为配置更新，
// 覆盖 vim/emacs 的原子写入模式。
//
// 此函数阻塞直到 ctx 取消，适合作为 xrun 的服务函数运行：
//
//	err := xrun.Run(ctx,
//	    xrun.HTTPServer(srv, cfg.Server.ShutdownTimeout),
//	    func(ctx context.Context) error {
//	        return xconf.Watch(ctx, path, onChange)
//	    },
//	)
func Watch(ctx context.Context, path string, onChange func(*Config), opts ...WatchOption) error {
	if path == "" {
		return ErrEmptyPath
	}
	if onChange == nil {
		return errors.New("xconf: nil onChange callback")
	}
	if _, err := detectFormat(path); err != nil {
		return err
	}

	options := defaultWatchOptions()
	for _, opt := range opts {
		opt(options)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("xconf: failed to create watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		return errors.Join(
			fmt.Errorf("xconf: failed to watch directory %s: %w", dir, err),
			fsWatcher.Close(),
		)
	}

	// 防抖定时器；AfterFunc 在独立 goroutine 中触发，需要锁保护。
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	filename := filepath.Base(path)
	logger := options.logger

	for {
		select {
		case <-ctx.Done():
			return fsWatcher.Close()

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return fsWatcher.Close()
			}

			// 只处理目标配置文件的事件
			if filepath.Base(event.Name) != filename {
				continue
			}

			// 处理可能表示配置更新的事件
			// - Write: 直接修改
			// - Create: 新建文件（部分编辑器）
			// - Rename: 原子写入模式（vim/emacs 写临时文件后 rename）
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			// 防抖处理：重置计时器
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(options.debounce, func() {
				// ctx 取消后不再触发回调
				select {
				case <-ctx.Done():
					return
				default:
				}

				cfg, err := Load(path)
				if err != nil {
					logger.WarnContext(ctx, "config reload skipped",
						slog.String("path", path),
						slog.Any("error", err),
					)
					return
				}
				onChange(cfg)
			})
			mu.Unlock()

		case werr, ok := <-fsWatcher.Errors:
			if !ok {
				return fsWatcher.Close()
			}
			logger.WarnContext(ctx, "config watch error", slog.Any("error", werr))
		}
	}
}
