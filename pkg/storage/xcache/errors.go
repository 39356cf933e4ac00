package xcache

import (
	"context"
	"errors"
	"fmt"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrCacheMiss 表示键不存在或已过期，由 Get/GetOrLoad 返回。
	// 这是正常的业务信号而非故障，调用方应回源而不是报错。
	ErrCacheMiss = errors.New("xcache: cache miss")

	// ErrKeyNotFound 表示操作要求键必须存在但键不存在，
	// 由 Incr/Decr/TTL/IncrVersion 返回。
	ErrKeyNotFound = errors.New("xcache: key not found")

	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xcache: nil redis client")

	// ErrNilLoader 表示 GetOrLoad 的加载函数为 nil。
	ErrNilLoader = errors.New("xcache: nil loader function")

	// ErrCacheClosed 表示缓存已关闭，不能再执行操作。
	ErrCacheClosed = errors.New("xcache: cache is closed")

	// ErrConnection 表示后端连接故障（网络错误、熔断器打开等）。
	// 未开启 WithIgnoreErrors 时，后端错误以 ErrConnection 包装返回，
	// 原始错误保留在错误链中。
	ErrConnection = errors.New("xcache: connection error")

	// ErrLockHeld 表示锁已被其他持有者占用。
	ErrLockHeld = errors.New("xcache: lock already held")

	// ErrLockExpired 表示锁在释放前已过期或被抢走。
	ErrLockExpired = errors.New("xcache: lock expired or stolen")

	// ErrInvalidTTL 表示 TTL 取值非法（Lock 要求正值，Expire 要求正值或 NoExpiry）。
	ErrInvalidTTL = errors.New("xcache: invalid TTL")

	// ErrEmptyName 表示 Lock 的锁名为空。
	ErrEmptyName = errors.New("xcache: lock name cannot be empty")

	// ErrLoadPanic 表示 GetOrLoad 的加载函数发生了 panic。
	// panic 被 recover 后转换为此错误返回，panic 值保留在错误消息中。
	ErrLoadPanic = errors.New("xcache: load function panicked")

	// ErrNotSupported 表示当前后端不支持该操作。
	// 进程内后端的模式操作（Keys/IterKeys/DeletePattern）与 Lock 返回此错误。
	ErrNotSupported = errors.New("xcache: operation not supported by this backend")
)

// =============================================================================
// 错误转换
// =============================================================================

// isContextError 报告 err 是否为调用方自身的取消或超时。
// 这类错误保持原样传播，既不包装也不参与抑制。
func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// wrapConnError 将后端错误包装为 ErrConnection，使用双 %w 保留原始错误链。
// context 错误保持原样。
func wrapConnError(err error) error {
	if err == nil || isContextError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
