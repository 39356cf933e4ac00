package xthrottle

import "errors"

// 预定义错误，使用 errors.Is 进行比较
var (
	// ErrInvalidRate 表示速率声明无法解析或数值非法
	ErrInvalidRate = errors.New("xthrottle: invalid rate")

	// ErrEmptyScope 表示限流作用域为空
	ErrEmptyScope = errors.New("xthrottle: empty scope")

	// ErrNilBackend 表示限流后端为 nil
	ErrNilBackend = errors.New("xthrottle: nil backend")

	// ErrNilKeyFunc 表示身份提取函数为 nil
	ErrNilKeyFunc = errors.New("xthrottle: nil key func")

	// ErrInvalidCapacity 表示本地后端容量非法
	ErrInvalidCapacity = errors.New("xthrottle: invalid capacity")

	// ErrNilClient 表示 Redis 客户端为 nil
	ErrNilClient = errors.New("xthrottle: nil redis client")
)
