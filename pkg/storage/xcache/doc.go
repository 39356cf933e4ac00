// Package xcache 提供版本化键空间的缓存门面，统一 Redis 与进程内两种后端。
//
// 核心能力:
//   - 完整的缓存操作集: Get/Set/Add/Delete/Incr/Decr/TTL/Expire/Persist/Touch
//     以及批量与模式操作 (GetMany/SetMany/DeleteMany/DeletePattern/Keys/IterKeys)
//   - 键由 KeyFunc 统一构造: <prefix>:<version>:<key>，支持按调用覆盖版本，
//     IncrVersion 通过 RENAME 实现键的无拷贝版本迁移
//   - GetOrLoad 提供 singleflight 合并回源，进程内同 key 并发只触发一次加载
//   - Lock 基于 redsync 提供跨进程互斥（仅 Redis 后端）
//   - 可选的错误抑制模式: 后端连接故障时读操作降级为 miss、写操作静默跳过
//
// 使用示例:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	cache, err := xcache.NewRedis(client,
//		xcache.WithKeyPrefix("myapp"),
//		xcache.WithDefaultTTL(5*time.Minute),
//	)
//	if err != nil {
//		return err
//	}
//	defer cache.Close()
//
//	if err := cache.Set(ctx, "user:1", user, 0); err != nil {
//		return err
//	}
//	var got User
//	if err := cache.Get(ctx, "user:1", &got); err != nil {
//		if errors.Is(err, xcache.ErrCacheMiss) {
//			// 回源
//		}
//	}
//
// 错误抑制 (WithIgnoreErrors):
//
// 开启后，后端连接错误不再向调用方传播: Get 返回 ErrCacheMiss，
// GetMany 返回空结果，写类操作返回零值与 nil。每次抑制可通过
// WithErrorLogger 注入的 logger 记录 Warn 日志。序列化错误与真实的
// miss/not-found 永远不会被抑制。Lock 的错误同样不参与抑制——
// 拿不到锁和拿到了锁必须可区分。
//
// 进程内后端 (NewMemory) 基于 ristretto，适合测试与单机部署，
// 不支持模式操作与分布式锁，相应方法返回 ErrNotSupported。
package xcache
