// Package xrotate 提供基于文件大小的日志轮转。
//
// Rotator 是 io.WriteCloser 的超集，可直接作为 xlog 的输出目标；
// 底层实现基于 lumberjack，支持备份数量/保留天数清理与 gzip 压缩。
//
// 基本用法：
//
//	rotator, err := xrotate.NewLumberjack("/var/log/apikit/server.log",
//	    xrotate.WithMaxSize(100),
//	    xrotate.WithMaxBackups(7),
//	)
//	if err != nil { ... }
//	defer rotator.Close()
package xrotate
