// Package xconf 提供服务的类型化配置：加载、校验与热重载，基于 koanf 实现。
//
// # 设计理念
//
// xconf 定位为集中式配置入口：一个 Config 结构体描述服务全部可调参数，
// 默认值与被配置子包导出的默认常量保持一致（xrequest.DefaultMaxBodyBytes、
// xrotate.DefaultMaxSizeMB 等），配置文件只需写出与默认值不同的部分。
//
// 加载流程：文件/字节数据 → koanf 解析 → 合并到 DefaultConfig() 之上 →
// Validate() 校验。任一环节失败都返回包装了对应哨兵错误的错误，
// 调用方可用 errors.Is 区分路径、格式、解析与校验问题。
//
// # 支持的格式
//
//   - YAML（默认，推荐）：.yaml, .yml
//   - JSON：.json
//
// # 校验
//
// Validate 只做能在加载期发现的结构性检查：
//   - server.addr 与 redis.addrs 非空
//   - log.level / log.format 可被 xlog 识别
//   - api.throttle_rates 中的速率串可被 xthrottle.ParseRate 解析
//   - api.trusted_proxies 为合法 CIDR 或单个 IP
//   - api.default_version 位于 api.allowed_versions 内（两者都设置时）
//
// 运行期语义（如限流作用域是否真的被某个视图使用）由使用方负责。
//
// # 配置监视
//
// Watch 基于 fsnotify 监视配置文件变更并自动重载。
// 特性：监视目录、内置防抖、支持 vim/emacs 原子写入。
// 新配置非法时记录日志并跳过，之前的配置保持生效。
// Watch 阻塞直到 ctx 取消，适合作为 xrun 的服务函数运行。
package xconf
