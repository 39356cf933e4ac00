// Package xperm 提供请求级与对象级权限检查。
//
// Permission 只回答"是否允许"，错误构造由 Check/CheckObject/DenialFor
// 负责：匿名请求在配置了认证方式的视图上收到 401（引导补全凭据），
// 其余拒绝为 403。实现 Messenger 的权限可细化 403 的 detail 文案。
//
// 内置权限：AllowAny、IsAuthenticated、IsAdmin、
// IsAuthenticatedOrReadOnly（GET/HEAD/OPTIONS 放行）、HasScope。
// And/Or/Not 组合子按短路求值组合权限，拒绝文案取第一个拒绝的操作数。
//
// 权限实现必须无状态：同一实例会被并发请求共享。
package xperm
