package xcache

import "strconv"

// =============================================================================
// 键构造
// =============================================================================

// KeyFunc 将调用方的原始键映射为后端的完整键。
//
// 自定义 KeyFunc 必须保持原始键作为结果的后缀，且同一 (prefix, version)
// 下前缀部分固定——Keys/IterKeys/DeletePattern 依赖这一点做去版本化，
// IncrVersion 依赖它做版本迁移。
type KeyFunc func(key, prefix string, version int) string

// DefaultKeyFunc 按 "<prefix>:<version>:<key>" 构造完整键；
// prefix 为空时省略前缀段，即 "<version>:<key>"。
func DefaultKeyFunc(key, prefix string, version int) string {
	if prefix == "" {
		return strconv.Itoa(version) + ":" + key
	}
	return prefix + ":" + strconv.Itoa(version) + ":" + key
}
