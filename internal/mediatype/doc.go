// Package mediatype 提供媒体类型（media type）的解析与匹配。
//
// 本包是 internal 包，仅供 pkg/web 下的子包（xrequest、xrender、xview 等）使用。
// 外部用户不应直接导入此包。
//
// 主要功能：
//   - 解析单个媒体类型字符串（含参数与 q 值）
//   - 解析 Accept 头并按特异度排序
//   - 通配符感知的媒体类型匹配（*/*、type/*、带参数的完整类型）
//
// 匹配与排序规则服务于内容协商：更具体的客户端偏好优先于通配符，
// 同一特异度层级内按 q 值降序、原始顺序稳定排列。
package mediatype
