package xcache

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// 序列化
// =============================================================================

// Serializer 定义值的序列化方式。
//
// 序列化错误属于调用方的编程错误，永远不会被 WithIgnoreErrors 抑制。
type Serializer interface {
	// Marshal 将值编码为字节。
	Marshal(v any) ([]byte, error)
	// Unmarshal 将字节解码到 dest。
	Unmarshal(data []byte, dest any) error
}

// JSONSerializer 使用 encoding/json 编解码，是默认序列化器。
//
// JSON 编码的整数与 Redis 的 INCRBY 表示相同（纯十进制数字），
// 因此 Incr/Decr 可以直接对 JSON 序列化的整数值做原子自增。
type JSONSerializer struct{}

// Marshal 实现 Serializer。
func (JSONSerializer) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("xcache: marshal value: %w", err)
	}
	return data, nil
}

// Unmarshal 实现 Serializer。
func (JSONSerializer) Unmarshal(data []byte, dest any) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("xcache: unmarshal value: %w", err)
	}
	return nil
}

// RawSerializer 不做编解码，值必须是 []byte 或 string。
// 适合缓存已序列化的负载（如渲染好的 JSON 响应体）。
type RawSerializer struct{}

// Marshal 实现 Serializer。仅接受 []byte 与 string。
func (RawSerializer) Marshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("xcache: raw serializer cannot marshal %T", v)
	}
}

// Unmarshal 实现 Serializer。dest 必须是 *[]byte 或 *string。
func (RawSerializer) Unmarshal(data []byte, dest any) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = data
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		return fmt.Errorf("xcache: raw serializer cannot unmarshal into %T", dest)
	}
}

// 编译期接口检查。
var (
	_ Serializer = JSONSerializer{}
	_ Serializer = RawSerializer{}
)
