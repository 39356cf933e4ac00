package xconf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 定义配置文件格式。
type Format string

// 支持的配置格式。
const (
	// FormatYAML YAML 格式（推荐用于 K8s ConfigMap）。
	FormatYAML Format = "yaml"

	// FormatJSON JSON 格式。
	FormatJSON Format = "json"
)

// koanf 实例的键分隔符与结构体标签。
const (
	confDelim = "."
	confTag   = "koanf"
)

// Load 从文件加载配置。
//
// 格式按扩展名识别（.yaml/.yml/.json），文件内容合并到 DefaultConfig()
// 之上，未出现的键保持默认值。成功返回前执行 Validate。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}

	format, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	return LoadBytes(data, format)
}

// LoadBytes 从字节数据加载配置。
// 适用于配置内容并非来自本地文件的场景（嵌入资源、配置中心下发等）。
func LoadBytes(data []byte, format Format) (*Config, error) {
	k := koanf.New(confDelim)
	if err := loadData(k, data, format); err != nil {
		return nil, err
	}

	// 反序列化到预填充的默认配置上，缺失的键保持默认值。
	cfg := DefaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: confTag}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnknownFormat, ext)
	}
}

// loadData 将字节数据按指定格式加载到 koanf 实例。
func loadData(k *koanf.Koanf, data []byte, format Format) error {
	var parser koanf.Parser

	switch format {
	case FormatYAML:
		parser = yaml.Parser()
	case FormatJSON:
		parser = json.Parser()
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return nil
}
