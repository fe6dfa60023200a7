package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fedcache/fedcache/internal/cache"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为，所有数据集共享同一份参数。
type GlobalConfig struct {
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	CacheDir        string   `mapstructure:"CacheDir"`
	Namespace       string   `mapstructure:"Namespace"`
	DownloadTimeout Duration `mapstructure:"DownloadTimeout"`
	UserAgent       string   `mapstructure:"UserAgent"`
	ListenPort      int      `mapstructure:"ListenPort"`
	VerifyOnHit     bool     `mapstructure:"VerifyOnHit"`
}

// DatasetConfig 声明一个可按名称获取的远端数据集。
type DatasetConfig struct {
	Name   string `mapstructure:"Name"`
	Source string `mapstructure:"Source"`
	SHA256 string `mapstructure:"SHA256"`
	Size   int64  `mapstructure:"Size"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig    `mapstructure:",squash"`
	Datasets []DatasetConfig `mapstructure:"Dataset"`
}

// Checksum 将配置中的 SHA256/Size 转换为缓存层的校验信息（假定 Validate 已经通过）。
func (d DatasetConfig) Checksum() (cache.Checksum, error) {
	return cache.NewChecksum(strings.ToLower(strings.TrimSpace(d.SHA256)), d.Size)
}

// Dataset 按名称查找数据集声明。
func (c *Config) Dataset(name string) (DatasetConfig, bool) {
	if c == nil {
		return DatasetConfig{}, false
	}
	for _, ds := range c.Datasets {
		if ds.Name == name {
			return ds, true
		}
	}
	return DatasetConfig{}, false
}

// DatasetNames 返回所有数据集名称，供日志字段使用。
func DatasetNames(datasets []DatasetConfig) []string {
	if len(datasets) == 0 {
		return nil
	}
	result := make([]string, len(datasets))
	for i, ds := range datasets {
		result[i] = ds.Name
	}
	return result
}

// CacheOptions 生成与全局配置对应的 cache.Option 列表（不含 http.Client 与 logger）。
func (g GlobalConfig) CacheOptions() []cache.Option {
	return []cache.Option{cache.WithNamespace(g.Namespace)}
}
