package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/version"
)

// DefaultPath 是未指定 -config 与 FEDCACHE_CONFIG 时读取的配置文件。
const DefaultPath = "config.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	return decode(v)
}

// LoadOptional 与 Load 相同，但默认配置文件不存在时仅返回默认值。
func LoadOptional(path string) (*Config, error) {
	if path == "" || path == DefaultPath {
		if _, err := os.Stat(DefaultPath); errors.Is(err, fs.ErrNotExist) {
			return LoadDefaults()
		}
	}
	return Load(path)
}

// LoadDefaults 返回不依赖任何配置文件的默认配置。
func LoadDefaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	for i := range cfg.Datasets {
		applyDatasetDefaults(&cfg.Datasets[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Global.CacheDir != "" {
		absCache, err := filepath.Abs(cfg.Global.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("无法解析缓存目录: %w", err)
		}
		cfg.Global.CacheDir = absCache
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("CacheDir", "")
	v.SetDefault("Namespace", cache.DefaultNamespace)
	v.SetDefault("DownloadTimeout", "10m")
	v.SetDefault("UserAgent", "")
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("VerifyOnHit", false)
}

func applyGlobalDefaults(g *GlobalConfig) {
	g.LogLevel = strings.ToLower(strings.TrimSpace(g.LogLevel))
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	g.Namespace = strings.TrimSpace(g.Namespace)
	if g.Namespace == "" {
		g.Namespace = cache.DefaultNamespace
	}
	if g.DownloadTimeout.DurationValue() == 0 {
		g.DownloadTimeout = Duration(10 * time.Minute)
	}
	if strings.TrimSpace(g.UserAgent) == "" {
		g.UserAgent = "fedcache/" + version.Version
	}
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
}

func applyDatasetDefaults(d *DatasetConfig) {
	d.Name = strings.TrimSpace(d.Name)
	d.Source = strings.TrimSpace(d.Source)
	d.SHA256 = strings.ToLower(strings.TrimSpace(d.SHA256))
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
