package config

import (
	"os"
	"testing"
	"time"

	"github.com/fedcache/fedcache/internal/cache"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(fixturePath("missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
DownloadTimeout = "boom"
`
	path := writeConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsIntegerSeconds(t *testing.T) {
	path := writeConfig(t, "DownloadTimeout = 90\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.DownloadTimeout.DurationValue() != 90*time.Second {
		t.Fatalf("纯数字应按秒解析，得到 %s", cfg.Global.DownloadTimeout.DurationValue())
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadDefaults()
	if err != nil {
		t.Fatalf("LoadDefaults 返回错误: %v", err)
	}
	if cfg.Global.Namespace != cache.DefaultNamespace {
		t.Fatalf("默认命名空间应为 %s，得到 %s", cache.DefaultNamespace, cfg.Global.Namespace)
	}
	if cfg.Global.CacheDir != "" {
		t.Fatalf("默认 CacheDir 应为空以便回退到 ~/.cache")
	}
	if cfg.Global.LogLevel != "info" {
		t.Fatalf("默认日志级别应为 info")
	}
}

func TestLoadOptionalWithoutDefaultFile(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("获取工作目录失败: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("切换目录失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if _, err := LoadOptional(""); err != nil {
		t.Fatalf("默认配置文件缺失时不应报错: %v", err)
	}
	if _, err := LoadOptional("explicit.toml"); err == nil {
		t.Fatalf("显式指定的配置文件缺失时应报错")
	}
}
