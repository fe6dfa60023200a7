package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fedcache/fedcache/internal/cache"
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别: "+g.LogLevel)
	}
	if g.Namespace == "" {
		return newFieldError("Global.Namespace", "不能为空")
	}
	if strings.ContainsAny(g.Namespace, `/\`) || g.Namespace == "." || g.Namespace == ".." {
		return newFieldError("Global.Namespace", "不允许包含路径分隔符")
	}
	if g.DownloadTimeout.DurationValue() <= 0 {
		return newFieldError("Global.DownloadTimeout", "必须大于 0")
	}
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	seenNames := map[string]struct{}{}
	for i := range c.Datasets {
		ds := &c.Datasets[i]
		if ds.Name == "" {
			return newFieldError("Dataset[].Name", "不能为空")
		}
		if strings.ContainsAny(ds.Name, `/\ `) {
			return newFieldError(datasetField(ds.Name, "Name"), "不允许包含空格或路径分隔符")
		}
		if _, exists := seenNames[ds.Name]; exists {
			return newFieldError(datasetField(ds.Name, "Name"), "重复")
		}
		seenNames[ds.Name] = struct{}{}

		if err := validateSource(ds.Source); err != nil {
			return fmt.Errorf("%s: %w", datasetField(ds.Name, "Source"), err)
		}
		if ds.SHA256 != "" && !sha256Pattern.MatchString(ds.SHA256) {
			return newFieldError(datasetField(ds.Name, "SHA256"), "必须是 64 位小写十六进制")
		}
		if ds.Size < 0 {
			return newFieldError(datasetField(ds.Name, "Size"), "不能为负数")
		}
	}

	return nil
}

func validateSource(raw string) error {
	if raw == "" {
		return errors.New("缺少下载地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，地址: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("地址缺少 Host: %s", raw)
	}
	if _, err := cache.Basename(raw); err != nil {
		return err
	}
	return nil
}
