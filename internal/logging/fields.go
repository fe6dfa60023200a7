package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// DownloadFields 提供 source/路径/命中状态字段，供 CLI 与 HTTP 入口输出一致的下载日志。
func DownloadFields(source, path string, cacheHit bool) logrus.Fields {
	return logrus.Fields{
		"source":    source,
		"path":      path,
		"cache_hit": cacheHit,
	}
}

// RequestFields 在 DownloadFields 基础上补充数据集名称与请求 ID。
func RequestFields(dataset, requestID, source, path string, cacheHit bool) logrus.Fields {
	fields := DownloadFields(source, path, cacheHit)
	fields["dataset"] = dataset
	fields["request_id"] = requestID
	return fields
}
