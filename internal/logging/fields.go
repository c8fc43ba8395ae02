package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 构建 action + 请求 ID 字段，供 HTTP 处理链路复用。
func RequestFields(action, requestID string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"request_id": requestID,
	}
}

// PackageFields 提供包名/文件名/命中状态字段，供下载缓存与页面日志复用。
func PackageFields(pkg, filename string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"package":   pkg,
		"cache_hit": cacheHit,
	}
	if filename != "" {
		fields["filename"] = filename
	}
	return fields
}
