package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
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

// IndexAPI 枚举仓库客户端的两种实现形态。
const (
	IndexAPISimple     = "simple"
	IndexAPILegacyJSON = "legacy-json"
)

// Config 是 TOML 文件 + 环境变量映射后的整体结构，进程启动时构造一次，
// 之后以只读引用传入 cache / pypi / server 各组件。
type Config struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	IndexURL        string   `mapstructure:"IndexURL"`
	IndexAPI        string   `mapstructure:"IndexAPI"`
	CachePath       string   `mapstructure:"CachePath"`
	TextRenderLimit int64    `mapstructure:"TextRenderLimit"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
	Debug           bool     `mapstructure:"Debug"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}
