package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if c.CachePath == "" {
		return newFieldError("CachePath", "不能为空")
	}
	if c.TextRenderLimit <= 0 {
		return newFieldError("TextRenderLimit", "必须大于 0")
	}
	if c.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}

	switch c.IndexAPI {
	case IndexAPISimple, IndexAPILegacyJSON:
	default:
		return newFieldError("IndexAPI", "仅支持 simple|legacy-json")
	}

	if err := validateIndexURL(c.IndexURL); err != nil {
		return fmt.Errorf("IndexURL: %w", err)
	}

	return nil
}

func validateIndexURL(raw string) error {
	if raw == "" {
		return errors.New("缺少索引地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，索引: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("索引缺少 Host: %s", raw)
	}
	return nil
}
