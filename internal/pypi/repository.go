// Package pypi 实现针对 Python 包索引的只读客户端：simple 索引（PEP 503/691）
// 与 legacy JSON API 两种形态共用同一个 Repository 能力，即「列出某个包的全部
// 发行文件 → 下载地址」。下载缓存只依赖该能力回源，不关心具体索引协议。
package pypi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pypi-browser/pypi-browser/internal/config"
)

// Repository 返回 filename → 绝对下载 URL 的映射，映射每次请求重新获取，不做缓存。
type Repository interface {
	FilesForPackage(ctx context.Context, name string) (map[string]string, error)
}

// PackageDoesNotExistError 表示上游索引对该包返回 404。
type PackageDoesNotExistError struct {
	Package string
}

func (e PackageDoesNotExistError) Error() string {
	return fmt.Sprintf("package %q does not exist on the index", e.Package)
}

// NewRepository 根据配置选择 simple 或 legacy-json 客户端，二者共用同一 http.Client。
func NewRepository(cfg *config.Config, client *http.Client) Repository {
	if cfg.IndexAPI == config.IndexAPILegacyJSON {
		return &LegacyJSONRepository{IndexURL: cfg.IndexURL, Client: client}
	}
	return &SimpleRepository{IndexURL: cfg.IndexURL, Client: client}
}
