package pypi

import "github.com/pypi-browser/pypi-browser/internal/config"

// testConfig 构造仅关心 IndexAPI 的最小配置。
func testConfig(api string) *config.Config {
	return &config.Config{
		IndexURL: "https://pypi.example",
		IndexAPI: api,
	}
}
