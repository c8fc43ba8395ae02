package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// LegacyJSONRepository 调用 pypi.org 兼容的 /pypi/<name>/json 端点，
// 将 releases 嵌套结构拍平为 filename → URL。
type LegacyJSONRepository struct {
	IndexURL string
	Client   *http.Client
}

func (r *LegacyJSONRepository) FilesForPackage(ctx context.Context, name string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/pypi/%s/json", strings.TrimRight(r.IndexURL, "/"), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("查询 legacy JSON API 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, PackageDoesNotExistError{Package: name}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("legacy JSON API 返回异常状态 %d: %s", resp.StatusCode, endpoint)
	}

	var body struct {
		Releases map[string][]struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"releases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("解析 legacy JSON 失败: %w", err)
	}

	base := resp.Request.URL
	files := map[string]string{}
	for _, release := range body.Releases {
		for _, f := range release {
			if f.Filename == "" || f.URL == "" {
				continue
			}
			files[f.Filename] = resolveAgainst(base, f.URL)
		}
	}
	return files, nil
}

func resolveAgainst(base *url.URL, raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(parsed).String()
}
