package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// simpleAcceptHeader 按 PEP 691 优先请求 JSON 形态，HTML 仅作降级。
const simpleAcceptHeader = "application/vnd.pypi.simple.v1+json, " +
	"application/vnd.pypi.simple.v1+html;q=0.2, text/html;q=0.01"

const simpleJSONContentType = "application/vnd.pypi.simple.v1+json"

// SimpleRepository 读取 <IndexURL>/simple/<name>/ 页面，JSON 与 HTML 双形态兼容。
type SimpleRepository struct {
	IndexURL string
	Client   *http.Client
}

func (r *SimpleRepository) FilesForPackage(ctx context.Context, name string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/simple/%s/", strings.TrimRight(r.IndexURL, "/"), name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", simpleAcceptHeader)

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("查询 simple 索引失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, PackageDoesNotExistError{Package: name}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("simple 索引返回异常状态 %d: %s", resp.StatusCode, endpoint)
	}

	// 相对链接统一按最终（重定向后）URL 解析。
	finalURL := resp.Request.URL

	if strings.HasPrefix(resp.Header.Get("Content-Type"), simpleJSONContentType) {
		return filesFromSimpleJSON(resp, finalURL)
	}
	return filesFromSimpleHTML(resp, finalURL)
}

func filesFromSimpleJSON(resp *http.Response, base *url.URL) (map[string]string, error) {
	var body struct {
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("解析 simple JSON 失败: %w", err)
	}

	files := make(map[string]string, len(body.Files))
	for _, f := range body.Files {
		if f.Filename == "" || f.URL == "" {
			continue
		}
		files[f.Filename] = cleanFileURL(base, f.URL)
	}
	return files, nil
}

func filesFromSimpleHTML(resp *http.Response, base *url.URL) (map[string]string, error) {
	node, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析 simple HTML 失败: %w", err)
	}

	files := map[string]string{}
	collectAnchors(node, func(href string) {
		resolved := cleanFileURL(base, href)
		parsed, err := url.Parse(resolved)
		if err != nil {
			return
		}
		segments := strings.Split(parsed.Path, "/")
		filename := segments[len(segments)-1]
		if filename == "" {
			return
		}
		files[filename] = resolved
	})
	return files, nil
}

// collectAnchors 深度遍历 DOM，对每个带 href 的 <a> 标签回调一次。
func collectAnchors(n *html.Node, visit func(href string)) {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, attr := range n.Attr {
			if attr.Key == "href" && attr.Val != "" {
				visit(attr.Val)
				break
			}
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		collectAnchors(child, visit)
	}
}

// cleanFileURL 把 href 解析成相对 base 的绝对地址，并剥离 #sha256=... 片段。
func cleanFileURL(base *url.URL, href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	return resolved.String()
}
