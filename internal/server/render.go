package server

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	goversion "github.com/hashicorp/go-version"

	"github.com/pypi-browser/pypi-browser/internal/pypi"
)

// highlightStyle 是 chroma 渲染使用的配色方案。
const highlightStyle = "friendly"

type fileRow struct {
	Filename string
	Link     string
}

type versionGroup struct {
	Version string
	Files   []fileRow
}

// groupByVersion 按从文件名猜出的版本归组，新版本在前。
// 猜不出版本的文件（与 PEP 命名不符的历史遗留）直接跳过。
func groupByVersion(name string, files map[string]string) []versionGroup {
	byVersion := map[string][]fileRow{}
	for filename := range files {
		version, err := pypi.GuessVersion(filename)
		if err != nil {
			continue
		}
		byVersion[version] = append(byVersion[version], fileRow{
			Filename: filename,
			Link:     "/package/" + escapeSegment(name) + "/" + escapeSegment(filename),
		})
	}

	versions := make([]string, 0, len(byVersion))
	for version := range byVersion {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versionLess(versions[j], versions[i]) })

	groups := make([]versionGroup, 0, len(versions))
	for _, version := range versions {
		rows := byVersion[version]
		sort.Slice(rows, func(i, j int) bool { return rows[i].Filename < rows[j].Filename })
		groups = append(groups, versionGroup{Version: version, Files: rows})
	}
	return groups
}

// versionLess 优先按语义版本比较，解析不了的排在可解析版本之后并按字典序。
func versionLess(a, b string) bool {
	va, errA := goversion.NewVersion(a)
	vb, errB := goversion.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if cmp := va.Compare(vb); cmp != 0 {
			return cmp < 0
		}
		return a < b
	case errA == nil:
		return false
	case errB == nil:
		return true
	default:
		return a < b
	}
}

// humanSize 按 1024 进制给出人类可读的大小。
func humanSize(size int64) string {
	switch {
	case size >= 1<<30:
		return fmt.Sprintf("%.1f GiB", float64(size)/(1<<30))
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d %s", size, pluralize("byte", size))
	}
}

func pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}

// isTextContent 基于内容嗅探判断首块是否为文本，空文件视为文本。
func isTextContent(chunk []byte) bool {
	if len(chunk) == 0 {
		return true
	}
	return strings.HasPrefix(http.DetectContentType(chunk), "text/")
}

// highlight 对文本做语法高亮，按文件名匹配 lexer，匹配不到时退回纯文本。
func highlight(entryPath, content string) (template.HTML, error) {
	lexer := lexers.Match(path.Base(entryPath))
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return "", fmt.Errorf("高亮分词失败: %w", err)
	}

	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}

	formatter := chromahtml.New(chromahtml.WithLineNumbers(true))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", fmt.Errorf("高亮渲染失败: %w", err)
	}
	return template.HTML(buf.String()), nil
}

type metadataField struct {
	Key    string
	Values []string
}

// parseMetadataHeaders 解析 METADATA/PKG-INFO 的 RFC 822 头部，
// 正文（长描述）不属于头部，直接忽略。
func parseMetadataHeaders(content []byte) ([]metadataField, error) {
	// 补一个空行，保证没有正文的文件也能解析完整。
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(append(content, "\n\n"...))))
	header, err := reader.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		return nil, err
	}

	fields := make([]metadataField, 0, len(header))
	for key, values := range header {
		fields = append(fields, metadataField{Key: key, Values: values})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Key < fields[j].Key })
	return fields, nil
}

// escapeSegment 对单个路径段做 URL 转义。
func escapeSegment(segment string) string {
	return url.PathEscape(segment)
}
