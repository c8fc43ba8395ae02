package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/pypi-browser/pypi-browser/internal/cache"
	"github.com/pypi-browser/pypi-browser/internal/config"
	"github.com/pypi-browser/pypi-browser/internal/logging"
	"github.com/pypi-browser/pypi-browser/internal/packaging"
	"github.com/pypi-browser/pypi-browser/internal/pypi"
)

// transferChunkSize 是 raw 传输时单次读取的块大小。
const transferChunkSize = 1024

// mimeWhitelist 列出允许按探测结果原样返回的 Content-Type 前缀，
// 其余类型一律退化为 application/octet-stream，避免在本站域下渲染 HTML。
var mimeWhitelist = []string{
	"application/javascript",
	"application/json",
	"application/pdf",
	"application/x-ruby",
	"audio/",
	"image/",
	"text/css",
	"text/plain",
	"text/x-python",
	"text/x-sh",
	"video/",
}

// inlineMimeWhitelist 列出允许内联展示的二进制类型，决定 Content-Disposition。
var inlineMimeWhitelist = []string{
	"application/pdf",
	"audio/",
	"image/",
	"video/",
}

// metadataPattern 匹配 wheel 的 METADATA 或 sdist 的 PKG-INFO 顶层成员。
var metadataPattern = regexp.MustCompile(`^(?:[^/]+\.dist-info/METADATA|[^/]+/PKG-INFO)$`)

type handlers struct {
	logger *logrus.Logger
	cfg    *config.Config
	repo   pypi.Repository
	store  *cache.Store
}

func (h *handlers) home(c fiber.Ctx) error {
	return renderPage(c, "home", basePage{Title: "pypi browser"})
}

// search 只是把表单提交转成规范的 /package/<name> 地址。
func (h *handlers) search(c fiber.Ctx) error {
	pkg := strings.TrimSpace(string(c.Request().URI().QueryArgs().Peek("package")))
	if pkg == "" {
		return redirectTo(c, "/")
	}
	return redirectTo(c, "/package/"+url.PathEscape(pypi.Normalize(pkg)))
}

func (h *handlers) packageIndex(c fiber.Ctx) error {
	name := paramValue(c, "name")
	normalized := pypi.Normalize(name)
	if name != normalized {
		return redirectTo(c, "/package/"+url.PathEscape(normalized))
	}

	files, err := h.repo.FilesForPackage(requestContext(c), name)
	if err != nil {
		return h.renderFailure(c, err)
	}

	groups := groupByVersion(name, files)
	return renderPage(c, "package", packagePage{
		basePage:   basePage{Title: name},
		Package:    name,
		Versions:   groups,
		TotalFiles: len(files),
	})
}

func (h *handlers) packageFile(c fiber.Ctx) error {
	name := paramValue(c, "name")
	filename := paramValue(c, "filename")
	normalized := pypi.Normalize(name)
	if name != normalized {
		return redirectTo(c, "/package/"+url.PathEscape(normalized)+"/"+url.PathEscape(filename))
	}

	pkg, err := h.openPackage(c, name, filename)
	if err != nil {
		return h.renderFailure(c, err)
	}

	entries, err := pkg.Entries()
	if err != nil {
		return h.renderFailure(c, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })

	metadataPath, metadata := h.extractMetadata(pkg, entries)

	rows := make([]entryRow, len(entries))
	for i, entry := range entries {
		rows[i] = entryRow{
			Entry:     entry,
			HumanSize: humanSize(entry.Size),
			Link:      entryLink(name, filename, entry.Path),
		}
	}

	return renderPage(c, "package_file", packageFilePage{
		basePage:     basePage{Title: filename},
		Package:      name,
		Filename:     filename,
		IsTarball:    pkg.Format == packaging.FormatTar,
		Entries:      rows,
		MetadataPath: metadataPath,
		Metadata:     metadata,
	})
}

func (h *handlers) archiveEntry(c fiber.Ctx) error {
	name := paramValue(c, "name")
	filename := paramValue(c, "filename")
	entryPath := paramValue(c, "*")

	normalized := pypi.Normalize(name)
	if name != normalized {
		return redirectTo(c, entryLink(normalized, filename, entryPath))
	}

	pkg, err := h.openPackage(c, name, filename)
	if err != nil {
		return h.renderFailure(c, err)
	}

	entries, err := pkg.Entries()
	if err != nil {
		return h.renderFailure(c, err)
	}

	entry, ok := findEntry(entries, entryPath)
	if !ok {
		return h.renderFailure(c, packaging.EntryNotFoundError{Path: entryPath})
	}

	mimeType := mime.TypeByExtension(path.Ext(entry.Path))
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	if c.Request().URI().QueryArgs().Has("raw") {
		return h.transferRaw(c, pkg, entry, mimeType)
	}
	return h.renderEntry(c, pkg, name, filename, entry, mimeType)
}

// openPackage 把 (package, filename) 换成缓存路径并按后缀分类。
func (h *handlers) openPackage(c fiber.Ctx, name, filename string) (*packaging.Package, error) {
	archivePath, err := h.store.Resolve(requestContext(c), name, filename)
	if err != nil {
		return nil, err
	}
	return packaging.FromPath(archivePath)
}

// transferRaw 按 1 KiB 块原样转发归档成员，Content-Type 只在白名单内生效。
func (h *handlers) transferRaw(c fiber.Ctx, pkg *packaging.Package, entry packaging.Entry, mimeType string) error {
	reader, err := pkg.Open(entry.Path)
	if err != nil {
		return h.renderFailure(c, err)
	}
	defer reader.Close()

	contentType := "application/octet-stream"
	if hasPrefixIn(mimeType, mimeWhitelist) {
		contentType = mimeType
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, dispositionFor(entry.Path, mimeType))
	c.Response().Header.SetContentLength(int(entry.Size))
	c.Status(fiber.StatusOK)

	writer := c.Response().BodyWriter()
	buf := make([]byte, transferChunkSize)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, writeErr := writer.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			h.logger.WithError(readErr).
				WithFields(logrus.Fields{"action": "transfer_raw", "entry": entry.Path}).
				Warn("archive_read_failed")
			return readErr
		}
	}
}

// renderEntry 区分三种情况：可渲染文本、超长文本、二进制。
func (h *handlers) renderEntry(c fiber.Ctx, pkg *packaging.Package, name, filename string, entry packaging.Entry, mimeType string) error {
	reader, err := pkg.Open(entry.Path)
	if err != nil {
		return h.renderFailure(c, err)
	}
	firstChunk, err := io.ReadAll(io.LimitReader(reader, h.cfg.TextRenderLimit))
	closeErr := reader.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return h.renderFailure(c, err)
	}

	page := archiveEntryPage{
		basePage:  basePage{Title: entry.Path},
		Package:   name,
		Filename:  filename,
		EntryPath: entry.Path,
		IsTarball: pkg.Format == packaging.FormatTar,
		RawLink:   entryLink(name, filename, entry.Path) + "?raw",
		Metadata: []metadataField{
			{Key: "Size", Values: []string{humanSize(entry.Size)}},
			{Key: "Mimetype", Values: []string{mimeTypeOrUnknown(mimeType)}},
			{Key: "Mode", Values: []string{entry.Mode}},
		},
	}

	switch {
	case !isTextContent(firstChunk):
		page.CannotRenderError = "This file appears to be a binary."
	case entry.Size > h.cfg.TextRenderLimit:
		page.CannotRenderError = "This file is too long to display inline with syntax highlighting."
	default:
		rendered, err := highlight(entry.Path, string(firstChunk))
		if err != nil {
			return h.renderFailure(c, err)
		}
		page.RenderedText = rendered
	}

	return renderPage(c, "archive_entry", page)
}

// extractMetadata 在成员列表中寻找 wheel METADATA 或 sdist PKG-INFO 并解析
// 其 RFC 822 头部。找不到或解析失败都不是错误，页面照常渲染。
func (h *handlers) extractMetadata(pkg *packaging.Package, entries []packaging.Entry) (string, []metadataField) {
	for _, entry := range entries {
		if !metadataPattern.MatchString(entry.Path) || entry.Size > h.cfg.TextRenderLimit {
			continue
		}

		reader, err := pkg.Open(entry.Path)
		if err != nil {
			return "", nil
		}
		content, err := io.ReadAll(io.LimitReader(reader, h.cfg.TextRenderLimit))
		reader.Close()
		if err != nil {
			return "", nil
		}

		fields, err := parseMetadataHeaders(content)
		if err != nil {
			return entry.Path, nil
		}
		return entry.Path, fields
	}
	return "", nil
}

// renderFailure 把领域错误映射为面向用户的明文响应，其余错误记日志后返回 500。
func (h *handlers) renderFailure(c fiber.Ctx, err error) error {
	var notExist pypi.PackageDoesNotExistError
	if errors.As(err, &notExist) {
		return plainText(c, fiber.StatusNotFound,
			fmt.Sprintf("Package %q does not exist on PyPI.", notExist.Package))
	}

	var cannotFind cache.CannotFindFileError
	if errors.As(err, &cannotFind) {
		return plainText(c, fiber.StatusNotFound,
			fmt.Sprintf("File %q does not exist for package %q.", cannotFind.Filename, cannotFind.Package))
	}

	var unsupported packaging.UnsupportedTypeError
	if errors.As(err, &unsupported) {
		return plainText(c, fiber.StatusNotImplemented,
			"Sorry, this package type is not yet supported.")
	}

	var entryNotFound packaging.EntryNotFoundError
	if errors.As(err, &entryNotFound) {
		return plainText(c, fiber.StatusNotFound,
			fmt.Sprintf("Path %q does not exist in archive.", entryNotFound.Path))
	}

	h.logger.WithError(err).
		WithFields(logging.RequestFields("request_failed", RequestID(c))).
		Error("请求处理失败")
	return plainText(c, fiber.StatusInternalServerError, "Internal server error.")
}

func plainText(c fiber.Ctx, status int, body string) error {
	return c.Status(status).SendString(body)
}

func redirectTo(c fiber.Ctx, location string) error {
	return c.Redirect().Status(fiber.StatusFound).To(location)
}

// paramValue 读取路由参数并做一次 URL 解码，失败时退回原始值。
func paramValue(c fiber.Ctx, key string) string {
	raw := c.Params(key)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// requestContext 沿用 Fiber 请求自带的 context，缺省退回 Background。
func requestContext(c fiber.Ctx) context.Context {
	if ctx := c.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func findEntry(entries []packaging.Entry, entryPath string) (packaging.Entry, bool) {
	for _, entry := range entries {
		if entry.Path == entryPath {
			return entry, true
		}
	}
	return packaging.Entry{}, false
}

// entryLink 拼出单个成员的页面地址，逐段转义，保留路径分隔。
func entryLink(name, filename, entryPath string) string {
	link := "/package/" + url.PathEscape(name) + "/" + url.PathEscape(filename)
	for _, segment := range strings.Split(entryPath, "/") {
		link += "/" + url.PathEscape(segment)
	}
	return link
}

func hasPrefixIn(value string, prefixes []string) bool {
	if value == "" {
		return false
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}

// dispositionFor 决定内联展示还是下载：文本与白名单二进制内联，其余下载。
func dispositionFor(entryPath, mimeType string) string {
	if strings.HasPrefix(mimeType, "text/") || hasPrefixIn(mimeType, inlineMimeWhitelist) {
		return "inline"
	}
	return fmt.Sprintf("attachment; filename=%q", path.Base(entryPath))
}

func mimeTypeOrUnknown(mimeType string) string {
	if mimeType == "" {
		return "Unknown"
	}
	return mimeType
}
