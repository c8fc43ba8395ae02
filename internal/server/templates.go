package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/gofiber/fiber/v3"

	"github.com/pypi-browser/pypi-browser/internal/packaging"
	"github.com/pypi-browser/pypi-browser/internal/version"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/style.css
var stylesheet []byte

// pageTemplates 在进程启动时解析完毕，页面名 -> 渲染好的模板。
var pageTemplates = mustParseTemplates("home", "package", "package_file", "archive_entry")

func mustParseTemplates(names ...string) map[string]*template.Template {
	funcs := template.FuncMap{
		"appVersion": version.Full,
		"pluralize":  func(word string, count int) string { return pluralize(word, int64(count)) },
	}
	parsed := make(map[string]*template.Template, len(names))
	for _, name := range names {
		parsed[name] = template.Must(
			template.New("base.html").Funcs(funcs).
				ParseFS(templatesFS, "templates/base.html", "templates/"+name+".html"))
	}
	return parsed
}

type basePage struct {
	Title string
}

type packagePage struct {
	basePage
	Package    string
	Versions   []versionGroup
	TotalFiles int
}

type entryRow struct {
	packaging.Entry
	HumanSize string
	Link      string
}

type packageFilePage struct {
	basePage
	Package      string
	Filename     string
	IsTarball    bool
	Entries      []entryRow
	MetadataPath string
	Metadata     []metadataField
}

type archiveEntryPage struct {
	basePage
	Package           string
	Filename          string
	EntryPath         string
	IsTarball         bool
	RawLink           string
	Metadata          []metadataField
	RenderedText      template.HTML
	CannotRenderError string
}

// renderPage 先渲染到内存再写响应，模板出错时不会吐出半个页面。
func renderPage(c fiber.Ctx, name string, data any) error {
	tpl, ok := pageTemplates[name]
	if !ok {
		return fmt.Errorf("未注册的页面模板: %s", name)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("渲染页面 %s 失败: %w", name, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(fiber.StatusOK).Send(buf.Bytes())
}

func serveStylesheet(c fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/css; charset=utf-8")
	return c.Status(fiber.StatusOK).Send(stylesheet)
}
