package pypi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSimpleRepositoryParsesHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/simple/requests/" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Accept") == "" {
			t.Errorf("缺少 Accept 头")
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>
			<a href="../../packages/requests-2.31.0.tar.gz#sha256=abc">requests-2.31.0.tar.gz</a>
			<a href="https://files.example/requests-2.31.0-py3-none-any.whl">wheel</a>
		</body></html>`)
	}))
	defer server.Close()

	repo := &SimpleRepository{IndexURL: server.URL, Client: server.Client()}
	files, err := repo.FilesForPackage(context.Background(), "requests")
	if err != nil {
		t.Fatalf("files error: %v", err)
	}

	if got := files["requests-2.31.0.tar.gz"]; got != server.URL+"/packages/requests-2.31.0.tar.gz" {
		t.Fatalf("相对链接解析错误: %s", got)
	}
	if got := files["requests-2.31.0-py3-none-any.whl"]; got != "https://files.example/requests-2.31.0-py3-none-any.whl" {
		t.Fatalf("绝对链接应原样保留: %s", got)
	}
}

func TestSimpleRepositoryParsesJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.pypi.simple.v1+json")
		fmt.Fprint(w, `{"files": [
			{"filename": "pkg-1.0.tar.gz", "url": "https://files.example/pkg-1.0.tar.gz"},
			{"filename": "pkg-1.0-py3-none-any.whl", "url": "/packages/pkg-1.0-py3-none-any.whl"}
		]}`)
	}))
	defer server.Close()

	repo := &SimpleRepository{IndexURL: server.URL, Client: server.Client()}
	files, err := repo.FilesForPackage(context.Background(), "pkg")
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("预期 2 个文件，实际 %d", len(files))
	}
	if got := files["pkg-1.0-py3-none-any.whl"]; got != server.URL+"/packages/pkg-1.0-py3-none-any.whl" {
		t.Fatalf("JSON 相对链接解析错误: %s", got)
	}
}

func TestSimpleRepositoryResolvesAgainstRedirectTarget(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/simple/pkg/":
			http.Redirect(w, r, "/mirror/simple/pkg/", http.StatusFound)
		case "/mirror/simple/pkg/":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<a href="../files/pkg-1.0.tar.gz">pkg-1.0.tar.gz</a>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	repo := &SimpleRepository{IndexURL: server.URL, Client: server.Client()}
	files, err := repo.FilesForPackage(context.Background(), "pkg")
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	if got := files["pkg-1.0.tar.gz"]; got != server.URL+"/mirror/simple/files/pkg-1.0.tar.gz" {
		t.Fatalf("应按重定向后的最终 URL 解析相对链接: %s", got)
	}
}

func TestSimpleRepositoryPackageNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	repo := &SimpleRepository{IndexURL: server.URL, Client: server.Client()}
	_, err := repo.FilesForPackage(context.Background(), "ghost")
	var notExist PackageDoesNotExistError
	if !errors.As(err, &notExist) {
		t.Fatalf("预期 PackageDoesNotExistError，实际 %v", err)
	}
	if notExist.Package != "ghost" {
		t.Fatalf("错误应携带包名: %s", notExist.Package)
	}
}

func TestLegacyJSONRepositoryFlattensReleases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/pkg/json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"releases": {
			"1.0": [{"filename": "pkg-1.0.tar.gz", "url": "https://files.example/pkg-1.0.tar.gz"}],
			"2.0": [
				{"filename": "pkg-2.0.tar.gz", "url": "https://files.example/pkg-2.0.tar.gz"},
				{"filename": "pkg-2.0-py3-none-any.whl", "url": "/files/pkg-2.0-py3-none-any.whl"}
			]
		}}`)
	}))
	defer server.Close()

	repo := &LegacyJSONRepository{IndexURL: server.URL, Client: server.Client()}
	files, err := repo.FilesForPackage(context.Background(), "pkg")
	if err != nil {
		t.Fatalf("files error: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("预期拍平出 3 个文件，实际 %d", len(files))
	}
	if got := files["pkg-2.0-py3-none-any.whl"]; got != server.URL+"/files/pkg-2.0-py3-none-any.whl" {
		t.Fatalf("legacy 相对链接解析错误: %s", got)
	}
}

func TestLegacyJSONRepositoryPackageNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	repo := &LegacyJSONRepository{IndexURL: server.URL, Client: server.Client()}
	_, err := repo.FilesForPackage(context.Background(), "ghost")
	var notExist PackageDoesNotExistError
	if !errors.As(err, &notExist) {
		t.Fatalf("预期 PackageDoesNotExistError，实际 %v", err)
	}
}

func TestNewRepositorySelectsVariant(t *testing.T) {
	client := &http.Client{}
	simple := NewRepository(testConfig("simple"), client)
	if _, ok := simple.(*SimpleRepository); !ok {
		t.Fatalf("IndexAPI=simple 应返回 SimpleRepository，实际 %T", simple)
	}
	legacy := NewRepository(testConfig("legacy-json"), client)
	if _, ok := legacy.(*LegacyJSONRepository); !ok {
		t.Fatalf("IndexAPI=legacy-json 应返回 LegacyJSONRepository，实际 %T", legacy)
	}
}
