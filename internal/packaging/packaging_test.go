package packaging

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestClassifyPartitionsSuffixes(t *testing.T) {
	cases := []struct {
		filename string
		pkgType  Type
		format   Format
	}{
		{"requests-2.31.0-py3-none-any.whl", TypeWheel, FormatZip},
		{"requests-2.31.0.zip", TypeSdist, FormatZip},
		{"pytz-2004d-py2.3.egg", TypeEgg, FormatZip},
		{"requests-2.31.0.tar", TypeSdist, FormatTar},
		{"requests-2.31.0.tar.gz", TypeSdist, FormatTar},
		{"requests-2.31.0.tgz", TypeSdist, FormatTar},
		{"requests-2.31.0.tar.bz2", TypeSdist, FormatTar},
	}
	for _, tc := range cases {
		pkgType, format, err := Classify(tc.filename)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", tc.filename, err)
		}
		if pkgType != tc.pkgType || format != tc.format {
			t.Fatalf("Classify(%q) = %s/%s，预期 %s/%s", tc.filename, pkgType, format, tc.pkgType, tc.format)
		}
	}
}

func TestClassifyRejectsUnknownSuffix(t *testing.T) {
	for _, filename := range []string{"pkg-1.0.rpm", "pkg-1.0.tar.xz", "README", "pkg.whl.bak"} {
		_, _, err := Classify(filename)
		var unsupported UnsupportedTypeError
		if !errors.As(err, &unsupported) {
			t.Fatalf("Classify(%q) 应返回 UnsupportedTypeError，实际 %v", filename, err)
		}
		if unsupported.Filename != filename {
			t.Fatalf("错误应携带文件名: %s", unsupported.Filename)
		}
	}
}

func TestFromPathRejectsBadBasename(t *testing.T) {
	if _, err := FromPath("/cache/pkg/!!!not-base64!!!"); err == nil {
		t.Fatalf("非 base64 文件名应失败")
	}
}

func TestZipEntriesMatchFixture(t *testing.T) {
	path := writeZipFixture(t, "pkg-1.0-py3-none-any.whl")

	pkg, err := FromPath(path)
	if err != nil {
		t.Fatalf("from path error: %v", err)
	}
	if pkg.Type != TypeWheel || pkg.Format != FormatZip {
		t.Fatalf("分类错误: %s/%s", pkg.Type, pkg.Format)
	}

	entries, err := pkg.Entries()
	if err != nil {
		t.Fatalf("entries error: %v", err)
	}

	expected := []Entry{
		{Path: "pkg-1.0.dist-info/METADATA", Size: int64(len(wheelMetadata)), Mode: "-rw-r--r--"},
		{Path: "pkg/__init__.py", Size: int64(len(initSource)), Mode: "-rw-r--r--"},
	}
	assertEntriesEqual(t, entries, expected)
}

func TestTarEntriesMatchFixture(t *testing.T) {
	for _, filename := range []string{"pkg-1.0.tar", "pkg-1.0.tar.gz", "pkg-1.0.tgz"} {
		path := writeTarFixture(t, filename)

		pkg, err := FromPath(path)
		if err != nil {
			t.Fatalf("from path %q error: %v", filename, err)
		}
		if pkg.Type != TypeSdist || pkg.Format != FormatTar {
			t.Fatalf("分类错误: %s/%s", pkg.Type, pkg.Format)
		}

		entries, err := pkg.Entries()
		if err != nil {
			t.Fatalf("entries %q error: %v", filename, err)
		}

		expected := []Entry{
			{Path: "pkg-1.0/PKG-INFO", Size: int64(len(wheelMetadata)), Mode: "-rw-r--r--"},
			{Path: "pkg-1.0/setup.py", Size: int64(len(initSource)), Mode: "-rwxr-xr-x"},
		}
		assertEntriesEqual(t, entries, expected)
	}
}

func TestOpenZipEntryStreamsContent(t *testing.T) {
	path := writeZipFixture(t, "pkg-1.0-py3-none-any.whl")
	pkg, err := FromPath(path)
	if err != nil {
		t.Fatalf("from path error: %v", err)
	}

	reader, err := pkg.Open("pkg/__init__.py")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(content) != initSource {
		t.Fatalf("成员内容不一致: %q", content)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("重复 Close 应为空操作: %v", err)
	}
}

func TestOpenTarEntryStreamsContent(t *testing.T) {
	path := writeTarFixture(t, "pkg-1.0.tar.gz")
	pkg, err := FromPath(path)
	if err != nil {
		t.Fatalf("from path error: %v", err)
	}

	reader, err := pkg.Open("pkg-1.0/setup.py")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(content) != initSource {
		t.Fatalf("成员内容不一致: %q", content)
	}
}

func TestOpenMissingEntry(t *testing.T) {
	path := writeZipFixture(t, "pkg-1.0-py3-none-any.whl")
	pkg, err := FromPath(path)
	if err != nil {
		t.Fatalf("from path error: %v", err)
	}

	_, err = pkg.Open("no/such/file.py")
	var notFound EntryNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("预期 EntryNotFoundError，实际 %v", err)
	}
	if notFound.Path != "no/such/file.py" {
		t.Fatalf("错误应携带成员路径: %s", notFound.Path)
	}
}

func TestChunkedReadsEqualFullRead(t *testing.T) {
	path := writeTarFixture(t, "pkg-1.0.tar.gz")
	pkg, err := FromPath(path)
	if err != nil {
		t.Fatalf("from path error: %v", err)
	}

	reader, err := pkg.Open("pkg-1.0/PKG-INFO")
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	defer reader.Close()

	var assembled bytes.Buffer
	buf := make([]byte, 7)
	for {
		n, err := reader.Read(buf)
		assembled.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("chunked read error: %v", err)
		}
	}
	if assembled.String() != wheelMetadata {
		t.Fatalf("分块读取结果与完整内容不一致")
	}
}

const (
	wheelMetadata = "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n"
	initSource    = "__version__ = '1.0'\n"
)

// fixturePath 按缓存磁盘布局返回 base64url 文件名的落盘路径。
func fixturePath(t *testing.T, filename string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), base64.URLEncoding.EncodeToString([]byte(filename)))
}

func writeZipFixture(t *testing.T, filename string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	writeZipMember(t, zw, "pkg/__init__.py", initSource, 0o644)
	writeZipMember(t, zw, "pkg-1.0.dist-info/METADATA", wheelMetadata, 0o644)
	if _, err := zw.Create("pkg/"); err != nil {
		t.Fatalf("写入目录成员失败: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭 zip 失败: %v", err)
	}

	path := fixturePath(t, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 fixture 失败: %v", err)
	}
	return path
}

func writeZipMember(t *testing.T, zw *zip.Writer, name, content string, mode os.FileMode) {
	t.Helper()
	header := &zip.FileHeader{Name: name, Method: zip.Deflate}
	header.SetMode(mode)
	w, err := zw.CreateHeader(header)
	if err != nil {
		t.Fatalf("创建 zip 成员失败: %v", err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatalf("写入 zip 成员失败: %v", err)
	}
}

func writeTarFixture(t *testing.T, filename string) string {
	t.Helper()
	var buf bytes.Buffer
	var target io.Writer = &buf
	var gz *gzip.Writer
	switch filepath.Ext(filename) {
	case ".gz", ".tgz":
		gz = gzip.NewWriter(&buf)
		target = gz
	}

	tw := tar.NewWriter(target)
	writeTarMember(t, tw, "pkg-1.0/", "", 0o755, tar.TypeDir)
	writeTarMember(t, tw, "pkg-1.0/PKG-INFO", wheelMetadata, 0o644, tar.TypeReg)
	writeTarMember(t, tw, "pkg-1.0/setup.py", initSource, 0o755, tar.TypeReg)
	if err := tw.Close(); err != nil {
		t.Fatalf("关闭 tar 失败: %v", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			t.Fatalf("关闭 gzip 失败: %v", err)
		}
	}

	path := fixturePath(t, filename)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入 fixture 失败: %v", err)
	}
	return path
}

func writeTarMember(t *testing.T, tw *tar.Writer, name, content string, mode int64, typeflag byte) {
	t.Helper()
	hdr := &tar.Header{
		Name:     name,
		Mode:     mode,
		Size:     int64(len(content)),
		Typeflag: typeflag,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatalf("写入 tar 头失败: %v", err)
	}
	if content != "" {
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatalf("写入 tar 成员失败: %v", err)
		}
	}
}

func assertEntriesEqual(t *testing.T, got, expected []Entry) {
	t.Helper()
	sort.Slice(got, func(i, j int) bool { return got[i].Path < got[j].Path })
	sort.Slice(expected, func(i, j int) bool { return expected[i].Path < expected[j].Path })
	if len(got) != len(expected) {
		t.Fatalf("成员数量不一致: %d vs %d\n%v", len(got), len(expected), got)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("成员 #%d 不一致: %+v vs %+v", i, got[i], expected[i])
		}
	}
}
