package packaging

import (
	"archive/zip"
	"fmt"
	"io"
	"strings"
)

func zipEntries(path string) ([]Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("打开 zip 归档失败: %w", err)
	}
	defer zr.Close()

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if isZipDir(f) {
			continue
		}
		entries = append(entries, Entry{
			Path: f.Name,
			Size: int64(f.UncompressedSize64),
			Mode: f.Mode().String(),
		})
	}
	return entries, nil
}

func isZipDir(f *zip.File) bool {
	return strings.HasSuffix(f.Name, "/") || f.Mode().IsDir()
}

// openZipEntry 打开单个成员。返回的 ReadCloser 关闭时会连同归档句柄一并
// 释放，并且只释放一次，任何错误路径都不会泄漏句柄。
func openZipEntry(path, entryPath string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("打开 zip 归档失败: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != entryPath || isZipDir(f) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("打开 zip 成员失败: %w", err)
		}
		return newEntryReader(rc, rc, zr), nil
	}

	zr.Close()
	return nil, EntryNotFoundError{Path: entryPath}
}
