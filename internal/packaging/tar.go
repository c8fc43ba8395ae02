package packaging

import (
	"archive/tar"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// openTarball 打开归档文件并套上对应的解压层，返回 tar reader 与需要关闭的
// 底层句柄（按 defer 逆序关闭）。
func openTarball(path, filename string) (*tar.Reader, []io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("打开 tar 归档失败: %w", err)
	}

	closers := []io.Closer{f}
	var raw io.Reader = f
	switch {
	case strings.HasSuffix(filename, ".tar.gz"), strings.HasSuffix(filename, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("解压 gzip 失败: %w", err)
		}
		closers = append(closers, gz)
		raw = gz
	case strings.HasSuffix(filename, ".tar.bz2"):
		raw = bzip2.NewReader(f)
	}

	return tar.NewReader(raw), closers, nil
}

func tarEntries(path, filename string) ([]Entry, error) {
	tr, closers, err := openTarball(path, filename)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)

	var entries []Entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("读取 tar 归档失败: %w", err)
		}
		if hdr.FileInfo().IsDir() {
			continue
		}
		entries = append(entries, Entry{
			Path: hdr.Name,
			Size: hdr.Size,
			Mode: hdr.FileInfo().Mode().String(),
		})
	}
}

// openTarEntry 顺序扫描到目标成员后停住，后续读取即该成员的内容。
func openTarEntry(path, filename, entryPath string) (io.ReadCloser, error) {
	tr, closers, err := openTarball(path, filename)
	if err != nil {
		return nil, err
	}

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			closeAll(closers)
			return nil, EntryNotFoundError{Path: entryPath}
		}
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("读取 tar 归档失败: %w", err)
		}
		if hdr.Name == entryPath && !hdr.FileInfo().IsDir() {
			return newEntryReader(tr, closers...), nil
		}
	}
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
}
