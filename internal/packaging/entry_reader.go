package packaging

import (
	"fmt"
	"io"
	"sync"
)

// Open 打开一个成员做顺序读取。单次 Open 可同时服务限长预览与整文件传输，
// 调用方负责 Close；Close 幂等，一次性释放成员与归档两级句柄。
func (p *Package) Open(entryPath string) (io.ReadCloser, error) {
	switch p.Format {
	case FormatZip:
		return openZipEntry(p.Path, entryPath)
	case FormatTar:
		return openTarEntry(p.Path, p.filename, entryPath)
	default:
		return nil, fmt.Errorf("unknown package format: %s", p.Format)
	}
}

type entryReader struct {
	reader  io.Reader
	closers []io.Closer
	once    sync.Once
}

func newEntryReader(reader io.Reader, closers ...io.Closer) io.ReadCloser {
	return &entryReader{reader: reader, closers: closers}
}

func (r *entryReader) Read(p []byte) (int, error) {
	return r.reader.Read(p)
}

// Close 逆序关闭所有底层句柄，重复调用是空操作。
func (r *entryReader) Close() error {
	var firstErr error
	r.once.Do(func() {
		for i := len(r.closers) - 1; i >= 0; i-- {
			if err := r.closers[i].Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}
