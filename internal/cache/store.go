package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pypi-browser/pypi-browser/internal/logging"
	"github.com/pypi-browser/pypi-browser/internal/pypi"
)

// CannotFindFileError 表示索引里存在该包，但不存在请求的发行文件。
type CannotFindFileError struct {
	Package  string
	Filename string
}

func (e CannotFindFileError) Error() string {
	return fmt.Sprintf("file %q does not exist for package %q", e.Filename, e.Package)
}

// Store 管理下载缓存目录，整个进程复用一份实例。
type Store struct {
	basePath string
	repo     pypi.Repository
	client   *http.Client
	logger   *logrus.Logger

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore 以 basePath 为根目录构建下载缓存，目录不存在时创建。
func NewStore(basePath string, repo pypi.Repository, client *http.Client, logger *logrus.Logger) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("cache path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache path: %w", err)
	}

	return &Store{
		basePath: abs,
		repo:     repo,
		client:   client,
		logger:   logger,
		locks:    make(map[string]*entryLock),
	}, nil
}

// EntryPath 返回 (package, filename) 的确定性缓存路径。两段名字各自做
// base64url 编码，从根上排除路径穿越。
func (s *Store) EntryPath(pkg, filename string) string {
	return filepath.Join(
		s.basePath,
		base64.URLEncoding.EncodeToString([]byte(pkg)),
		base64.URLEncoding.EncodeToString([]byte(filename)),
	)
}

// Resolve 返回发行文件的本地路径：命中直接返回；未命中则查询索引取下载
// 地址，流式写入临时文件后原子 rename 到位。同一条目的并发冷请求由
// per-entry 锁串行化，后到者在锁内二次检查后直接命中，不重复下载。
func (s *Store) Resolve(ctx context.Context, pkg, filename string) (string, error) {
	entryPath := s.EntryPath(pkg, filename)
	if fileExists(entryPath) {
		s.logger.WithFields(logging.PackageFields(pkg, filename, true)).Debug("cache_hit")
		return entryPath, nil
	}

	unlock := s.lockEntry(pkg + "::" + filename)
	defer unlock()

	// 等锁期间其他请求可能已经完成下载。
	if fileExists(entryPath) {
		s.logger.WithFields(logging.PackageFields(pkg, filename, true)).Debug("cache_hit")
		return entryPath, nil
	}

	files, err := s.repo.FilesForPackage(ctx, pkg)
	if err != nil {
		return "", err
	}
	url, ok := files[filename]
	if !ok {
		return "", CannotFindFileError{Package: pkg, Filename: filename}
	}

	if err := s.download(ctx, url, entryPath); err != nil {
		s.logger.WithError(err).
			WithFields(logging.PackageFields(pkg, filename, false)).
			Warn("download_failed")
		return "", err
	}

	s.logger.WithFields(logging.PackageFields(pkg, filename, false)).Info("downloaded")
	return entryPath, nil
}

// download 把 url 的响应体写入 entryPath。临时文件建在目标目录内，保证
// rename 不跨文件系统；任何失败路径都会清理临时文件，缓存永远不会暴露
// 半成品。
func (s *Store) download(ctx context.Context, url, entryPath string) error {
	if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("下载返回异常状态 %d: %s", resp.StatusCode, url)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(entryPath), ".download-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, resp.Body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, entryPath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

func (s *Store) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
