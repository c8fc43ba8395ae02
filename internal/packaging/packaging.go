// Package packaging 提供对本地已下载发行文件（wheel/sdist/egg）的统一归档视图：
// 按文件名后缀分类、列出归档成员、打开单个成员做顺序读取。zip 与 tar 两种
// 物理格式通过 Format 标签在各操作内 switch 分派，而不是为每种格式建类型。
package packaging

import (
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
)

// Type 表示 Python 发行格式。
type Type string

const (
	TypeWheel Type = "wheel"
	TypeSdist Type = "sdist"
	TypeEgg   Type = "egg"
)

// Format 表示物理归档格式。
type Format string

const (
	FormatZip Format = "zip"
	FormatTar Format = "tar"
)

// Entry 是归档内一个非目录成员的快照，列举时即时构造，不做持久化。
type Entry struct {
	Path string
	Size int64
	Mode string
}

// Package 是磁盘上的一个发行文件，分类只看文件名后缀，绝不嗅探内容。
type Package struct {
	Type   Type
	Format Format
	Path   string

	// filename 是 base64 解码后的原始发行文件名，tar 解压方式由它决定。
	filename string
}

// UnsupportedTypeError 表示文件名后缀不属于任何受支持的发行格式。
type UnsupportedTypeError struct {
	Filename string
}

func (e UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported package type: %s", e.Filename)
}

// EntryNotFoundError 表示归档内不存在指定路径的成员。
type EntryNotFoundError struct {
	Path string
}

func (e EntryNotFoundError) Error() string {
	return fmt.Sprintf("path %q does not exist in archive", e.Path)
}

// Classify 按后缀把发行文件划入 {wheel,sdist,egg} × {zip,tar}。
func Classify(filename string) (Type, Format, error) {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		return TypeWheel, FormatZip, nil
	case strings.HasSuffix(filename, ".zip"):
		return TypeSdist, FormatZip, nil
	case strings.HasSuffix(filename, ".egg"):
		return TypeEgg, FormatZip, nil
	case strings.HasSuffix(filename, ".tar"),
		strings.HasSuffix(filename, ".tar.gz"),
		strings.HasSuffix(filename, ".tgz"),
		strings.HasSuffix(filename, ".tar.bz2"):
		return TypeSdist, FormatTar, nil
	default:
		return "", "", UnsupportedTypeError{Filename: filename}
	}
}

// FromPath 从缓存路径构造 Package。缓存文件名是 base64url 编码的原始发行
// 文件名（见 internal/cache 的磁盘布局），先解码再分类。
func FromPath(path string) (*Package, error) {
	encoded := filepath.Base(path)
	decoded, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("解析缓存文件名失败: %w", err)
	}
	filename := string(decoded)

	packageType, format, err := Classify(filename)
	if err != nil {
		return nil, err
	}

	return &Package{
		Type:     packageType,
		Format:   format,
		Path:     path,
		filename: filename,
	}, nil
}

// Entries 枚举归档内全部非目录成员，顺序未定义，调用方自行排序。
func (p *Package) Entries() ([]Entry, error) {
	switch p.Format {
	case FormatZip:
		return zipEntries(p.Path)
	case FormatTar:
		return tarEntries(p.Path, p.filename)
	default:
		return nil, fmt.Errorf("unknown package format: %s", p.Format)
	}
}
