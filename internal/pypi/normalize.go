package pypi

import (
	"errors"
	"regexp"
	"strings"
)

var normalizePattern = regexp.MustCompile(`[-_.]+`)

// Normalize 按 PEP 426/503 规则归一化包名：连续的 -_. 折叠为单个 -，再转小写。
// 幂等：Normalize(Normalize(x)) == Normalize(x)。
func Normalize(name string) string {
	return strings.ToLower(normalizePattern.ReplaceAllString(name, "-"))
}

// ErrNoVersion 表示无法从文件名中推断发行版本。
var ErrNoVersion = errors.New("cannot guess version from filename")

var archiveSuffixes = []string{".tar.gz", ".tar.bz2", ".tgz", ".tar", ".zip"}

// GuessVersion 尽力从发行文件名中提取版本号。wheel/egg 文件名带有固定的
// name-version-... 结构，取第二段即可；sdist 只能去掉归档后缀后取最后一个
// - 之后的部分。历史上 PyPI 接受过命名极其随意的包，解析失败由调用方跳过。
func GuessVersion(filename string) (string, error) {
	if strings.HasSuffix(filename, ".whl") || strings.HasSuffix(filename, ".egg") {
		parts := strings.Split(filename, "-")
		if len(parts) < 2 || parts[1] == "" {
			return "", ErrNoVersion
		}
		return parts[1], nil
	}

	stem := filename
	trimmed := false
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(stem, suffix) {
			stem = strings.TrimSuffix(stem, suffix)
			trimmed = true
			break
		}
	}
	if !trimmed {
		return "", ErrNoVersion
	}

	idx := strings.LastIndex(stem, "-")
	if idx < 0 || idx == len(stem)-1 {
		return "", ErrNoVersion
	}
	return stem[idx+1:], nil
}
