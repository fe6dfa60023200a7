package cache

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultNamespace 是默认缓存目录 ~/.cache/<namespace> 中的子目录名。
	DefaultNamespace = "fedjax"
	// PartialSuffix 追加在最终路径之后，标记下载中的临时文件。
	PartialSuffix = ".partial"
)

// DefaultDir 返回 <home>/.cache/<namespace>，是输入的纯函数。
func DefaultDir(home, namespace string) string {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return filepath.Join(home, ".cache", namespace)
}

// ResolveDir 在 dir 为空时回退到当前用户的默认缓存目录。
func ResolveDir(dir, namespace string) (string, error) {
	return resolveDir(dir, namespace, os.UserHomeDir)
}

func resolveDir(dir, namespace string, homeDir func() (string, error)) (string, error) {
	if dir != "" {
		return filepath.Clean(dir), nil
	}
	home, err := homeDir()
	if err != nil {
		return "", &FilesystemError{Op: "resolve", Path: "~", Err: err}
	}
	return DefaultDir(home, namespace), nil
}

// Basename 取 source URL 转义形式路径的最后一段作为缓存文件名，忽略 query 与 fragment。
// %2F 等转义保持原样，以 / 结尾的路径没有文件名。
func Basename(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", fmt.Errorf("%w: empty source", ErrInvalidSource)
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}

	raw := u.EscapedPath()
	if u.Opaque != "" {
		raw = u.Opaque
	}
	name := raw[strings.LastIndex(raw, "/")+1:]
	if name == "" || name == "." || name == ".." || strings.HasSuffix(name, PartialSuffix) {
		return "", fmt.Errorf("%w: no file name in %q", ErrInvalidSource, source)
	}
	return name, nil
}

// Paths 返回 source 在 dir 下的最终路径与 partial 路径。
func Paths(source, dir string) (finalPath, partialPath string, err error) {
	name, err := Basename(source)
	if err != nil {
		return "", "", err
	}
	finalPath = filepath.Join(dir, name)
	return finalPath, finalPath + PartialSuffix, nil
}
