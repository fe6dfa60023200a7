package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrDownload 可用 errors.Is 匹配任意 *DownloadError。
	ErrDownload = errors.New("download failed")
	// ErrFilesystem 可用 errors.Is 匹配任意 *FilesystemError。
	ErrFilesystem = errors.New("cache filesystem error")

	// ErrInvalidSource 表示 source 为空或无法得出文件名。
	ErrInvalidSource = errors.New("invalid download source")
	// ErrInvalidChecksum 表示期望的摘要格式不合法。
	ErrInvalidChecksum = errors.New("invalid checksum")
	// ErrChecksumMismatch 表示下载内容与期望的摘要或长度不符。
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrNotRegularFile 表示缓存路径被目录或其他非普通文件占用。
	ErrNotRegularFile = errors.New("not a regular file")
)

// DownloadError 表示网络传输失败、非 2xx 响应或内容校验失败。
type DownloadError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.Source, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrDownload) 对所有 DownloadError 成立。
func (e *DownloadError) Is(target error) bool {
	return target == ErrDownload
}

// FilesystemError 表示缓存目录创建、写入或 rename 失败。
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrFilesystem) 对所有 FilesystemError 成立。
func (e *FilesystemError) Is(target error) bool {
	return target == ErrFilesystem
}

// writeError 标记 copyWithContext 中来自目标 Writer 的错误，便于区分读写两侧。
type writeError struct {
	err error
}

func (e writeError) Error() string { return e.err.Error() }

func (e writeError) Unwrap() error { return e.err }
