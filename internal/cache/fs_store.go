package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Cache 负责把远端数据集下载到本地缓存目录，并通过 entryLock 避免同一进程内并发写入同一条目。
type Cache struct {
	client    *http.Client
	logger    *logrus.Logger
	namespace string
	homeDir   func() (string, error)

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Option 用于定制 Cache 的依赖。
type Option func(*Cache)

// WithHTTPClient 注入下载使用的 http.Client。
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithLogger 注入结构化日志实例。
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithNamespace 设置默认缓存目录 ~/.cache/<namespace> 的子目录名。
func WithNamespace(namespace string) Option {
	return func(c *Cache) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithHomeDir 替换用户目录的解析方式，主要用于测试。
func WithHomeDir(fn func() (string, error)) Option {
	return func(c *Cache) {
		if fn != nil {
			c.homeDir = fn
		}
	}
}

// New 构建 Cache；未注入的依赖使用 http.DefaultClient、logrus 标准 logger 与 os.UserHomeDir。
func New(opts ...Option) *Cache {
	c := &Cache{
		client:    http.DefaultClient,
		logger:    logrus.StandardLogger(),
		namespace: DefaultNamespace,
		homeDir:   os.UserHomeDir,
		locks:     make(map[string]*entryLock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Namespace 返回默认缓存目录使用的子目录名。
func (c *Cache) Namespace() string {
	return c.namespace
}

// Dir 返回 cacheDir 解析后的目录，空值回退到默认目录。
func (c *Cache) Dir(cacheDir string) (string, error) {
	return resolveDir(cacheDir, c.namespace, c.homeDir)
}

// EnsureLocal 保证 source 在 cacheDir 下有一份完整的本地副本并返回其路径。
// 最终文件已存在时直接返回，不访问网络，也不重新校验内容。
func (c *Cache) EnsureLocal(ctx context.Context, source, cacheDir string) (string, error) {
	entry, err := c.Ensure(ctx, Request{Source: source, CacheDir: cacheDir})
	if err != nil {
		return "", err
	}
	return entry.FilePath, nil
}

// Ensure 是 EnsureLocal 的完整形式，支持可选的内容校验并返回条目详情。
func (c *Cache) Ensure(ctx context.Context, req Request) (*Entry, error) {
	dir, err := c.Dir(req.CacheDir)
	if err != nil {
		return nil, err
	}
	finalPath, partialPath, err := Paths(req.Source, dir)
	if err != nil {
		return nil, err
	}
	check, err := newVerifier(req.Expected)
	if err != nil {
		return nil, err
	}

	if entry, ok, err := c.lookup(req, finalPath, partialPath); ok || err != nil {
		return entry, err
	}

	unlock := c.lockEntry(finalPath)
	defer unlock()

	// 等锁期间可能已有其他调用完成下载。
	if entry, ok, err := c.lookup(req, finalPath, partialPath); ok || err != nil {
		return entry, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	return c.download(ctx, req.Source, finalPath, partialPath, check)
}

// Stat 报告条目当前的磁盘状态，不访问网络。
func (c *Cache) Stat(source, cacheDir string) (Entry, error) {
	dir, err := c.Dir(cacheDir)
	if err != nil {
		return Entry{}, err
	}
	finalPath, partialPath, err := Paths(source, dir)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{Source: source, FilePath: finalPath, PartialPath: partialPath, State: StateAbsent}
	info, err := statRegular(finalPath)
	switch {
	case err == nil:
		entry.State = StatePresent
		entry.SizeBytes = info.Size()
		entry.ModTime = info.ModTime()
		return entry, nil
	case !errors.Is(err, fs.ErrNotExist):
		return Entry{}, err
	}

	info, err = statRegular(partialPath)
	switch {
	case err == nil:
		entry.State = StatePartial
		entry.SizeBytes = info.Size()
		entry.ModTime = info.ModTime()
	case !errors.Is(err, fs.ErrNotExist):
		return Entry{}, err
	}
	return entry, nil
}

// Remove 删除最终文件与残留的 partial 文件，条目不存在时不报错。
func (c *Cache) Remove(source, cacheDir string) error {
	dir, err := c.Dir(cacheDir)
	if err != nil {
		return err
	}
	finalPath, partialPath, err := Paths(source, dir)
	if err != nil {
		return err
	}

	unlock := c.lockEntry(finalPath)
	defer unlock()

	for _, p := range []string{finalPath, partialPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &FilesystemError{Op: "remove", Path: p, Err: err}
		}
	}
	return nil
}

// lookup 实现快路径：最终文件存在即视为命中。
func (c *Cache) lookup(req Request, finalPath, partialPath string) (*Entry, bool, error) {
	info, err := statRegular(finalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if req.VerifyOnHit && !req.Expected.IsZero() {
		if err := verifyFile(finalPath, req.Expected); err != nil {
			return nil, false, fmt.Errorf("verify cached %s: %w", finalPath, err)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"action":    "cache_lookup",
		"source":    req.Source,
		"path":      finalPath,
		"cache_hit": true,
	}).Debug("cache_hit")

	return &Entry{
		Source:      req.Source,
		FilePath:    finalPath,
		PartialPath: partialPath,
		State:       StatePresent,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime(),
		CacheHit:    true,
	}, true, nil
}

func (c *Cache) download(ctx context.Context, source, finalPath, partialPath string, check *verifier) (*Entry, error) {
	started := time.Now()
	downloadID := uuid.NewString()
	fields := logrus.Fields{
		"action":      "download",
		"download_id": downloadID,
		"source":      source,
		"path":        finalPath,
	}

	written, err := c.fetchToPartial(ctx, source, partialPath, check)
	if err != nil {
		c.logger.WithFields(fields).WithError(err).
			WithField("elapsed_ms", time.Since(started).Milliseconds()).
			Warn("download_failed")
		return nil, err
	}

	if err := os.Rename(partialPath, finalPath); err != nil {
		return nil, &FilesystemError{Op: "rename", Path: finalPath, Err: err}
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, &FilesystemError{Op: "stat", Path: finalPath, Err: err}
	}

	fields["bytes"] = written
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	c.logger.WithFields(fields).Info("download_complete")

	return &Entry{
		Source:      source,
		FilePath:    finalPath,
		PartialPath: partialPath,
		State:       StatePresent,
		SizeBytes:   info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// fetchToPartial 发起单次 GET 并把正文顺序写入 partial 文件。残留的 partial 文件会被截断覆盖，
// 传输失败时保留 partial 文件，由下一次调用覆盖。
func (c *Cache) fetchToPartial(ctx context.Context, source, partialPath string, check *verifier) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return 0, &DownloadError{Source: source, Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, &DownloadError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, &DownloadError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %q", resp.Status),
		}
	}

	f, err := os.OpenFile(partialPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &FilesystemError{Op: "create", Path: partialPath, Err: err}
	}

	var dst io.Writer = f
	if check != nil {
		dst = io.MultiWriter(f, check)
	}

	written, err := copyWithContext(ctx, dst, resp.Body)
	if err == nil {
		err = f.Sync()
		if err != nil {
			err = writeError{err: err}
		}
	}
	closeErr := f.Close()
	if err == nil && closeErr != nil {
		err = writeError{err: closeErr}
	}
	if err != nil {
		var wErr writeError
		if errors.As(err, &wErr) {
			return written, &FilesystemError{Op: "write", Path: partialPath, Err: wErr.err}
		}
		return written, &DownloadError{Source: source, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return written, &DownloadError{
			Source:     source,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("short body: got %d of %d bytes: %w", written, resp.ContentLength, io.ErrUnexpectedEOF),
		}
	}

	if check != nil {
		if err := check.verify(written); err != nil {
			// 内容完整但不可信，不保留给下一次调用。
			os.Remove(partialPath)
			return written, &DownloadError{Source: source, StatusCode: resp.StatusCode, Err: err}
		}
	}
	return written, nil
}

func (c *Cache) lockEntry(key string) func() {
	c.mu.Lock()
	lock := c.locks[key]
	if lock == nil {
		lock = &entryLock{}
		c.locks[key] = lock
	}
	lock.refs++
	c.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		c.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(c.locks, key)
		}
		c.mu.Unlock()
	}
}

func statRegular(p string) (fs.FileInfo, error) {
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, &FilesystemError{Op: "stat", Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &FilesystemError{Op: "stat", Path: p, Err: ErrNotRegularFile}
	}
	return info, nil
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
				return copied, writeError{err: wErr}
			}
			if w < n {
				return copied, writeError{err: io.ErrShortWrite}
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
