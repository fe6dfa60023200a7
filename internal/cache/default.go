package cache

import (
	"context"
	"sync"
)

var defaultCache = sync.OnceValue(func() *Cache { return New() })

// Default 返回进程级共享的 Cache，使用默认依赖与默认命名空间。
func Default() *Cache {
	return defaultCache()
}

// MaybeDownload 使用默认 Cache 确保 source 已缓存，cacheDir 为空时写入 ~/.cache/fedjax。
func MaybeDownload(ctx context.Context, source, cacheDir string) (string, error) {
	return Default().EnsureLocal(ctx, source, cacheDir)
}
