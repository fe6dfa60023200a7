package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/logging"
)

// Handler 负责 “按名称确保数据集已缓存 → 流式返回文件” 的流程。
// 同一数据集的并发请求通过 singleflight 共享一次下载。
type Handler struct {
	cache       *cache.Cache
	cacheDir    string
	verifyOnHit bool
	logger      *logrus.Logger
	group       singleflight.Group
}

// HandlerOptions 汇总 Handler 的依赖。
type HandlerOptions struct {
	Cache       *cache.Cache
	CacheDir    string
	VerifyOnHit bool
	Logger      *logrus.Logger
}

// NewHandler constructs a dataset handler sharing one cache and logger.
func NewHandler(opts HandlerOptions) *Handler {
	c := opts.Cache
	if c == nil {
		c = cache.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		cache:       c,
		cacheDir:    opts.CacheDir,
		verifyOnHit: opts.VerifyOnHit,
		logger:      logger,
	}
}

// Stat reports the on-disk state of a dataset without downloading it.
func (h *Handler) Stat(route *DatasetRoute) (cache.Entry, error) {
	return h.cache.Stat(route.Config.Source, h.cacheDir)
}

// Handle ensures the dataset is cached and streams it. HEAD requests only
// report the current cache state and never trigger a download.
func (h *Handler) Handle(c fiber.Ctx, route *DatasetRoute) error {
	started := time.Now()
	requestID := RequestID(c)

	if c.Method() == http.MethodHead {
		return h.headDataset(c, route, requestID, started)
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entry, shared, err := h.ensure(ctx, route)
	if err != nil {
		h.logResult(route, requestID, nil, shared, started, err)
		return h.writeError(c, err)
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		h.logResult(route, requestID, entry, shared, started, err)
		return h.writeError(c, &cache.FilesystemError{Op: "open", Path: entry.FilePath, Err: err})
	}

	h.setEntryHeaders(c, entry, requestID)
	c.Status(fiber.StatusOK)
	h.logResult(route, requestID, entry, shared, started, nil)
	// fasthttp 在响应写完后关闭 f。
	return c.SendStream(f, int(entry.SizeBytes))
}

func (h *Handler) headDataset(c fiber.Ctx, route *DatasetRoute, requestID string, started time.Time) error {
	entry, err := h.Stat(route)
	if err != nil {
		h.logResult(route, requestID, nil, false, started, err)
		return h.writeError(c, err)
	}
	c.Set("X-Fedcache-State", string(entry.State))
	if entry.State != cache.StatePresent {
		return c.SendStatus(fiber.StatusNotFound)
	}
	entry.CacheHit = true
	h.setEntryHeaders(c, &entry, requestID)
	c.Response().Header.SetContentLength(int(entry.SizeBytes))
	c.Status(fiber.StatusOK)
	h.logResult(route, requestID, &entry, false, started, nil)
	return nil
}

// ensure 以数据集名称为 key 合并并发请求；共享下载不随单个请求取消。
func (h *Handler) ensure(ctx context.Context, route *DatasetRoute) (*cache.Entry, bool, error) {
	result, err, shared := h.group.Do(route.Config.Name, func() (any, error) {
		return h.cache.Ensure(context.WithoutCancel(ctx), cache.Request{
			Source:      route.Config.Source,
			CacheDir:    h.cacheDir,
			Expected:    route.Checksum,
			VerifyOnHit: h.verifyOnHit,
		})
	})
	if err != nil {
		return nil, shared, err
	}
	entry, _ := result.(*cache.Entry)
	if entry == nil {
		return nil, shared, errors.New("empty cache entry")
	}
	return entry, shared, nil
}

func (h *Handler) setEntryHeaders(c fiber.Ctx, entry *cache.Entry, requestID string) {
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set("X-Fedcache-Cache-Hit", strconv.FormatBool(entry.CacheHit))
	if !entry.ModTime.IsZero() {
		c.Set(fiber.HeaderLastModified, entry.ModTime.UTC().Format(http.TimeFormat))
	}
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (h *Handler) writeError(c fiber.Ctx, err error) error {
	status, code := classifyError(err)
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": err.Error(),
	})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, cache.ErrChecksumMismatch):
		return fiber.StatusBadGateway, "checksum_mismatch"
	case errors.Is(err, cache.ErrDownload):
		return fiber.StatusBadGateway, "download_failed"
	case errors.Is(err, cache.ErrFilesystem):
		return fiber.StatusInternalServerError, "cache_unavailable"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) logResult(route *DatasetRoute, requestID string, entry *cache.Entry, shared bool, started time.Time, err error) {
	path, cacheHit := "", false
	if entry != nil {
		path, cacheHit = entry.FilePath, entry.CacheHit
	}
	fields := logging.RequestFields(route.Config.Name, requestID, route.Config.Source, path, cacheHit)
	fields["action"] = "dataset_request"
	fields["shared"] = shared
	fields["elapsed_ms"] = time.Since(started).Milliseconds()

	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("dataset_request_failed")
		return
	}
	h.logger.WithFields(fields).Info("dataset_request_complete")
}
