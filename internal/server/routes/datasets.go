package routes

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/server"
)

// CacheInspector 查询数据集在磁盘上的状态，不触发下载。
type CacheInspector interface {
	Stat(route *server.DatasetRoute) (cache.Entry, error)
}

// RegisterDatasetRoutes 暴露 /-/datasets 诊断接口，供运维查询数据集声明与缓存状态。
func RegisterDatasetRoutes(app *fiber.App, registry *server.DatasetRegistry, inspector CacheInspector) {
	if app == nil || registry == nil || inspector == nil {
		return
	}

	app.Get("/-/datasets", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"datasets": encodeDatasets(registry.List(), inspector),
		})
	})

	app.Get("/-/datasets/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if name == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "dataset_name_required"})
		}
		route, ok := registry.Lookup(name)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "dataset_unknown"})
		}
		return c.JSON(encodeDataset(route, inspector))
	})
}

type datasetPayload struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	FileName  string `json:"file_name"`
	Digest    string `json:"digest,omitempty"`
	Size      int64  `json:"expected_size,omitempty"`
	State     string `json:"state"`
	Path      string `json:"path,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   string `json:"mod_time,omitempty"`
	Error     string `json:"error,omitempty"`
}

func encodeDatasets(routes []*server.DatasetRoute, inspector CacheInspector) []datasetPayload {
	if len(routes) == 0 {
		return nil
	}
	result := make([]datasetPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, encodeDataset(route, inspector))
	}
	return result
}

func encodeDataset(route *server.DatasetRoute, inspector CacheInspector) datasetPayload {
	payload := datasetPayload{
		Name:     route.Config.Name,
		Source:   route.Config.Source,
		FileName: route.FileName,
		Digest:   route.Checksum.Digest.String(),
		Size:     route.Checksum.Size,
	}

	entry, err := inspector.Stat(route)
	if err != nil {
		payload.State = "unknown"
		payload.Error = err.Error()
		return payload
	}
	payload.State = string(entry.State)
	payload.Path = entry.FilePath
	payload.SizeBytes = entry.SizeBytes
	if !entry.ModTime.IsZero() {
		payload.ModTime = entry.ModTime.UTC().Format(time.RFC3339Nano)
	}
	return payload
}
