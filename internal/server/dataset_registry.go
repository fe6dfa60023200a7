package server

import (
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/config"
)

// DatasetRoute 将数据集配置与派生属性（解析后的 URL、校验信息、缓存文件名）聚合在一起，
// 供路由/处理层直接复用，避免重复解析配置。
type DatasetRoute struct {
	// Config 是用户在 config.toml 中声明的数据集字段副本。
	Config config.DatasetConfig
	// SourceURL 在构造 Registry 时提前解析完成。
	SourceURL *url.URL
	// FileName 是缓存目录下的文件名，即 Source 路径的最后一段。
	FileName string
	// Checksum 为空时表示仅信任存在性。
	Checksum cache.Checksum
}

// DatasetRegistry 提供数据集名称到 DatasetRoute 的查询能力。
type DatasetRegistry struct {
	routes  map[string]*DatasetRoute
	ordered []*DatasetRoute
}

// NewDatasetRegistry 根据配置构建名称映射。调用方应在启动阶段创建一次并复用。
func NewDatasetRegistry(cfg *config.Config) (*DatasetRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &DatasetRegistry{
		routes: make(map[string]*DatasetRoute, len(cfg.Datasets)),
	}

	for _, ds := range cfg.Datasets {
		if _, exists := registry.routes[ds.Name]; exists {
			return nil, fmt.Errorf("dataset %s already registered", ds.Name)
		}

		route, err := buildDatasetRoute(ds)
		if err != nil {
			return nil, err
		}
		registry.routes[ds.Name] = route
		registry.ordered = append(registry.ordered, route)
	}

	sort.Slice(registry.ordered, func(i, j int) bool {
		return registry.ordered[i].Config.Name < registry.ordered[j].Config.Name
	})

	return registry, nil
}

// Lookup 按名称返回数据集路由。
func (r *DatasetRegistry) Lookup(name string) (*DatasetRoute, bool) {
	if r == nil {
		return nil, false
	}
	route, ok := r.routes[name]
	return route, ok
}

// List 按名称排序返回全部数据集路由。
func (r *DatasetRegistry) List() []*DatasetRoute {
	if r == nil {
		return nil
	}
	result := make([]*DatasetRoute, len(r.ordered))
	copy(result, r.ordered)
	return result
}

func buildDatasetRoute(ds config.DatasetConfig) (*DatasetRoute, error) {
	parsed, err := url.Parse(ds.Source)
	if err != nil {
		return nil, fmt.Errorf("invalid source for dataset %s: %w", ds.Name, err)
	}
	name, err := cache.Basename(ds.Source)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}
	sum, err := ds.Checksum()
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
	}

	return &DatasetRoute{
		Config:    ds,
		SourceURL: parsed,
		FileName:  name,
		Checksum:  sum,
	}, nil
}
