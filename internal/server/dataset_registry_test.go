package server

import (
	"testing"

	"github.com/fedcache/fedcache/internal/config"
)

func TestDatasetRegistryLookup(t *testing.T) {
	cfg := &config.Config{
		Datasets: []config.DatasetConfig{
			{Name: "stackoverflow", Source: "https://example.com/so/stackoverflow.sqlite.lzma"},
			{Name: "shakespeare", Source: "https://example.com/shakespeare.sqlite.lzma?x=1", Size: 10},
		},
	}

	registry, err := NewDatasetRegistry(cfg)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	route, ok := registry.Lookup("shakespeare")
	if !ok {
		t.Fatalf("expected shakespeare route")
	}
	if route.FileName != "shakespeare.sqlite.lzma" {
		t.Fatalf("unexpected file name %s", route.FileName)
	}
	if route.SourceURL.Host != "example.com" {
		t.Fatalf("unexpected source host %s", route.SourceURL.Host)
	}
	if route.Checksum.Size != 10 {
		t.Fatalf("expected size checksum to be carried over")
	}

	if _, ok := registry.Lookup("missing"); ok {
		t.Fatalf("unexpected route for missing dataset")
	}

	list := registry.List()
	if len(list) != 2 || list[0].Config.Name != "shakespeare" {
		t.Fatalf("expected sorted routes, got %d", len(list))
	}
}

func TestDatasetRegistryRejectsDuplicates(t *testing.T) {
	cfg := &config.Config{
		Datasets: []config.DatasetConfig{
			{Name: "a", Source: "https://example.com/a.bin"},
			{Name: "a", Source: "https://example.com/b.bin"},
		},
	}
	if _, err := NewDatasetRegistry(cfg); err == nil {
		t.Fatalf("expected duplicate dataset error")
	}
}

func TestDatasetRegistryRejectsBadChecksum(t *testing.T) {
	cfg := &config.Config{
		Datasets: []config.DatasetConfig{
			{Name: "a", Source: "https://example.com/a.bin", SHA256: "abc"},
		},
	}
	if _, err := NewDatasetRegistry(cfg); err == nil {
		t.Fatalf("expected checksum error")
	}
}
