package routes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/fedcache/fedcache/internal/cache"
	"github.com/fedcache/fedcache/internal/config"
	"github.com/fedcache/fedcache/internal/server"
)

type stubInspector map[string]cache.Entry

func (s stubInspector) Stat(route *server.DatasetRoute) (cache.Entry, error) {
	entry, ok := s[route.Config.Name]
	if !ok {
		return cache.Entry{}, errors.New("stat failed")
	}
	return entry, nil
}

func newRegistry(t *testing.T) *server.DatasetRegistry {
	t.Helper()
	registry, err := server.NewDatasetRegistry(&config.Config{
		Datasets: []config.DatasetConfig{
			{Name: "shakespeare", Source: "https://example.com/shakespeare.sqlite.lzma", Size: 7},
			{Name: "emnist", Source: "https://example.com/fed_emnist.sqlite.lzma"},
			{Name: "broken", Source: "https://example.com/broken.bin"},
		},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return registry
}

func TestEncodeDatasetsReportsState(t *testing.T) {
	modTime := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	inspector := stubInspector{
		"shakespeare": {State: cache.StatePresent, FilePath: "/c/shakespeare.sqlite.lzma", SizeBytes: 7, ModTime: modTime},
		"emnist":      {State: cache.StateAbsent, FilePath: "/c/fed_emnist.sqlite.lzma"},
	}

	encoded := encodeDatasets(newRegistry(t).List(), inspector)
	if len(encoded) != 3 {
		t.Fatalf("expected 3 datasets, got %d", len(encoded))
	}
	if encoded[0].Name != "broken" || encoded[0].State != "unknown" || encoded[0].Error == "" {
		t.Fatalf("expected stat failure to be reported, got %+v", encoded[0])
	}
	if encoded[2].Name != "shakespeare" || encoded[2].State != "present" {
		t.Fatalf("expected shakespeare present, got %+v", encoded[2])
	}
	if encoded[2].ModTime != "2021-05-01T00:00:00Z" {
		t.Fatalf("unexpected mod time %s", encoded[2].ModTime)
	}
	if encoded[1].ModTime != "" {
		t.Fatalf("absent entries should omit mod time")
	}
}

func TestDatasetDetailRoute(t *testing.T) {
	app := fiber.New()
	RegisterDatasetRoutes(app, newRegistry(t), stubInspector{
		"emnist": {State: cache.StatePartial, SizeBytes: 3},
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/-/datasets/emnist", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var payload datasetPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.State != "partial" || payload.SizeBytes != 3 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/-/datasets/unknown", nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
