package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DatasetHandler describes the component that turns a dataset route into a
// response. It allows injecting fake handlers during tests.
type DatasetHandler interface {
	Handle(fiber.Ctx, *DatasetRoute) error
}

// DatasetHandlerFunc adapts a function to the DatasetHandler interface.
type DatasetHandlerFunc func(fiber.Ctx, *DatasetRoute) error

// Handle makes DatasetHandlerFunc satisfy DatasetHandler.
func (f DatasetHandlerFunc) Handle(c fiber.Ctx, route *DatasetRoute) error {
	return f(c, route)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *DatasetRegistry
	Handler    DatasetHandler
	ListenPort int
}

const contextKeyRequestID = "_fedcache_request_id"

// NewApp builds a Fiber application with request-id middleware, dataset
// routing and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("dataset registry is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("dataset handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	serveDataset := func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		route, ok := opts.Registry.Lookup(name)
		if !ok {
			return renderDatasetUnknown(c, opts.Logger, name)
		}
		return opts.Handler.Handle(c, route)
	}
	app.Get("/datasets/:name", serveDataset)
	app.Head("/datasets/:name", serveDataset)

	return app, nil
}

// requestIDMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderDatasetUnknown(c fiber.Ctx, logger *logrus.Logger, name string) error {
	logger.WithFields(logrus.Fields{
		"action":     "dataset_lookup",
		"dataset":    name,
		"request_id": RequestID(c),
	}).Warn("dataset unknown")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "dataset_unknown",
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
