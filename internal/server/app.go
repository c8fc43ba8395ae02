package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pypi-browser/pypi-browser/internal/cache"
	"github.com/pypi-browser/pypi-browser/internal/config"
	"github.com/pypi-browser/pypi-browser/internal/pypi"
)

const contextKeyRequestID = "_pypibrowser_request_id"

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Config     *config.Config
	Repository pypi.Repository
	Store      *cache.Store
}

// NewApp builds a Fiber application with the browse routes and structured
// error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Repository == nil {
		return nil, errors.New("repository is required")
	}
	if opts.Store == nil {
		return nil, errors.New("cache store is required")
	}
	if opts.Config.ListenPort <= 0 || opts.Config.ListenPort > 65535 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.Config.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())
	app.Use(noCacheMiddleware())

	h := &handlers{
		logger: opts.Logger,
		cfg:    opts.Config,
		repo:   opts.Repository,
		store:  opts.Store,
	}

	app.Get("/static/style.css", serveStylesheet)
	app.Get("/", h.home)
	app.Get("/search", h.search)
	app.Get("/package/:name", h.packageIndex)
	app.Get("/package/:name/:filename", h.packageFile)
	app.Get("/package/:name/:filename/*", h.archiveEntry)

	return app, nil
}

// requestContextMiddleware 负责为每个请求生成 Request ID，便于日志串联。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// noCacheMiddleware 阻止浏览器缓存页面，归档内容随缓存目录变化即时生效。
func noCacheMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		err := c.Next()
		c.Set(fiber.HeaderCacheControl, "no-cache")
		return err
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
