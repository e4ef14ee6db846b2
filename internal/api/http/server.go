// Package httpapi exposes the metrics endpoint over HTTP.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lstrojny/prometheus-weather-exporter/internal/auth"
)

// Options configures New.
type Options struct {
	Authenticator *auth.Authenticator
	Collector     Collector
	Logger        *slog.Logger

	// AccessLog receives one line per request when set.
	AccessLog io.Writer

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates the Fiber app with middleware and routes.
func New(opts Options) *fiber.App {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		// A scrape waits for every upstream call.
		opts.WriteTimeout = time.Minute
	}

	app := fiber.New(fiber.Config{
		AppName:               Name,
		DisableStartupMessage: true,
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return text(c, code, err.Error())
		},
	})

	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}
	app.Use(recover.New())

	RegisterRoutes(app, opts.Authenticator, opts.Collector, opts.Logger)
	return app
}
