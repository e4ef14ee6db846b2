package httpapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/lstrojny/prometheus-weather-exporter/internal/auth"
	"github.com/lstrojny/prometheus-weather-exporter/internal/logging"
	"github.com/lstrojny/prometheus-weather-exporter/internal/metrics"
	"github.com/lstrojny/prometheus-weather-exporter/internal/negotiate"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// Name is used as app name and authentication realm.
const Name = "prometheus-weather-exporter"

// ContentTypeText is used for the authentication challenge and denial.
// Every other non-2xx response is sent as metrics.ContentTypePrometheus.
const ContentTypeText = "text/plain; charset=utf-8"

const (
	bodyUnauthorized = "Authentication required. No credentials provided"
	bodyForbidden    = "Access denied. Invalid credentials"
	bodyIndex        = "Check /metrics"
	bodyFetchFailed  = "Error while fetching weather data. Check the logs"
)

var wwwAuthenticate = `Basic realm="` + Name + `", charset="UTF-8"`

// Collector runs the provider tasks of one scrape.
type Collector interface {
	Collect(ctx context.Context) (weather.Result, error)
}

type handler struct {
	authenticator *auth.Authenticator
	collector     Collector
	logger        *slog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. A nil
// authenticator disables authentication.
func RegisterRoutes(app *fiber.App, authenticator *auth.Authenticator, collector Collector, logger *slog.Logger) {
	if authenticator == nil {
		authenticator = auth.NewAuthenticator(nil, nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{authenticator: authenticator, collector: collector, logger: logger}

	app.Get("/", h.authenticate, h.index)
	app.Get("/metrics", h.authenticate, h.metrics)
}

func send(c *fiber.Ctx, contentType string, status int, body string) error {
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(status).SendString(body)
}

// text sends a non-2xx response in the plain-text exposition content type,
// whatever format was negotiated.
func text(c *fiber.Ctx, status int, body string) error {
	return send(c, metrics.ContentTypePrometheus, status, body)
}

func (h *handler) authenticate(c *fiber.Ctx) error {
	var presented *auth.Credentials
	if creds, ok := auth.ParseBasic(c.Get(fiber.HeaderAuthorization)); ok {
		presented = &creds
	}

	granted, err := auth.MaybeAuthenticate(h.authenticator, presented)
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		c.Set(fiber.HeaderWWWAuthenticate, wwwAuthenticate)
		return send(c, ContentTypeText, fiber.StatusUnauthorized, bodyUnauthorized)
	case err != nil:
		return send(c, ContentTypeText, fiber.StatusForbidden, bodyForbidden)
	}

	h.logger.Debug("Request granted", "path", c.Path(), "reason", granted.String())
	return c.Next()
}

func (h *handler) index(c *fiber.Ctx) error {
	return text(c, fiber.StatusNotFound, bodyIndex)
}

func (h *handler) metrics(c *fiber.Ctx) error {
	format := negotiate.FormatForHeader(c.Get(fiber.HeaderAccept))

	logger := h.logger.With("scrape_id", uuid.NewString())
	logger.Debug("Scrape started", "format", format.String())

	result, err := h.collector.Collect(logging.WithLogger(c.UserContext(), logger))
	if err != nil {
		logger.Error("Error while fetching weather data", "error", err)
		return text(c, fiber.StatusInternalServerError, bodyFetchFailed)
	}

	body, err := metrics.Render(format, result.Readings)
	if err != nil {
		logger.Error("Error while rendering metrics", "error", err)
		return text(c, fiber.StatusInternalServerError, bodyFetchFailed)
	}

	c.Set(fiber.HeaderContentType, format.ContentType())
	return c.Status(fiber.StatusOK).Send(body)
}
