package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	httpapi "github.com/lstrojny/prometheus-weather-exporter/internal/api/http"
	"github.com/lstrojny/prometheus-weather-exporter/internal/auth"
	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/logging"
	"github.com/lstrojny/prometheus-weather-exporter/internal/scheduler"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather/providers"
)

const shutdownTimeout = 10 * time.Second

func runServer(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	logger, err := logging.New(logging.Config{
		Level:  logging.LevelFromVerbosity(verbosity, quiet),
		Format: logFormat,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		logger.Warn("Could not load .env file", "error", envErr)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithLogger(ctx, logger)

	app, sweeper, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting cache sweeper: %w", err)
	}
	defer sweeper.Stop()

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", cfg.HTTP.ListenAddress())
		listenErr <- app.Listen(cfg.HTTP.ListenAddress())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}
	return nil
}

// build wires the configuration into the HTTP app and the cache sweeper.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*fiber.App, *scheduler.Sweeper, error) {
	requests, err := cfg.Requests(ctx, config.NewGoogleGeocoder(cfg.Geocoding.APIKey))
	if err != nil {
		return nil, nil, err
	}

	tasks, err := weather.NewTaskSet(providers.FromConfig(cfg.Providers), requests)
	if err != nil {
		return nil, nil, err
	}
	for _, t := range tasks {
		logger.Debug("Configured task", "source", t.Provider.ID(), "location", t.Request.Name,
			"refresh_interval", t.Provider.RefreshInterval().String())
	}

	// Shared HTTP client for outbound provider calls.
	client := &http.Client{Timeout: cfg.HTTP.UpstreamTimeout}
	orchestrator := weather.NewOrchestrator(client, tasks, weather.WithWorkers(cfg.HTTP.Workers))

	caches := make(map[string]scheduler.Purger)
	for _, t := range tasks {
		caches["responses "+t.Provider.ID()] = t.Cache
	}

	var store *auth.CredentialsStore
	authResults := cache.New[error](cache.WithMaxSize(auth.DefaultCacheSize))
	if cfg.AuthRequired() {
		if store, err = auth.NewCredentialsStore(cfg.Auth); err != nil {
			return nil, nil, fmt.Errorf("auth: %w", err)
		}
		caches["auth"] = authResults
		logger.Info("Authentication enabled", "users", len(store.Usernames()))
	}

	var accessLog io.Writer
	if logger.Enabled(ctx, slog.LevelDebug) {
		accessLog = os.Stderr
	}

	app := httpapi.New(httpapi.Options{
		Authenticator: auth.NewAuthenticator(store, authResults),
		Collector:     orchestrator,
		Logger:        logger,
		AccessLog:     accessLog,
	})

	return app, scheduler.New(caches, scheduler.DefaultInterval, logger), nil
}
