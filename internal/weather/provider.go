package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lstrojny/prometheus-weather-exporter/internal/cache"
)

// ResponseCache memoizes raw upstream response bodies.
type ResponseCache = cache.Cache[[]byte]

// Provider abstracts a weather data source (e.g. OpenWeather, Meteoblue, Open-Meteo).
type Provider interface {
	// ID is unique per provider implementation and used as the source label.
	ID() string

	// Fetch returns the current weather for the request. Upstream responses
	// may be served from responses.
	Fetch(ctx context.Context, client *http.Client, responses *ResponseCache, req Request[Coordinates]) (Weather, error)

	// RefreshInterval is the minimum time between two upstream calls for the
	// same request.
	RefreshInterval() time.Duration

	// CacheCardinality is the number of cache entries one request occupies.
	CacheCardinality() int
}

var (
	// ErrDuplicateProvider is returned when two providers share an id.
	ErrDuplicateProvider = errors.New("duplicate provider id")

	// ErrTaskPanicked marks a provider task that panicked instead of returning.
	ErrTaskPanicked = errors.New("provider task panicked")
)

// ProviderError is a recoverable failure of one provider for one location.
type ProviderError struct {
	Source   string
	Location string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed for %s: %v", e.Source, e.Location, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// TaskError is a failure to execute a provider task at all. It fails the
// whole collection.
type TaskError struct {
	Source   string
	Location string
	Err      error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s for %s did not complete: %v", e.Source, e.Location, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}
