// Package providers contains the upstream weather API adapters.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/logging"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// maxBodySize caps upstream response bodies.
const maxBodySize = 1 << 20

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

var (
	// ErrUpstreamStatus wraps non-2xx upstream responses.
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	// ErrCircuitOpen means the provider's circuit breaker rejected the call.
	ErrCircuitOpen = errors.New("circuit breaker open")
	// ErrMissingField means an upstream response lacks a required field.
	ErrMissingField = errors.New("required field missing in upstream response")
	// ErrAlwaysFails is returned by Nogoodnik.
	ErrAlwaysFails = errors.New("this provider is no good and always fails")

	errNoHTTPClient = errors.New("http client not configured")
)

// responseValidator checks the validate tags of decoded upstream payloads.
var responseValidator = validator.New()

// StatusError is an upstream response outside 2xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUpstreamStatus, e.Code, http.StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUpstreamStatus
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// upstream is embedded by every provider. It implements the parts of
// weather.Provider that depend on configuration only.
type upstream struct {
	id      string
	refresh time.Duration
	backoff BackoffConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newUpstream(id string, s config.Provider) upstream {
	failures := s.CircuitBreaker.Failures
	if failures == 0 {
		failures = config.DefaultBreakerFailures
	}
	timeout := s.CircuitBreaker.OpenTimeout
	if timeout == 0 {
		timeout = config.DefaultBreakerTimeout
	}

	u := upstream{
		id:      id,
		refresh: s.RefreshInterval,
		backoff: BackoffConfig{
			MaxRetries:      s.Retries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        id,
			MaxRequests: 1,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
		}),
	}
	if s.RequestsPerMinute > 0 {
		u.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.RequestsPerMinute)), 1)
	}
	return u
}

func (u *upstream) ID() string {
	return u.id
}

func (u *upstream) RefreshInterval() time.Duration {
	return u.refresh
}

func (u *upstream) CacheCardinality() int {
	return 1
}

// getJSON decodes the response body of GET url into dst and checks its
// validate tags. Bodies are cached in responses for the refresh interval; a
// refresh interval <= 0 always calls upstream. Bodies that fail to decode or
// validate are never cached.
func (u *upstream) getJSON(ctx context.Context, client *http.Client, responses *weather.ResponseCache, url string, dst any) error {
	decoded := false
	fetch := func() ([]byte, error) {
		logging.FromContext(ctx).Debug("Requesting upstream", "source", u.id)
		body, err := u.get(ctx, client, url)
		if err != nil {
			return nil, err
		}
		if err := u.decode(body, dst); err != nil {
			return nil, err
		}
		decoded = true
		return body, nil
	}

	var body []byte
	var err error
	if u.refresh > 0 && responses != nil {
		body, err = responses.GetOrCompute(u.id+" "+http.MethodGet+" "+url, u.refresh, fetch)
	} else {
		body, err = fetch()
	}
	if err != nil {
		return err
	}
	if decoded {
		return nil
	}
	return u.decode(body, dst)
}

func (u *upstream) decode(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decoding %s response: %w", u.id, err)
	}
	if err := responseValidator.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissingField, u.id, err)
	}
	return nil
}

// get executes the request with rate limiting, retries with exponential
// backoff and the circuit breaker.
func (u *upstream) get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	for attempt := 0; ; attempt++ {
		if u.limiter != nil {
			if err := u.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		result, err := u.breaker.Execute(func() (interface{}, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
				return nil, &StatusError{Code: resp.StatusCode}
			}
			return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		})
		if err == nil {
			body, ok := result.([]byte)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return body, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}

		var status *StatusError
		if errors.As(err, &status) && !status.retryable() {
			return nil, err
		}
		if attempt >= u.backoff.MaxRetries {
			return nil, err
		}

		delay := u.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > u.backoff.MaxInterval && u.backoff.MaxInterval > 0 {
			delay = u.backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// reading fills the fields every provider computes the same way.
func reading(req weather.Request[weather.Coordinates], source string, at weather.Coordinates, temperature weather.Celsius) weather.Weather {
	distance := weather.Distance(req.Query, at)
	return weather.Weather{
		Location:    req.Name,
		Source:      source,
		Coordinates: at,
		Distance:    &distance,
		Temperature: temperature,
	}
}

func ratioFromPercent(percent *float64) *weather.Ratio {
	if percent == nil {
		return nil
	}
	r := weather.RatioFromPercent(*percent)
	return &r
}
