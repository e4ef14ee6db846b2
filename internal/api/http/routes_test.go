package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lstrojny/prometheus-weather-exporter/internal/auth"
	"github.com/lstrojny/prometheus-weather-exporter/internal/metrics"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

type stubCollector struct {
	result weather.Result
	err    error
	calls  int
	ctx    context.Context
}

func (s *stubCollector) Collect(ctx context.Context) (weather.Result, error) {
	s.calls++
	s.ctx = ctx
	return s.result, s.err
}

// staticProvider returns a fixed temperature or err.
type staticProvider struct {
	id          string
	temperature weather.Celsius
	err         error
}

func (p staticProvider) ID() string { return p.id }

func (p staticProvider) Fetch(_ context.Context, _ *http.Client, _ *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	if p.err != nil {
		return weather.Weather{}, p.err
	}
	return weather.Weather{Coordinates: req.Query, Temperature: p.temperature}, nil
}

func (p staticProvider) RefreshInterval() time.Duration { return 0 }

func (p staticProvider) CacheCardinality() int { return 1 }

func orchestrator(t *testing.T, providers ...weather.Provider) *weather.Orchestrator {
	t.Helper()
	tasks, err := weather.NewTaskSet(providers, []weather.Request[weather.Coordinates]{
		{Name: "Berlin", Query: weather.Coordinates{Latitude: 52.52, Longitude: 13.405}},
	})
	require.NoError(t, err)
	return weather.NewOrchestrator(nil, tasks)
}

func authenticator(t *testing.T) *auth.Authenticator {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	store, err := auth.NewCredentialsStore(map[string]string{"joanna": string(hash)})
	require.NoError(t, err)
	return auth.NewAuthenticator(store, nil)
}

func basic(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func do(t *testing.T, app *fiber.App, path string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndex(t *testing.T) {
	app := New(Options{Collector: &stubCollector{}})

	resp, body := do(t, app, "/", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Check /metrics", body)
	assert.Equal(t, "text/plain; charset=utf-8; version=0.0.4", resp.Header.Get("Content-Type"))

	// Content negotiation has no influence on non-success responses.
	resp, _ = do(t, app, "/", map[string]string{"Accept": "application/openmetrics-text"})
	assert.Equal(t, metrics.ContentTypePrometheus, resp.Header.Get("Content-Type"))
}

func TestAuthentication(t *testing.T) {
	collector := &stubCollector{}
	app := New(Options{Authenticator: authenticator(t), Collector: collector})

	tests := []struct {
		name       string
		path       string
		header     map[string]string
		wantStatus int
		wantBody   string
	}{
		{"missing credentials", "/metrics", nil, http.StatusUnauthorized, "Authentication required. No credentials provided"},
		{"malformed header", "/metrics", map[string]string{"Authorization": "Basic !!!"}, http.StatusUnauthorized, "Authentication required. No credentials provided"},
		{"unknown user", "/metrics", map[string]string{"Authorization": basic("mallory", "secret")}, http.StatusForbidden, "Access denied. Invalid credentials"},
		{"wrong password", "/metrics", map[string]string{"Authorization": basic("joanna", "wrong")}, http.StatusForbidden, "Access denied. Invalid credentials"},
		{"index is protected", "/", nil, http.StatusUnauthorized, "Authentication required. No credentials provided"},
		{"index after authentication", "/", map[string]string{"Authorization": basic("joanna", "secret")}, http.StatusNotFound, "Check /metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, app, tt.path, tt.header)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, body)
			if tt.wantStatus == http.StatusNotFound {
				assert.Equal(t, metrics.ContentTypePrometheus, resp.Header.Get("Content-Type"))
			} else {
				assert.Equal(t, ContentTypeText, resp.Header.Get("Content-Type"))
			}

			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, `Basic realm="prometheus-weather-exporter", charset="UTF-8"`, resp.Header.Get("WWW-Authenticate"))
			} else {
				assert.Empty(t, resp.Header.Get("WWW-Authenticate"))
			}
		})
	}
	assert.Zero(t, collector.calls, "denied requests never collect")

	resp, _ := do(t, app, "/metrics", map[string]string{"Authorization": basic("joanna", "secret")})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, collector.calls)
}

func TestMetricsNegotiatesFormat(t *testing.T) {
	collector := &stubCollector{result: weather.Result{Readings: []weather.Weather{
		{Source: "a", Location: "Berlin", Temperature: 20},
	}}}
	app := New(Options{Collector: collector})

	resp, body := do(t, app, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8; version=0.0.4", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "weather_temperature_celsius{")
	assert.NotContains(t, body, "# EOF")

	resp, body = do(t, app, "/metrics", map[string]string{
		"Accept": "application/openmetrics-text;version=1.0.0,application/openmetrics-text;version=0.0.1;q=0.75,text/plain;version=0.0.4;q=0.5,*/*;q=0.1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/openmetrics-text; charset=utf-8; version=1.0.0", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasSuffix(body, "# EOF\n"))
}

func TestMetricsCollectFailure(t *testing.T) {
	collector := &stubCollector{err: &weather.TaskError{Source: "a", Location: "Berlin", Err: weather.ErrTaskPanicked}}
	app := New(Options{Collector: collector})

	resp, body := do(t, app, "/metrics", map[string]string{"Accept": "application/openmetrics-text"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Error while fetching weather data. Check the logs", body)
	assert.Equal(t, metrics.ContentTypePrometheus, resp.Header.Get("Content-Type"))
}

func TestMetricsPartialFailure(t *testing.T) {
	app := New(Options{Collector: orchestrator(t,
		staticProvider{id: "a", temperature: 20},
		staticProvider{id: "b", err: errors.New("upstream down")},
		staticProvider{id: "c", temperature: 22},
	)})

	resp, body := do(t, app, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	require.Contains(t, families, "weather_temperature_celsius")
	assert.Len(t, families["weather_temperature_celsius"].GetMetric(), 2)
	assert.NotContains(t, body, `source="b"`)
}

func TestMetricsAllProvidersFail(t *testing.T) {
	app := New(Options{Collector: orchestrator(t,
		staticProvider{id: "a", err: errors.New("down")},
		staticProvider{id: "b", err: errors.New("down")},
	)})

	resp, body := do(t, app, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)

	resp, body = do(t, app, "/metrics", map[string]string{"Accept": "application/openmetrics-text"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# EOF\n", body)
}

type panickingCollector struct{}

func (panickingCollector) Collect(context.Context) (weather.Result, error) {
	panic("boom")
}

func TestPanicIsRecovered(t *testing.T) {
	app := New(Options{Collector: panickingCollector{}})

	resp, _ := do(t, app, "/metrics", map[string]string{"Accept": "application/openmetrics-text"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, metrics.ContentTypePrometheus, resp.Header.Get("Content-Type"))
}

func TestUnknownRoute(t *testing.T) {
	app := New(Options{Collector: &stubCollector{}})

	resp, _ := do(t, app, "/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, metrics.ContentTypePrometheus, resp.Header.Get("Content-Type"))
}

func TestAccessLog(t *testing.T) {
	var log bytes.Buffer
	app := New(Options{Collector: &stubCollector{}, AccessLog: &log})

	do(t, app, "/", nil)
	assert.Contains(t, log.String(), "404")
}
