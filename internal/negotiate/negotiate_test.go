package negotiate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lstrojny/prometheus-weather-exporter/internal/metrics"
)

const (
	// Sent by the Prometheus scraper.
	prometheusAcceptHeader = "application/openmetrics-text;version=1.0.0,application/openmetrics-text;version=0.0.1;q=0.75,text/plain;version=0.0.4;q=0.5,*/*;q=0.1"
	chromeAcceptHeader     = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7"
	firefoxAcceptHeader    = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

func rendered(ranges []MediaRange) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}

func TestSortPrefersUnweighted(t *testing.T) {
	sorted := SortByPriority([]MediaRange{
		NewMediaRange("application", "openmetrics-text").WithWeight(0.9),
		NewMediaRange("text", "html"),
		NewMediaRange("application", "json"),
		NewMediaRange("text", "plain").WithWeight(0.9),
	})
	assert.Equal(t, []string{
		"text/html",
		"application/json",
		"application/openmetrics-text; q=0.9",
		"text/plain; q=0.9",
	}, rendered(sorted))

	sorted = SortByPriority([]MediaRange{
		NewMediaRange("text", "plain"),
		NewMediaRange("application", "json").WithWeight(0.1),
		NewMediaRange("application", "openmetrics-text").WithWeight(0.9),
	})
	assert.Equal(t, []string{
		"text/plain",
		"application/openmetrics-text; q=0.9",
		"application/json; q=0.1",
	}, rendered(sorted))

	assert.Equal(t,
		[]string{"text/plain", "application/openmetrics-text; q=0.9"},
		rendered(SortByPriority(ParseAccept("text/plain, application/openmetrics-text;q=0.9"))),
	)
}

func TestSortByWeight(t *testing.T) {
	sorted := SortByPriority([]MediaRange{
		NewMediaRange("application", "openmetrics-text").WithWeight(0.9),
		NewMediaRange("text", "plain").WithWeight(1),
	})
	assert.Equal(t, []string{"text/plain; q=1", "application/openmetrics-text; q=0.9"}, rendered(sorted))
}

func TestSortBySpecificity(t *testing.T) {
	sorted := SortByPriority([]MediaRange{
		NewMediaRange("application", "*").WithWeight(0.9),
		NewMediaRange("text", "plain").WithWeight(0.9),
	})
	assert.Equal(t, []string{"text/plain; q=0.9", "application/*; q=0.9"}, rendered(sorted))
}

func TestSortByParameterCount(t *testing.T) {
	sorted := SortByPriority([]MediaRange{
		NewMediaRange("text", "plain").WithWeight(0.9),
		NewMediaRange("text", "plain", Param{"charset", "utf8"}).WithWeight(0.9),
		NewMediaRange("text", "plain", Param{"charset", "utf8"}, Param{"version", "0.1"}).WithWeight(0.9),
		NewMediaRange("application", "json", Param{"charset", "utf8"}, Param{"version", "0.1"}).WithWeight(0.9),
	})
	assert.Equal(t, []string{
		"text/plain; charset=utf8; version=0.1; q=0.9",
		"application/json; charset=utf8; version=0.1; q=0.9",
		"text/plain; charset=utf8; q=0.9",
		"text/plain; q=0.9",
	}, rendered(sorted))
}

func TestSortPrometheusHeader(t *testing.T) {
	assert.Equal(t, []string{
		"application/openmetrics-text; version=1.0.0",
		"application/openmetrics-text; version=0.0.1; q=0.75",
		"text/plain; version=0.0.4; q=0.5",
		"*/*; q=0.1",
	}, rendered(SortByPriority(ParseAccept(prometheusAcceptHeader))))
}

func TestSortComplicated(t *testing.T) {
	header := "application/openmetrics-text;q=0.9;version=1.0.0,application/openmetrics-text;q=0.8;version=0.0.1,text/plain;q=0.95;version=0.0.4,text/plain;q=1.0;charset=utf-8;version=0.0.4,*/*;q=0.1"
	assert.Equal(t, []string{
		"text/plain; q=1.0; charset=utf-8; version=0.0.4",
		"text/plain; q=0.95; version=0.0.4",
		"application/openmetrics-text; q=0.9; version=1.0.0",
		"application/openmetrics-text; q=0.8; version=0.0.1",
		"*/*; q=0.1",
	}, rendered(SortByPriority(ParseAccept(header))))
}

func TestParseAcceptSkipsMalformedEntries(t *testing.T) {
	ranges := ParseAccept("text/plain;q=2,garbage,application/json;q=abc,/x,text/html;q=0.5, ,image/*,text/csv;q=NaN,text/xml;q=-Inf")
	assert.Equal(t, []string{"text/html; q=0.5", "image/*"}, rendered(ranges))
	assert.Empty(t, ParseAccept(""))

	weight, weighted := ranges[0].Weight()
	assert.True(t, weighted)
	assert.Equal(t, 0.5, weight)
	_, weighted = ranges[1].Weight()
	assert.False(t, weighted)
}

func TestSelectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   metrics.Format
	}{
		{"no preference", "", metrics.FormatPrometheus},
		{"openmetrics if available", "application/openmetrics-text", metrics.FormatOpenMetrics},
		{"text plain if only available", "text/plain", metrics.FormatPrometheus},
		{"text plain if higher weight", "application/openmetrics-text;q=0.9,text/plain;q=1.0", metrics.FormatPrometheus},
		{"text plain if unweighted", "application/openmetrics-text;q=0.9,text/plain", metrics.FormatPrometheus},
		{"text plain if more specific", "application/*;q=0.9,text/plain;charset=utf-8;q=0.9", metrics.FormatPrometheus},
		{"openmetrics if more specific", "text/*;q=0.95,application/openmetrics-text;q=0.95;version=1.0.0,*/*;q=0.1", metrics.FormatOpenMetrics},
		{"openmetrics on partial match", "application/*,*/*;q=0.1", metrics.FormatOpenMetrics},
		{"not a number weight is skipped", "application/openmetrics-text;q=NaN,text/plain;q=0.1", metrics.FormatPrometheus},
		{"openmetrics on weighted partial match", "application/*;q=1.0,text/plain;q=0.9,*/*;q=0.1", metrics.FormatOpenMetrics},
		{"wildcard alone", "*/*", metrics.FormatPrometheus},
		{"case insensitive", "Application/OpenMetrics-Text", metrics.FormatOpenMetrics},
		{"firefox", firefoxAcceptHeader, metrics.FormatPrometheus},
		{"chrome", chromeAcceptHeader, metrics.FormatPrometheus},
		{"prometheus scraper", prometheusAcceptHeader, metrics.FormatOpenMetrics},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForHeader(tt.header))
		})
	}
}

func TestSelectFormatIsOrderIndependent(t *testing.T) {
	a := NewMediaRange("text", "plain")
	b := NewMediaRange("application", "openmetrics-text")

	assert.Equal(t, metrics.FormatOpenMetrics, SelectFormat([]MediaRange{a, b}))
	assert.Equal(t, metrics.FormatOpenMetrics, SelectFormat([]MediaRange{b, a}))

	assert.Equal(t,
		FormatForHeader("text/plain;q=0.5,application/openmetrics-text;q=0.5"),
		FormatForHeader("application/openmetrics-text;q=0.5,text/plain;q=0.5"),
	)
}
