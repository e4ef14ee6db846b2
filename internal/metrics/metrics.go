// Package metrics renders weather readings as a Prometheus text or
// OpenMetrics exposition document.
package metrics

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

const (
	// ContentTypeOpenMetrics is sent with OpenMetrics documents.
	ContentTypeOpenMetrics = "application/openmetrics-text; charset=utf-8; version=1.0.0"
	// ContentTypePrometheus is sent with Prometheus text documents.
	ContentTypePrometheus = "text/plain; charset=utf-8; version=0.0.4"
)

// Format is an exposition format.
type Format int

const (
	// FormatPrometheus is the Prometheus text format 0.0.4.
	FormatPrometheus Format = iota
	// FormatOpenMetrics is OpenMetrics 1.0.0.
	FormatOpenMetrics
)

// ContentType returns the exact content type header value for f.
func (f Format) ContentType() string {
	if f == FormatOpenMetrics {
		return ContentTypeOpenMetrics
	}
	return ContentTypePrometheus
}

func (f Format) String() string {
	if f == FormatOpenMetrics {
		return "openmetrics"
	}
	return "prometheus"
}

func (f Format) exposition() expfmt.Format {
	if f == FormatOpenMetrics {
		return expfmt.NewFormat(expfmt.TypeOpenMetrics)
	}
	return expfmt.NewFormat(expfmt.TypeTextPlain)
}

var labelNames = []string{"source", "location", "city", "latitude", "longitude"}

type gauges struct {
	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	distance    *prometheus.GaugeVec
}

func newGauges(reg prometheus.Registerer) gauges {
	factory := promauto.With(reg)

	return gauges{
		temperature: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weather_temperature_celsius",
			Help: "Temperature in celsius",
		}, labelNames),
		humidity: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weather_relative_humidity_ratio",
			Help: "Relative humidity as a ratio between 0 and 1",
		}, labelNames),
		distance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "weather_station_distance_meters",
			Help: "Distance between the requested location and the measuring station in meters",
		}, labelNames),
	}
}

func labels(w weather.Weather) prometheus.Labels {
	city := ""
	if w.City != nil {
		city = *w.City
	}

	return prometheus.Labels{
		"source":    w.Source,
		"location":  w.Location,
		"city":      city,
		"latitude":  strconv.FormatFloat(w.Coordinates.Latitude, 'f', -1, 64),
		"longitude": strconv.FormatFloat(w.Coordinates.Longitude, 'f', -1, 64),
	}
}

// Render encodes readings in format. Families and series are sorted, so the
// output is deterministic for a given set of readings. Metric families
// without any series are omitted.
func Render(format Format, readings []weather.Weather) ([]byte, error) {
	reg := prometheus.NewRegistry()
	g := newGauges(reg)

	for _, w := range readings {
		l := labels(w)
		g.temperature.With(l).Set(float64(w.Temperature))
		if w.RelativeHumidity != nil {
			g.humidity.With(l).Set(float64(*w.RelativeHumidity))
		}
		if w.Distance != nil {
			g.distance.With(l).Set(float64(*w.Distance))
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gathering metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, format.exposition())
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return nil, fmt.Errorf("finalizing %s document: %w", format, err)
		}
	}

	return buf.Bytes(), nil
}
