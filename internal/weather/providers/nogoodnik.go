package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// NogoodnikID is the source id of Nogoodnik.
const NogoodnikID = "local.nogoodnik"

// Nogoodnik fails every request. It is useful to observe how failing
// providers are reported.
type Nogoodnik struct{}

func (Nogoodnik) ID() string { return NogoodnikID }

func (Nogoodnik) Fetch(context.Context, *http.Client, *weather.ResponseCache, weather.Request[weather.Coordinates]) (weather.Weather, error) {
	return weather.Weather{}, ErrAlwaysFails
}

func (Nogoodnik) RefreshInterval() time.Duration { return 0 }

func (Nogoodnik) CacheCardinality() int { return 1 }
