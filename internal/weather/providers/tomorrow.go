package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// TomorrowID is the source id of TomorrowProvider.
const TomorrowID = "io.tomorrow"

// TomorrowProvider implements the weather.Provider interface for Tomorrow.io.
type TomorrowProvider struct {
	upstream
	apiKey  string
	baseURL string
}

func NewTomorrowProvider(cfg config.KeyedProvider) *TomorrowProvider {
	return &TomorrowProvider{
		upstream: newUpstream(TomorrowID, cfg.Provider),
		apiKey:   cfg.APIKey,
		baseURL:  "https://api.tomorrow.io/v4/weather/realtime",
	}
}

type tomorrowResponse struct {
	Data struct {
		Values struct {
			Temperature *float64 `json:"temperature" validate:"required"`
			Humidity    *float64 `json:"humidity"`
		} `json:"values"`
	} `json:"data"`
	Location struct {
		Lat  *float64 `json:"lat"`
		Lon  *float64 `json:"lon"`
		Name string   `json:"name"`
	} `json:"location"`
}

func (p *TomorrowProvider) Fetch(ctx context.Context, client *http.Client, responses *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	if p.apiKey == "" {
		return weather.Weather{}, fmt.Errorf("tomorrow api key is not configured")
	}

	values := url.Values{}
	values.Set("location", req.Query.String())
	values.Set("units", "metric")
	values.Set("apikey", p.apiKey)

	var payload tomorrowResponse
	if err := p.getJSON(ctx, client, responses, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Weather{}, err
	}

	at := req.Query
	if payload.Location.Lat != nil && payload.Location.Lon != nil {
		at = weather.Coordinates{Latitude: *payload.Location.Lat, Longitude: *payload.Location.Lon}
	}

	w := reading(req, p.id, at, weather.Celsius(*payload.Data.Values.Temperature))
	if payload.Location.Name != "" {
		w.City = &payload.Location.Name
	}
	w.RelativeHumidity = ratioFromPercent(payload.Data.Values.Humidity)
	return w, nil
}
