package providers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// OpenMeteoID is the source id of OpenMeteoProvider.
const OpenMeteoID = "com.open-meteo"

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
type OpenMeteoProvider struct {
	upstream
	baseURL string
}

func NewOpenMeteoProvider(cfg config.Provider) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		upstream: newUpstream(OpenMeteoID, cfg),
		baseURL:  "https://api.open-meteo.com/v1/forecast",
	}
}

type openMeteoResponse struct {
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
	Current   struct {
		Temperature      *float64 `json:"temperature_2m" validate:"required"`
		RelativeHumidity *float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, client *http.Client, responses *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(req.Query.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(req.Query.Longitude, 'f', -1, 64))
	values.Set("current", "temperature_2m,relative_humidity_2m")

	var payload openMeteoResponse
	if err := p.getJSON(ctx, client, responses, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Weather{}, err
	}

	// Coordinates are those of the model grid point.
	w := reading(req, p.id, weather.Coordinates{Latitude: *payload.Latitude, Longitude: *payload.Longitude}, weather.Celsius(*payload.Current.Temperature))
	w.RelativeHumidity = ratioFromPercent(payload.Current.RelativeHumidity)
	return w, nil
}
