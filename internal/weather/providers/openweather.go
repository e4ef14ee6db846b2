package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// OpenWeatherID is the source id of OpenWeatherProvider.
const OpenWeatherID = "org.openweathermap"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	upstream
	apiKey  string
	baseURL string
}

func NewOpenWeatherProvider(cfg config.KeyedProvider) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		upstream: newUpstream(OpenWeatherID, cfg.Provider),
		apiKey:   cfg.APIKey,
		baseURL:  "https://api.openweathermap.org/data/2.5/weather",
	}
}

type openWeatherResponse struct {
	Name  string `json:"name"`
	Coord struct {
		Lat *float64 `json:"lat" validate:"required"`
		Lon *float64 `json:"lon" validate:"required"`
	} `json:"coord"`
	Main struct {
		Temp     *float64 `json:"temp" validate:"required"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, client *http.Client, responses *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	if p.apiKey == "" {
		return weather.Weather{}, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(req.Query.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(req.Query.Longitude, 'f', -1, 64))
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")

	var payload openWeatherResponse
	if err := p.getJSON(ctx, client, responses, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Weather{}, err
	}

	w := reading(req, p.id, weather.Coordinates{Latitude: *payload.Coord.Lat, Longitude: *payload.Coord.Lon}, weather.Celsius(*payload.Main.Temp))
	if payload.Name != "" {
		w.City = &payload.Name
	}
	w.RelativeHumidity = ratioFromPercent(payload.Main.Humidity)
	return w, nil
}
