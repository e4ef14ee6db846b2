package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// DeutscherWetterdienstID is the source id of DeutscherWetterdienstProvider.
const DeutscherWetterdienstID = "de.dwd"

var errNoStation = errors.New("no weather station in response")

// DeutscherWetterdienstProvider reads DWD observations through the Bright Sky API.
type DeutscherWetterdienstProvider struct {
	upstream
	baseURL string
}

func NewDeutscherWetterdienstProvider(cfg config.Provider) *DeutscherWetterdienstProvider {
	return &DeutscherWetterdienstProvider{
		upstream: newUpstream(DeutscherWetterdienstID, cfg),
		baseURL:  "https://api.brightsky.dev/current_weather",
	}
}

type brightSkyResponse struct {
	Weather struct {
		Temperature      *float64 `json:"temperature" validate:"required"`
		RelativeHumidity *float64 `json:"relative_humidity"`
	} `json:"weather"`
	Sources []struct {
		StationName string   `json:"station_name"`
		Lat         float64  `json:"lat"`
		Lon         float64  `json:"lon"`
		Distance    *float64 `json:"distance"`
	} `json:"sources"`
}

func (p *DeutscherWetterdienstProvider) Fetch(ctx context.Context, client *http.Client, responses *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(req.Query.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(req.Query.Longitude, 'f', -1, 64))

	var payload brightSkyResponse
	if err := p.getJSON(ctx, client, responses, p.baseURL+"?"+values.Encode(), &payload); err != nil {
		return weather.Weather{}, err
	}
	if len(payload.Sources) == 0 {
		return weather.Weather{}, errNoStation
	}

	station := payload.Sources[0]
	w := reading(req, p.id, weather.Coordinates{Latitude: station.Lat, Longitude: station.Lon}, weather.Celsius(*payload.Weather.Temperature))
	if station.Distance != nil {
		d := weather.Meters(*station.Distance)
		w.Distance = &d
	}
	if station.StationName != "" {
		w.City = &station.StationName
	}
	w.RelativeHumidity = ratioFromPercent(payload.Weather.RelativeHumidity)
	return w, nil
}
