package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// MeteoblueID is the source id of MeteoblueProvider.
const MeteoblueID = "com.meteoblue"

// MeteoblueProvider implements the weather.Provider interface for Meteoblue.
type MeteoblueProvider struct {
	upstream
	apiKey  string
	baseURL string
}

func NewMeteoblueProvider(cfg config.KeyedProvider) *MeteoblueProvider {
	return &MeteoblueProvider{
		upstream: newUpstream(MeteoblueID, cfg.Provider),
		apiKey:   cfg.APIKey,
		baseURL:  "https://my.meteoblue.com/packages/current",
	}
}

type meteoblueResponse struct {
	Metadata struct {
		Name      string   `json:"name"`
		Latitude  *float64 `json:"latitude" validate:"required"`
		Longitude *float64 `json:"longitude" validate:"required"`
	} `json:"metadata"`
	DataCurrent struct {
		Temperature *float64 `json:"temperature" validate:"required"`
	} `json:"data_current"`
}

// signedURL appends the sig parameter: the hex encoded HMAC-SHA256 of
// path?query keyed with the API key.
func (p *MeteoblueProvider) signedURL(req weather.Request[weather.Coordinates]) (string, error) {
	base, err := url.Parse(p.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing meteoblue url: %w", err)
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(req.Query.Latitude, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(req.Query.Longitude, 'f', -1, 64))
	values.Set("format", "json")
	values.Set("apikey", p.apiKey)
	query := values.Encode()

	mac := hmac.New(sha256.New, []byte(p.apiKey))
	mac.Write([]byte(base.Path + "?" + query))

	base.RawQuery = query + "&sig=" + hex.EncodeToString(mac.Sum(nil))
	return base.String(), nil
}

func (p *MeteoblueProvider) Fetch(ctx context.Context, client *http.Client, responses *weather.ResponseCache, req weather.Request[weather.Coordinates]) (weather.Weather, error) {
	if p.apiKey == "" {
		return weather.Weather{}, fmt.Errorf("meteoblue api key is not configured")
	}

	u, err := p.signedURL(req)
	if err != nil {
		return weather.Weather{}, err
	}

	var payload meteoblueResponse
	if err := p.getJSON(ctx, client, responses, u, &payload); err != nil {
		return weather.Weather{}, err
	}

	w := reading(req, p.id, weather.Coordinates{Latitude: *payload.Metadata.Latitude, Longitude: *payload.Metadata.Longitude}, weather.Celsius(*payload.DataCurrent.Temperature))
	city := payload.Metadata.Name
	if city == "" {
		city = req.Name
	}
	w.City = &city
	return w, nil
}
