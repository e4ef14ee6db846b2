package providers

import (
	"github.com/lstrojny/prometheus-weather-exporter/internal/config"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// FromConfig creates the enabled providers in a fixed order.
func FromConfig(cfg config.Providers) []weather.Provider {
	var out []weather.Provider
	if cfg.OpenWeather != nil {
		out = append(out, NewOpenWeatherProvider(*cfg.OpenWeather))
	}
	if cfg.Meteoblue != nil {
		out = append(out, NewMeteoblueProvider(*cfg.Meteoblue))
	}
	if cfg.Tomorrow != nil {
		out = append(out, NewTomorrowProvider(*cfg.Tomorrow))
	}
	if cfg.DeutscherWetterdienst != nil {
		out = append(out, NewDeutscherWetterdienstProvider(*cfg.DeutscherWetterdienst))
	}
	if cfg.OpenMeteo != nil {
		out = append(out, NewOpenMeteoProvider(*cfg.OpenMeteo))
	}
	if cfg.Nogoodnik != nil {
		out = append(out, Nogoodnik{})
	}
	return out
}
