package config

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/lstrojny/prometheus-weather-exporter/internal/logging"
	"github.com/lstrojny/prometheus-weather-exporter/internal/weather"
)

// ErrNoGeocoder means an address needs resolving but no geocoder is set up.
var ErrNoGeocoder = errors.New("address given but geocoding is not configured")

// Location is a named place, given by coordinates or by an address.
type Location struct {
	Latitude  *float64 `yaml:"latitude" validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `yaml:"longitude" validate:"omitempty,min=-180,max=180"`
	Address   *Address `yaml:"address"`
}

// Address is resolved to coordinates at startup.
type Address struct {
	Street     string `yaml:"street"`
	Number     int    `yaml:"number" validate:"min=0"`
	City       string `yaml:"city"`
	State      string `yaml:"state"`
	Country    string `yaml:"country"`
	PostalCode string `yaml:"postal_code"`
}

func (l Location) hasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

func (l Location) validate() error {
	if (l.Latitude == nil) != (l.Longitude == nil) {
		return errors.New("latitude and longitude must be given together")
	}
	if !l.hasCoordinates() {
		if l.Address == nil {
			return ErrLocationWithoutPosition
		}
		return nil
	}
	if c := (weather.Coordinates{Latitude: *l.Latitude, Longitude: *l.Longitude}); !c.Valid() {
		return fmt.Errorf("coordinates %s out of range", c)
	}
	return nil
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address Address) (weather.Coordinates, error)
}

// GoogleGeocoder resolves addresses with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey string
}

// NewGoogleGeocoder returns nil when apiKey is empty.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	if apiKey == "" {
		return nil
	}
	return &GoogleGeocoder{apiKey: apiKey}
}

// The geocoder library keeps its key in a package variable.
var geocoderMu sync.Mutex

// Geocode implements Geocoder.
func (g *GoogleGeocoder) Geocode(_ context.Context, address Address) (weather.Coordinates, error) {
	if g == nil {
		return weather.Coordinates{}, ErrNoGeocoder
	}

	geocoderMu.Lock()
	defer geocoderMu.Unlock()

	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{
		Street:     address.Street,
		Number:     address.Number,
		City:       address.City,
		State:      address.State,
		Country:    address.Country,
		PostalCode: address.PostalCode,
	})
	if err != nil {
		return weather.Coordinates{}, fmt.Errorf("geocoding %s: %w", address, err)
	}
	return weather.Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}

func (a Address) String() string {
	s := a.City
	for _, part := range []string{a.PostalCode, a.State, a.Country} {
		if part != "" {
			s += ", " + part
		}
	}
	if a.Street != "" {
		s = a.Street + ", " + s
	}
	return s
}

// Requests returns one request per location, ordered by name. Addresses are
// resolved with g, which may be nil when every location has coordinates.
func (c *Config) Requests(ctx context.Context, g Geocoder) ([]weather.Request[weather.Coordinates], error) {
	names := make([]string, 0, len(c.Locations))
	for name := range c.Locations {
		names = append(names, name)
	}
	sort.Strings(names)

	logger := logging.FromContext(ctx)
	requests := make([]weather.Request[weather.Coordinates], 0, len(names))
	for _, name := range names {
		loc := c.Locations[name]

		var coords weather.Coordinates
		switch {
		case loc.hasCoordinates():
			coords = weather.Coordinates{Latitude: *loc.Latitude, Longitude: *loc.Longitude}
		case g == nil:
			return nil, fmt.Errorf("location %q: %w", name, ErrNoGeocoder)
		default:
			var err error
			if coords, err = g.Geocode(ctx, *loc.Address); err != nil {
				return nil, fmt.Errorf("location %q: %w", name, err)
			}
			logger.Info("Resolved location address", "location", name, "coordinates", coords.String())
		}

		if !coords.Valid() {
			return nil, fmt.Errorf("location %q: coordinates %s out of range", name, coords)
		}
		requests = append(requests, weather.Request[weather.Coordinates]{Name: name, Query: coords})
	}

	return requests, nil
}
