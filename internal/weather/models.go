package weather

import (
	"fmt"
	"math"
)

// Celsius is a temperature in degrees celsius.
type Celsius float64

// Meters is a distance in meters.
type Meters float64

// Ratio is a value between 0 and 1, e.g. relative humidity.
type Ratio float64

// RatioFromPercent converts a percentage (0-100) to a Ratio.
func RatioFromPercent(percent float64) Ratio {
	return Ratio(percent / 100)
}

// Coordinates is a point on earth in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether latitude is within ±90 and longitude within ±180.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%g,%g", c.Latitude, c.Longitude)
}

// Request is a named provider query. Q is usually Coordinates.
type Request[Q any] struct {
	Name  string
	Query Q
}

// Weather is the normalized reading a provider produces for one request.
type Weather struct {
	// Location is the configured name of the request.
	Location string
	// Source is the id of the provider that produced the reading.
	Source string
	// City is the place name reported by the provider, if any.
	City *string
	// Coordinates of the measurement as reported by the provider.
	Coordinates Coordinates
	// Distance between the requested and the reported coordinates.
	Distance         *Meters
	Temperature      Celsius
	RelativeHumidity *Ratio
}

// meanEarthRadius is the IUGG mean radius in meters.
const meanEarthRadius = 6_371_008.8

// Distance returns the great-circle distance between a and b using the
// haversine formula.
func Distance(a, b Coordinates) Meters {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return Meters(2 * meanEarthRadius * math.Asin(math.Min(1, math.Sqrt(h))))
}
