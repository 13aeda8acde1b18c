package domain

import (
	"fmt"
	"math"
)

const (
	metersPerMile    = 1609.344
	earthRadiusMiles = 3958.7613
)

// Immutable geographic coordinate (latitude, longitude in degrees).
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects coordinates outside the WGS84 lat/lon range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: coordinate (%v, %v) is not finite", ErrInvalidInput, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, c.Lon)
	}
	return nil
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinate) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

// Key rounds to 5 decimal places (~1m) so equal points share cache entries.
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.5f,%.5f", c.Lat, c.Lon)
}

func MetersToMiles(meters float64) float64 {
	return meters / metersPerMile
}

func SecondsToMinutes(seconds float64) float64 {
	return seconds / 60
}

// HaversineMiles is the great-circle distance between two coordinates.
// It underestimates road distance.
func HaversineMiles(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMiles * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
