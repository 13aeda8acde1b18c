package ports

import (
	"context"
	"visit-scheduling-service/internal/domain"
)

// Contract for resolving a postal address to a coordinate.
// Failures wrap domain.ErrGeocodeNotFound or domain.ErrProviderUnavailable.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinate, error)
}
