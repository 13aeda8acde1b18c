package ports

import (
	"context"
	"visit-scheduling-service/internal/domain"
)

// Persistent address -> coordinate store backing the in-process geocode cache.
// Keys are normalized addresses.
type GeocodeStore interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinate, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinate) error
}

// Cache of pairwise travel estimates keyed by coordinate pair.
type DistanceStore interface {
	GetMany(ctx context.Context, pairs []CoordinatePair) (map[CoordinatePair]domain.Estimate, error)
	PutMany(ctx context.Context, results map[CoordinatePair]domain.Estimate) error
}

type CoordinatePair struct {
	From domain.Coordinate
	To   domain.Coordinate
}

func (p CoordinatePair) Key() string { return p.From.Key() + "|" + p.To.Key() }
