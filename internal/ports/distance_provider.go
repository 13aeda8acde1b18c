package ports

import (
	"context"
	"visit-scheduling-service/internal/domain"
)

// Contract for retrieving travel distance and duration between coordinates.
type DistanceProvider interface {
	// Return travel distance and estimated duration between two points.
	Pairwise(ctx context.Context, a, b domain.Coordinate) (domain.Estimate, error)
	// Return all origin x destination costs in one call.
	Matrix(ctx context.Context, origins, destinations []domain.Coordinate) (domain.CostMatrix, error)
}
