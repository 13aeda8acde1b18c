package distance

import (
	"context"
	"visit-scheduling-service/internal/domain"
)

// HaversineProvider estimates costs without any network call. Every result is
// flagged Estimated.
type HaversineProvider struct {
	SpeedMph float64
}

func NewHaversineProvider(speedMph float64) *HaversineProvider {
	if speedMph <= 0 {
		speedMph = 30
	}
	return &HaversineProvider{SpeedMph: speedMph}
}

func (h *HaversineProvider) Pairwise(_ context.Context, a, b domain.Coordinate) (domain.Estimate, error) {
	miles := domain.HaversineMiles(a, b)
	return domain.Estimate{
		DistanceMiles:   miles,
		DurationMinutes: miles / h.SpeedMph * 60,
		Estimated:       true,
	}, nil
}

func (h *HaversineProvider) Matrix(_ context.Context, origins, destinations []domain.Coordinate) (domain.CostMatrix, error) {
	m := zeroMatrix(len(origins), len(destinations))
	m.Estimated = true
	for i, a := range origins {
		for j, b := range destinations {
			miles := domain.HaversineMiles(a, b)
			m.Distances[i][j] = miles
			m.Durations[i][j] = miles / h.SpeedMph * 60
		}
	}
	return m, nil
}
