package distance

import (
	"context"
	"testing"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversineProviderFlagsEstimates(t *testing.T) {
	h := NewHaversineProvider(60)
	a := domain.Coordinate{Lat: 0, Lon: 0}
	b := domain.Coordinate{Lat: 1, Lon: 0}

	e, err := h.Pairwise(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, e.Estimated)
	// At 60 mph minutes equal miles.
	assert.InDelta(t, e.DistanceMiles, e.DurationMinutes, 1e-9)

	m, err := h.Matrix(context.Background(), []domain.Coordinate{a, b}, []domain.Coordinate{a, b})
	require.NoError(t, err)
	assert.True(t, m.Estimated)
	assert.Equal(t, 2, m.Size())
	assert.Equal(t, 0.0, m.Distances[0][0])
	assert.InDelta(t, e.DistanceMiles, m.Distances[0][1], 1e-9)
}
