package services

import (
	"context"
	"testing"
	"time"
	"visit-scheduling-service/internal/adapters/distance"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func pt(lat, lon float64) domain.Coordinate {
	return domain.Coordinate{Lat: lat, Lon: lon}
}

func window(from, to time.Time) *domain.TimeWindow {
	return &domain.TimeWindow{Earliest: from, Latest: to}
}

// flatCosts builds a cost matrix on the planar mock metric (1 unit = 1 mile = 1 minute).
func flatCosts(t *testing.T, origin domain.Coordinate, stops []domain.Stop) domain.CostMatrix {
	t.Helper()
	m, err := BuildCostMatrix(context.Background(), distance.NewFlatMockDistanceProvider(), origin, stops, CostOptions{})
	require.NoError(t, err)
	return m
}

func propertyIDs(stops []domain.Stop) []int64 {
	out := make([]int64, 0, len(stops))
	for _, s := range stops {
		out = append(out, s.PropertyID)
	}
	return out
}

func daysAgo(n int) *time.Time {
	d := day.AddDate(0, 0, -n)
	return &d
}
