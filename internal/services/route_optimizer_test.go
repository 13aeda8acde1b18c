package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeRouteTriangle(t *testing.T) {
	origin := pt(0, 0)
	cases := []struct {
		name  string
		stops []domain.Stop
	}{
		{
			name:  "given nearest first",
			stops: []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 3)}, {PropertyID: 2, Coordinate: pt(4, 0)}},
		},
		{
			name:  "given farthest first",
			stops: []domain.Stop{{PropertyID: 2, Coordinate: pt(4, 0)}, {PropertyID: 1, Coordinate: pt(0, 3)}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := OptimizeRoute(context.Background(), OptimizeRequest{
				TechnicianID: 7,
				Date:         day,
				DepartAt:     at(8, 0),
				Origin:       origin,
				Stops:        tc.stops,
				Costs:        flatCosts(t, origin, tc.stops),
			}, OptimizerConfig{TwoOptIterationCap: 200})
			require.NoError(t, err)

			assert.Equal(t, []int64{1, 2}, propertyIDs(plan.OrderedStops))
			assert.InDelta(t, 8.0, plan.TotalDistanceMiles, 1e-9)
			assert.InDelta(t, 8.0, plan.TotalDurationMinutes, 1e-9)
			assert.Equal(t, int64(7), plan.TechnicianID)
			require.Len(t, plan.Legs, 2)
			assert.Equal(t, -1, plan.Legs[0].FromStopIndex)
			assert.Equal(t, 0, plan.Legs[1].FromStopIndex)
			assert.Equal(t, 1, plan.Legs[1].ToStopIndex)
			assert.Equal(t, at(8, 3), plan.OrderedStops[0].ArriveAt)
			assert.Equal(t, at(8, 8), plan.OrderedStops[1].ArriveAt)
		})
	}
}

func scatteredStops() []domain.Stop {
	coords := []domain.Coordinate{
		pt(5, 1), pt(1, 7), pt(9, 9), pt(2, 2), pt(8, 3),
		pt(6, 6), pt(3, 9), pt(7, 0.5), pt(0.5, 4), pt(4, 4),
	}
	stops := make([]domain.Stop, len(coords))
	for i, c := range coords {
		stops[i] = domain.Stop{PropertyID: int64(100 + i), Coordinate: c, ServiceMinutes: 20}
	}
	return stops
}

func TestOptimizeRouteDeterministicAndValid(t *testing.T) {
	origin := pt(0, 0)
	stops := scatteredStops()
	req := OptimizeRequest{DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops)}

	first, err := OptimizeRoute(context.Background(), req, OptimizerConfig{TwoOptIterationCap: 200})
	require.NoError(t, err)
	second, err := OptimizeRoute(context.Background(), req, OptimizerConfig{TwoOptIterationCap: 200})
	require.NoError(t, err)

	assert.Equal(t, propertyIDs(first.OrderedStops), propertyIDs(second.OrderedStops))
	assert.Equal(t, first.TotalDistanceMiles, second.TotalDistanceMiles)

	// Every stop exactly once, legs contiguous.
	seen := map[int64]int{}
	for _, s := range first.OrderedStops {
		seen[s.PropertyID]++
	}
	assert.Len(t, seen, len(stops))
	for id, n := range seen {
		assert.Equal(t, 1, n, "property %d", id)
	}
	require.Len(t, first.Legs, len(first.OrderedStops))
	for i, leg := range first.Legs {
		assert.Equal(t, i-1, leg.FromStopIndex)
		assert.Equal(t, i, leg.ToStopIndex)
	}
	assert.InDelta(t, first.TravelMinutes+first.ServiceMinutes, first.TotalDurationMinutes, 1e-9)
	assert.InDelta(t, 200.0, first.ServiceMinutes, 1e-9)
	assert.Equal(t, first, second)
}

func TestOptimizeRouteNoWorseThanGivenOrder(t *testing.T) {
	origin := pt(0, 0)
	stops := scatteredStops()
	costs := flatCosts(t, origin, stops)

	naive := 0.0
	prev := origin
	for _, s := range stops {
		naive += math.Hypot(s.Coordinate.Lat-prev.Lat, s.Coordinate.Lon-prev.Lon)
		prev = s.Coordinate
	}

	plan, err := OptimizeRoute(context.Background(), OptimizeRequest{
		DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: costs,
	}, OptimizerConfig{TwoOptIterationCap: 200})
	require.NoError(t, err)
	assert.LessOrEqual(t, plan.TravelMinutes, naive+1e-9)

	noImprove, err := OptimizeRoute(context.Background(), OptimizeRequest{
		DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: costs,
	}, OptimizerConfig{TwoOptIterationCap: 0})
	require.NoError(t, err)
	assert.LessOrEqual(t, plan.TravelMinutes, noImprove.TravelMinutes+1e-9)
}

func TestOptimizeRouteCancelled(t *testing.T) {
	origin := pt(0, 0)
	stops := scatteredStops()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := OptimizeRoute(ctx, OptimizeRequest{
		DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops),
	}, OptimizerConfig{TwoOptIterationCap: 200})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestOptimizeRouteWindows(t *testing.T) {
	origin := pt(0, 0)

	t.Run("late arrival is flagged and kept", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 10), ServiceMinutes: 15, TimeWindow: window(at(8, 0), at(8, 5))}}
		plan, err := OptimizeRoute(context.Background(), OptimizeRequest{
			DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops),
		}, OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)
		require.Len(t, plan.OrderedStops, 1)
		assert.True(t, plan.OrderedStops[0].Infeasible)
		assert.Equal(t, []int64{1}, plan.InfeasibleStops())
	})

	t.Run("early arrival waits", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 3), ServiceMinutes: 30, TimeWindow: window(at(9, 0), at(10, 0))}}
		plan, err := OptimizeRoute(context.Background(), OptimizeRequest{
			DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops),
		}, OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)
		s := plan.OrderedStops[0]
		assert.False(t, s.Infeasible)
		assert.Equal(t, at(8, 3), s.ArriveAt)
		assert.Equal(t, at(9, 0), s.StartAt)
		assert.Equal(t, at(9, 30), s.DepartAt)
		assert.InDelta(t, 57.0, s.WaitMinutes, 1e-9)
		assert.InDelta(t, 33.0, plan.TotalDurationMinutes, 1e-9)
		assert.InDelta(t, 57.0, plan.WaitMinutes, 1e-9)
	})

	t.Run("fixed appointment anchors the day", func(t *testing.T) {
		fixed := domain.Stop{
			PropertyID: 10, Coordinate: pt(0, 10), ServiceMinutes: 10,
			TimeWindow: window(at(8, 30), at(8, 40)), Fixed: true,
		}
		stops := []domain.Stop{
			{PropertyID: 20, Coordinate: pt(0, 20), ServiceMinutes: 10},
			fixed,
			{PropertyID: 30, Coordinate: pt(0, 1), ServiceMinutes: 10},
		}
		plan, err := OptimizeRoute(context.Background(), OptimizeRequest{
			DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops),
		}, OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)

		assert.Equal(t, []int64{30, 10, 20}, propertyIDs(plan.OrderedStops))
		assert.Empty(t, plan.InfeasibleStops())
		got := plan.OrderedStops[1]
		assert.True(t, got.Fixed)
		assert.Equal(t, fixed.TimeWindow, got.TimeWindow)
		assert.Equal(t, at(8, 30), got.StartAt)
	})
}

func TestOptimizeRouteEdgeCases(t *testing.T) {
	t.Run("no stops", func(t *testing.T) {
		plan, err := OptimizeRoute(context.Background(), OptimizeRequest{DepartAt: at(8, 0), Origin: pt(1, 1)},
			OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)
		assert.Empty(t, plan.OrderedStops)
		assert.Empty(t, plan.Legs)
		assert.Zero(t, plan.TotalDistanceMiles)
		assert.Zero(t, plan.TotalDurationMinutes)
		assert.Equal(t, at(8, 0), plan.FinishAt())
	})

	t.Run("window without departure time", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 1), TimeWindow: window(at(9, 0), at(10, 0))}}
		_, err := OptimizeRoute(context.Background(), OptimizeRequest{Origin: pt(0, 0), Stops: stops, Costs: flatCosts(t, pt(0, 0), stops)},
			OptimizerConfig{TwoOptIterationCap: 200})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("matrix shape mismatch", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 1)}, {PropertyID: 2, Coordinate: pt(0, 2)}}
		costs := flatCosts(t, pt(0, 0), stops[:1])
		_, err := OptimizeRoute(context.Background(), OptimizeRequest{DepartAt: at(8, 0), Origin: pt(0, 0), Stops: stops, Costs: costs},
			OptimizerConfig{TwoOptIterationCap: 200})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("negative service minutes", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 1), ServiceMinutes: -5}}
		_, err := OptimizeRoute(context.Background(), OptimizeRequest{DepartAt: at(8, 0), Origin: pt(0, 0), Stops: stops, Costs: flatCosts(t, pt(0, 0), stops)},
			OptimizerConfig{TwoOptIterationCap: 200})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("bad coordinate", func(t *testing.T) {
		stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(91, 0)}}
		_, err := OptimizeRoute(context.Background(), OptimizeRequest{DepartAt: at(8, 0), Origin: pt(0, 0), Stops: stops,
			Costs: domain.CostMatrix{Distances: [][]float64{{0, 1}, {1, 0}}, Durations: [][]float64{{0, 1}, {1, 0}}}},
			OptimizerConfig{TwoOptIterationCap: 200})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestOptimizeRouteEqualCostPrefersTighterWindow(t *testing.T) {
	origin := pt(0, 0)

	t.Run("windowed before open", func(t *testing.T) {
		stops := []domain.Stop{
			{PropertyID: 1, Coordinate: pt(0, 1), ServiceMinutes: 10},
			{PropertyID: 2, Coordinate: pt(1, 0), ServiceMinutes: 10, TimeWindow: window(at(8, 0), at(9, 0))},
		}
		req := OptimizeRequest{DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops)}

		plan, err := OptimizeRoute(context.Background(), req, OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, propertyIDs(plan.OrderedStops))
		assert.Empty(t, plan.InfeasibleStops())
	})

	t.Run("smaller slack first", func(t *testing.T) {
		stops := []domain.Stop{
			{PropertyID: 1, Coordinate: pt(0, 1), ServiceMinutes: 10, TimeWindow: window(at(8, 0), at(12, 0))},
			{PropertyID: 2, Coordinate: pt(1, 0), ServiceMinutes: 10, TimeWindow: window(at(8, 0), at(9, 0))},
		}
		req := OptimizeRequest{DepartAt: at(8, 0), Origin: origin, Stops: stops, Costs: flatCosts(t, origin, stops)}

		plan, err := OptimizeRoute(context.Background(), req, OptimizerConfig{TwoOptIterationCap: 200})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 1}, propertyIDs(plan.OrderedStops))
	})
}
