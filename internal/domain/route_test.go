package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostMatrixSub(t *testing.T) {
	m := CostMatrix{
		Distances: [][]float64{{0, 1, 2}, {3, 0, 4}, {5, 6, 0}},
		Durations: [][]float64{{0, 10, 20}, {30, 0, 40}, {50, 60, 0}},
		Estimated: true,
	}
	require.Equal(t, 3, m.Size())

	sub := m.Sub([]int{0, 2})
	assert.Equal(t, 2, sub.Size())
	assert.Equal(t, [][]float64{{0, 2}, {5, 0}}, sub.Distances)
	assert.Equal(t, [][]float64{{0, 20}, {50, 0}}, sub.Durations)
	assert.True(t, sub.Estimated)
}

func TestCostMatrixSizeMismatch(t *testing.T) {
	m := CostMatrix{
		Distances: [][]float64{{0, 1}, {1, 0}},
		Durations: [][]float64{{0, 1}},
	}
	assert.Equal(t, -1, m.Size())
}

func TestRoutePlanFinishAndInfeasible(t *testing.T) {
	depart := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	p := &RoutePlan{DepartAt: depart}
	assert.Equal(t, depart, p.FinishAt())
	assert.Empty(t, p.InfeasibleStops())

	p.OrderedStops = []Stop{
		{PropertyID: 1, DepartAt: depart.Add(time.Hour)},
		{PropertyID: 2, DepartAt: depart.Add(2 * time.Hour), Infeasible: true},
	}
	assert.Equal(t, depart.Add(2*time.Hour), p.FinishAt())
	assert.Equal(t, []int64{2}, p.InfeasibleStops())
}

func TestBucketFor(t *testing.T) {
	assert.Equal(t, BucketOverdue, BucketFor(1.0, 1.0, 0.7))
	assert.Equal(t, BucketDueSoon, BucketFor(0.7, 1.0, 0.7))
	assert.Equal(t, BucketUpcoming, BucketFor(0.69, 1.0, 0.7))
}

func TestTechnicianWorkingHours(t *testing.T) {
	tech := Technician{WorkStartMinute: 8 * 60, WorkEndMinute: 17 * 60}
	wh := tech.WorkingHours(time.Date(2026, 3, 2, 15, 4, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), wh.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC), wh.End)
	assert.InDelta(t, 540.0, wh.Minutes(), 1e-9)
	assert.NoError(t, wh.Validate())
}

func TestRoutePlanAssignID(t *testing.T) {
	p := &RoutePlan{}
	id := p.AssignID()
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, id, p.AssignID())
}
