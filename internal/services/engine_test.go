package services

import (
	"context"
	"testing"
	"time"
	"visit-scheduling-service/internal/adapters/distance"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *fakeGeocoder) {
	t.Helper()
	fake := newFake()
	geocoder := NewCachingGeocoder(fake, GeocoderOptions{Backoff: time.Millisecond})
	e, err := NewEngine(geocoder, distance.NewFlatMockDistanceProvider(), DefaultConfig(),
		WithFallback(distance.NewHaversineProvider(30)))
	require.NoError(t, err)
	return e, fake
}

func TestEngineGeocodeProperties(t *testing.T) {
	e, fake := newTestEngine(t)

	known := pt(26.2, -81.7)
	props := []*domain.Property{
		{ID: 1, Address: "already located", Coordinate: &known, VisitFrequencyDays: 7},
		{ID: 2, Address: "12 Palm Way, Naples FL", VisitFrequencyDays: 7},
		{ID: 3, Address: "1 Nowhere Rd", VisitFrequencyDays: 7},
	}

	res, err := e.GeocodeProperties(context.Background(), props)
	require.NoError(t, err)

	assert.Equal(t, map[int64]domain.Coordinate{2: palmWay}, res.Resolved)
	assert.Equal(t, []int64{3}, res.NotFound)
	require.Len(t, res.Properties, 3)
	require.NotNil(t, res.Properties[1].Coordinate)
	assert.Equal(t, palmWay, *res.Properties[1].Coordinate)
	assert.Nil(t, props[1].Coordinate, "input properties are not modified")
	assert.Equal(t, 2, fake.Calls())
}

func TestEngineGeocodePropertiesAbortsWhenUnavailable(t *testing.T) {
	e, fake := newTestEngine(t)
	unavailable := &domain.ProviderError{Op: "geocode", Status: 503, Err: domain.ErrProviderUnavailable}
	fake.errs = []error{unavailable, unavailable}

	_, err := e.GeocodeProperties(context.Background(), []*domain.Property{{ID: 2, Address: "12 Palm Way, Naples FL", VisitFrequencyDays: 7}})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestEngineCandidatesFollowRankOrder(t *testing.T) {
	e, _ := newTestEngine(t)
	c := pt(0, 1)
	props := []*domain.Property{
		{ID: 1, VisitFrequencyDays: 10, LastVisitDate: daysAgo(1), Coordinate: &c},
		{ID: 2, VisitFrequencyDays: 10},
	}

	ranks, err := e.Rank(props, day)
	require.NoError(t, err)
	cands := e.Candidates(props, ranks, 0)

	require.Len(t, cands, 2)
	assert.Equal(t, int64(2), cands[0].Stop.PropertyID)
	assert.False(t, cands[0].Geocoded)
	assert.Equal(t, int64(1), cands[1].Stop.PropertyID)
	assert.True(t, cands[1].Geocoded)
	assert.Equal(t, c, cands[1].Stop.Coordinate)
	assert.InDelta(t, 45.0, cands[1].Stop.ServiceMinutes, 1e-9)
}

func TestEngineOptimizeFetchesCosts(t *testing.T) {
	e, _ := newTestEngine(t)

	plan, err := e.Optimize(context.Background(), OptimizeRequest{
		DepartAt: at(8, 0),
		Origin:   pt(0, 0),
		Stops:    []domain.Stop{{PropertyID: 2, Coordinate: pt(4, 0)}, {PropertyID: 1, Coordinate: pt(0, 3)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, propertyIDs(plan.OrderedStops))
	assert.InDelta(t, 8.0, plan.TotalDistanceMiles, 1e-9)
	assert.False(t, plan.Estimated)
}

func TestEngineScheduleMany(t *testing.T) {
	e, _ := newTestEngine(t)

	reqs := []ScheduleRequest{}
	for tech := int64(1); tech <= 5; tech++ {
		reqs = append(reqs, ScheduleRequest{
			TechnicianID:    tech,
			Date:            day,
			Origin:          pt(0, 0),
			WorkingHours:    workday(),
			CandidatePool:   []domain.Candidate{candidate(tech*10, 1.0, pt(0, float64(tech)), 30)},
			CapacityMinutes: 480,
		})
	}

	plans, err := e.ScheduleMany(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, plans, 5)
	for i, p := range plans {
		assert.Equal(t, reqs[i].TechnicianID, p.TechnicianID)
		assert.Equal(t, []int64{reqs[i].TechnicianID * 10}, propertyIDs(p.OrderedStops))
	}

	bad := append([]ScheduleRequest{}, reqs...)
	bad[2].CapacityMinutes = -1
	_, err = e.ScheduleMany(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
