package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"visit-scheduling-service/internal/adapters/distance"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowORS never answers within the client timeout.
func slowORS(t *testing.T, hits *atomic.Int32) *distance.ORSClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	c, err := distance.NewORSClient(distance.ORSOptions{
		APIKey:  "test",
		BaseURL: server.URL,
		Timeout: 100 * time.Millisecond,
		Backoff: time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func TestBuildCostMatrixRetriesTimedOutAttemptThenFallsBack(t *testing.T) {
	var hits atomic.Int32
	ors := slowORS(t, &hits)
	stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(26.15, -81.75), ServiceMinutes: 30}}

	m, err := BuildCostMatrix(context.Background(), ors, pt(26.1, -81.7), stops, CostOptions{
		Fallback:       distance.NewHaversineProvider(30),
		AttemptTimeout: 100 * time.Millisecond,
		Backoff:        time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, m.Estimated)
	assert.Equal(t, 2, m.Size())
	assert.Greater(t, m.Durations[0][1], 0.0)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestBuildCostMatrixWithoutFallbackReportsUnavailable(t *testing.T) {
	var hits atomic.Int32
	ors := slowORS(t, &hits)
	stops := []domain.Stop{{PropertyID: 1, Coordinate: pt(26.15, -81.75)}}

	_, err := BuildCostMatrix(context.Background(), ors, pt(26.1, -81.7), stops, CostOptions{
		AttemptTimeout: 100 * time.Millisecond,
		Backoff:        time.Millisecond,
	})
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}

func TestBuildCostMatrixCallerCancellationSkipsFallback(t *testing.T) {
	down := distance.NewFlatMockDistanceProvider()
	down.Err = &domain.ProviderError{Op: "matrix", Status: 503, Err: domain.ErrProviderUnavailable}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildCostMatrix(ctx, down, pt(0, 0), []domain.Stop{{PropertyID: 1, Coordinate: pt(0, 1)}}, CostOptions{
		Fallback: distance.NewHaversineProvider(30),
		Backoff:  time.Millisecond,
	})
	require.Error(t, err)
	assert.Equal(t, 1, down.MatrixCalls)
}

func TestScheduleDaySurvivesHangingProvider(t *testing.T) {
	var hits atomic.Int32
	deps := flatDeps()
	deps.Provider = slowORS(t, &hits)
	deps.Costs = CostOptions{
		Fallback:       distance.NewHaversineProvider(30),
		AttemptTimeout: 100 * time.Millisecond,
		Backoff:        time.Millisecond,
	}

	req := ScheduleRequest{
		TechnicianID:    1,
		Date:            day,
		Origin:          pt(26.1, -81.7),
		WorkingHours:    workday(),
		CandidatePool:   []domain.Candidate{candidate(1, 1.0, pt(26.15, -81.75), 30)},
		CapacityMinutes: 480,
	}

	plan, err := ScheduleDay(context.Background(), req, deps)
	require.NoError(t, err)
	assert.True(t, plan.Estimated)
	assert.Equal(t, []int64{1}, propertyIDs(plan.OrderedStops))
}
