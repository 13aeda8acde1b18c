package services

import (
	"math"
	"testing"
	"time"
	"visit-scheduling-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultPriority = PriorityConfig{OverdueThreshold: 1.0, DueSoonThreshold: 0.7}

func TestRankOrderAndBuckets(t *testing.T) {
	props := []*domain.Property{
		{ID: 1, VisitFrequencyDays: 10, LastVisitDate: daysAgo(5)},
		{ID: 2, VisitFrequencyDays: 7, LastVisitDate: daysAgo(7)},
		{ID: 3, VisitFrequencyDays: 10, LastVisitDate: daysAgo(7)},
		{ID: 4, VisitFrequencyDays: 30},
		{ID: 5, VisitFrequencyDays: 14, LastVisitDate: daysAgo(14)},
	}

	scores, err := Rank(props, day, defaultPriority)
	require.NoError(t, err)

	ids := []int64{}
	for _, s := range scores {
		ids = append(ids, s.PropertyID)
	}
	assert.Equal(t, []int64{4, 5, 2, 3, 1}, ids)

	byID := map[int64]domain.PriorityScore{}
	for _, s := range scores {
		byID[s.PropertyID] = s
	}

	never := byID[4]
	assert.True(t, never.NeverVisited())
	assert.True(t, math.IsInf(never.UrgencyRatio, 1))
	assert.Equal(t, domain.BucketOverdue, never.Bucket)

	assert.Equal(t, domain.BucketOverdue, byID[2].Bucket)
	assert.Equal(t, domain.BucketDueSoon, byID[3].Bucket)
	assert.Equal(t, domain.BucketUpcoming, byID[1].Bucket)
	require.NotNil(t, byID[1].DaysSinceLastVisit)
	assert.Equal(t, 5, *byID[1].DaysSinceLastVisit)
	assert.InDelta(t, 0.5, byID[1].UrgencyRatio, 1e-12)
}

func TestRankTiesBreakByID(t *testing.T) {
	props := []*domain.Property{
		{ID: 9, VisitFrequencyDays: 7, LastVisitDate: daysAgo(3)},
		{ID: 3, VisitFrequencyDays: 7, LastVisitDate: daysAgo(3)},
		{ID: 5, VisitFrequencyDays: 1},
	}

	scores, err := Rank(props, day, defaultPriority)
	require.NoError(t, err)
	assert.Equal(t, int64(5), scores[0].PropertyID)
	assert.Equal(t, int64(3), scores[1].PropertyID)
	assert.Equal(t, int64(9), scores[2].PropertyID)
}

func TestRankUrgencyMonotonic(t *testing.T) {
	last := day.AddDate(0, 0, -30)
	prop := []*domain.Property{{ID: 1, VisitFrequencyDays: 14, LastVisitDate: &last}}

	prev := -1.0
	for d := 0; d <= 40; d++ {
		scores, err := Rank(prop, last.AddDate(0, 0, d), defaultPriority)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, scores[0].UrgencyRatio, prev)
		prev = scores[0].UrgencyRatio
	}
}

func TestRankFutureVisitCountsAsZero(t *testing.T) {
	future := day.AddDate(0, 0, 3)
	scores, err := Rank([]*domain.Property{{ID: 1, VisitFrequencyDays: 7, LastVisitDate: &future}}, day, defaultPriority)
	require.NoError(t, err)
	assert.Equal(t, 0, *scores[0].DaysSinceLastVisit)
	assert.Zero(t, scores[0].UrgencyRatio)
	assert.Equal(t, domain.BucketUpcoming, scores[0].Bucket)
}

func TestRankInvalidInput(t *testing.T) {
	_, err := Rank([]*domain.Property{{ID: 1, VisitFrequencyDays: 0}}, day, defaultPriority)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Rank([]*domain.Property{nil}, day, defaultPriority)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDaysBetweenUsesUTCDates(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	// 23:00 EST on Jan 1 is Jan 2 in UTC.
	from := time.Date(2026, 1, 1, 23, 0, 0, 0, est)
	to := time.Date(2026, 1, 3, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(from, to))
	assert.Equal(t, 0, DaysBetween(to, from))
}
