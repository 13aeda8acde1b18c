package services

import (
	"fmt"
	"math"
	"sort"
	"time"
	"visit-scheduling-service/internal/domain"
)

type PriorityConfig struct {
	OverdueThreshold float64
	DueSoonThreshold float64
}

// Rank scores every property by how overdue its next visit is as of asOf and
// returns the scores most urgent first.
//
// The urgency ratio is days since the last visit over the visit frequency.
// A property never visited has ratio +Inf and is always overdue. Ties are
// broken by days since the last visit (never visited first), then by id.
func Rank(properties []*domain.Property, asOf time.Time, cfg PriorityConfig) ([]domain.PriorityScore, error) {
	scores := make([]domain.PriorityScore, 0, len(properties))
	for i, p := range properties {
		if p == nil {
			return nil, fmt.Errorf("rank: %w: property at index %d is nil", domain.ErrInvalidInput, i)
		}
		if p.VisitFrequencyDays <= 0 {
			return nil, fmt.Errorf("rank: %w: property_id=%d has visit frequency %d",
				domain.ErrInvalidInput, p.ID, p.VisitFrequencyDays)
		}

		score := domain.PriorityScore{
			PropertyID:         p.ID,
			VisitFrequencyDays: p.VisitFrequencyDays,
			UrgencyRatio:       math.Inf(1),
		}
		if p.LastVisitDate != nil {
			days := DaysBetween(*p.LastVisitDate, asOf)
			score.DaysSinceLastVisit = &days
			score.UrgencyRatio = float64(days) / float64(p.VisitFrequencyDays)
		}
		score.Bucket = domain.BucketFor(score.UrgencyRatio, cfg.OverdueThreshold, cfg.DueSoonThreshold)
		scores = append(scores, score)
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return moreUrgent(scores[i], scores[j])
	})
	return scores, nil
}

// DaysBetween counts whole calendar days between the UTC dates of from and to.
// A from date after to counts as zero.
func DaysBetween(from, to time.Time) int {
	f := utcDate(from)
	t := utcDate(to)
	if !t.After(f) {
		return 0
	}
	return int(t.Sub(f).Hours() / 24)
}

func utcDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// moreUrgent is the ranking order: ratio desc, days desc with never visited
// first, id asc.
func moreUrgent(a, b domain.PriorityScore) bool {
	if a.UrgencyRatio != b.UrgencyRatio {
		return a.UrgencyRatio > b.UrgencyRatio
	}
	switch {
	case a.NeverVisited() != b.NeverVisited():
		return a.NeverVisited()
	case !a.NeverVisited() && *a.DaysSinceLastVisit != *b.DaysSinceLastVisit:
		return *a.DaysSinceLastVisit > *b.DaysSinceLastVisit
	}
	return a.PropertyID < b.PropertyID
}
