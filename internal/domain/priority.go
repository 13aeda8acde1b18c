package domain

import "math"

type Bucket string

const (
	BucketOverdue  Bucket = "overdue"
	BucketDueSoon  Bucket = "due-soon"
	BucketUpcoming Bucket = "upcoming"
)

// Urgency of visiting a property as of a given date.
// DaysSinceLastVisit is nil and UrgencyRatio is +Inf for a never-visited property.
type PriorityScore struct {
	PropertyID         int64
	DaysSinceLastVisit *int
	VisitFrequencyDays int
	UrgencyRatio       float64
	Bucket             Bucket
}

func (s PriorityScore) NeverVisited() bool { return s.DaysSinceLastVisit == nil }

// BucketFor classifies an urgency ratio against the configured cutoffs.
func BucketFor(ratio, overdue, dueSoon float64) Bucket {
	switch {
	case math.IsInf(ratio, 1) || ratio >= overdue:
		return BucketOverdue
	case ratio >= dueSoon:
		return BucketDueSoon
	default:
		return BucketUpcoming
	}
}

// A ranked property ready to be slotted into a technician's day.
// Geocoded is false when the property has no coordinate yet; the scheduler
// skips and reports such candidates.
type Candidate struct {
	Score    PriorityScore
	Stop     Stop
	Geocoded bool
}
