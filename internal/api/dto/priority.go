package dto

type PriorityResponse struct {
	PropertyID         int64  `json:"property_id"`
	Name               string `json:"name"`
	DaysSinceLastVisit *int   `json:"days_since_last_visit"`
	VisitFrequencyDays int    `json:"visit_frequency_days"`
	// Nil when the property has never been visited.
	UrgencyRatio *float64 `json:"urgency_ratio"`
	NeverVisited bool     `json:"never_visited"`
	Bucket       string   `json:"bucket"`
}

type ListPrioritiesResponse struct {
	AsOf       string             `json:"as_of"`
	Priorities []PriorityResponse `json:"priorities"`
}
