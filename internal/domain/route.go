package domain

import (
	"time"

	"github.com/google/uuid"
)

// One travel segment of a route. FromStopIndex is -1 for the origin.
type Leg struct {
	FromStopIndex   int
	ToStopIndex     int
	DistanceMiles   float64
	DurationMinutes float64
}

// Represents the planned itinerary for one technician on one day.
//
// Legs[i] connects OrderedStops[i-1] (or the origin when i == 0) to
// OrderedStops[i], so len(Legs) == len(OrderedStops). The route is open: there
// is no return leg to the origin.
//
// TotalDurationMinutes is travel plus service time. Waiting for a window to
// open is reported separately in WaitMinutes. Estimated is set when the costs
// came from great-circle estimates instead of the routing provider.
// OverCapacity is set when fixed appointments alone do not fit the day.
type RoutePlan struct {
	ID                   uuid.UUID
	TechnicianID         int64
	Date                 time.Time
	DepartAt             time.Time
	Origin               Coordinate
	OrderedStops         []Stop
	Legs                 []Leg
	TotalDistanceMiles   float64
	TotalDurationMinutes float64
	TravelMinutes        float64
	ServiceMinutes       float64
	WaitMinutes          float64
	Estimated            bool
	OverCapacity         bool
	DroppedPropertyIDs   []int64
	SkippedPropertyIDs   []int64
}

// AssignID gives the plan an id for storage. Plans come out of the engine
// with a zero id; an existing id is kept.
func (p *RoutePlan) AssignID() uuid.UUID {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return p.ID
}

// FinishAt is the departure time from the last stop, or DepartAt when empty.
func (p *RoutePlan) FinishAt() time.Time {
	if len(p.OrderedStops) == 0 {
		return p.DepartAt
	}
	return p.OrderedStops[len(p.OrderedStops)-1].DepartAt
}

// InfeasibleStops returns the property ids whose window cannot be met.
func (p *RoutePlan) InfeasibleStops() []int64 {
	out := []int64{}
	for _, s := range p.OrderedStops {
		if s.Infeasible {
			out = append(out, s.PropertyID)
		}
	}
	return out
}

// Pairwise travel estimate between two coordinates.
type Estimate struct {
	DistanceMiles   float64
	DurationMinutes float64
	Estimated       bool
}

// Travel costs between a day's points. Index 0 is the origin and i+1 is stop i.
type CostMatrix struct {
	Distances [][]float64
	Durations [][]float64
	Estimated bool
}

// Size returns the matrix dimension, or -1 when the two grids disagree.
func (m CostMatrix) Size() int {
	n := len(m.Distances)
	if len(m.Durations) != n {
		return -1
	}
	for i := 0; i < n; i++ {
		if len(m.Distances[i]) != n || len(m.Durations[i]) != n {
			return -1
		}
	}
	return n
}

// Sub returns the matrix restricted to the given indices, in order.
func (m CostMatrix) Sub(idx []int) CostMatrix {
	out := CostMatrix{
		Distances: make([][]float64, len(idx)),
		Durations: make([][]float64, len(idx)),
		Estimated: m.Estimated,
	}
	for i, a := range idx {
		out.Distances[i] = make([]float64, len(idx))
		out.Durations[i] = make([]float64, len(idx))
		for j, b := range idx {
			out.Distances[i][j] = m.Distances[a][b]
			out.Durations[i][j] = m.Durations[a][b]
		}
	}
	return out
}
