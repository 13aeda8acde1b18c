package services

import (
	"context"
	"fmt"
	"math"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"
)

// ScheduleRequest is one technician's day. CandidatePool is expected in rank
// order (most urgent first).
type ScheduleRequest struct {
	TechnicianID      int64
	Date              time.Time
	Origin            domain.Coordinate
	WorkingHours      domain.WorkingHours
	FixedAppointments []domain.Stop
	CandidatePool     []domain.Candidate
	CapacityMinutes   float64
}

type ScheduleDeps struct {
	Provider             ports.DistanceProvider
	Costs                CostOptions
	TravelBufferFraction float64
	Optimizer            OptimizerConfig
}

// ScheduleDay fills a technician's day around the fixed appointments.
//
// Candidates are taken in rank order while their service time, padded by the
// travel buffer, fits the open minutes. The selection is routed once; while
// the result exceeds capacity or runs past the end of the working day, the
// least urgent selected candidate is dropped and the rest re-routed. Fixed
// appointments are never dropped. If they alone do not fit, the plan is
// returned with OverCapacity set.
func ScheduleDay(ctx context.Context, req ScheduleRequest, deps ScheduleDeps) (_ *domain.RoutePlan, err error) {
	defer obs.Time(ctx, "services.ScheduleDay")(&err)

	if err := validateScheduleRequest(req, deps); err != nil {
		return nil, fmt.Errorf("schedule day: %w", err)
	}

	fixedIDs := make(map[int64]struct{}, len(req.FixedAppointments))
	stops := make([]domain.Stop, 0, len(req.FixedAppointments)+len(req.CandidatePool))
	fixedService := 0.0
	for _, f := range req.FixedAppointments {
		f.Fixed = true
		stops = append(stops, f)
		fixedIDs[f.PropertyID] = struct{}{}
		fixedService += f.ServiceMinutes
	}

	budget := math.Min(req.WorkingHours.Minutes(), req.CapacityMinutes)
	open := budget - fixedService - deps.TravelBufferFraction*budget

	selected := []domain.Candidate{}
	skipped := []int64{}
	for _, c := range req.CandidatePool {
		if !c.Geocoded {
			skipped = append(skipped, c.Stop.PropertyID)
			continue
		}
		if _, booked := fixedIDs[c.Stop.PropertyID]; booked {
			continue
		}
		need := c.Stop.ServiceMinutes * (1 + deps.TravelBufferFraction)
		if open+eps < need {
			continue
		}
		open -= need
		st := c.Stop
		st.Fixed = false
		stops = append(stops, st)
		selected = append(selected, domain.Candidate{Score: c.Score, Stop: st})
	}

	costs, err := BuildCostMatrix(ctx, deps.Provider, req.Origin, stops, deps.Costs)
	if err != nil {
		return nil, fmt.Errorf("schedule day: technician %d: %w", req.TechnicianID, err)
	}

	// active holds indices into stops; fixed appointments come first.
	active := make([]int, len(stops))
	for i := range active {
		active[i] = i
	}
	nFixed := len(req.FixedAppointments)
	dropped := []int64{}

	var plan *domain.RoutePlan
	for {
		plan, err = optimizeSubset(ctx, req, stops, costs, active, deps.Optimizer)
		if err != nil {
			return nil, fmt.Errorf("schedule day: technician %d: %w", req.TechnicianID, err)
		}
		if fitsDay(plan, req) {
			break
		}
		if len(active) == nFixed {
			plan.OverCapacity = true
			break
		}

		victim := leastUrgent(active[nFixed:], selected, nFixed)
		dropped = append(dropped, stops[victim].PropertyID)
		active = removeIndex(active, victim)
	}

	plan.DroppedPropertyIDs = dropped
	plan.SkippedPropertyIDs = skipped

	switch {
	case plan.OverCapacity:
		obs.Schedules.WithLabelValues("over_capacity").Inc()
	case len(dropped) > 0:
		obs.Schedules.WithLabelValues("dropped").Inc()
	default:
		obs.Schedules.WithLabelValues("fit").Inc()
	}
	return plan, nil
}

func validateScheduleRequest(req ScheduleRequest, deps ScheduleDeps) error {
	if err := req.WorkingHours.Validate(); err != nil {
		return err
	}
	if req.CapacityMinutes < 0 || math.IsNaN(req.CapacityMinutes) {
		return fmt.Errorf("%w: capacity minutes %v must not be negative", domain.ErrInvalidInput, req.CapacityMinutes)
	}
	if deps.TravelBufferFraction < 0 || deps.TravelBufferFraction >= 1 {
		return fmt.Errorf("%w: travel buffer fraction %v must be in [0, 1)", domain.ErrInvalidInput, deps.TravelBufferFraction)
	}
	if err := req.Origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	for _, f := range req.FixedAppointments {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fixed appointment: %w", err)
		}
	}
	for _, c := range req.CandidatePool {
		if !c.Geocoded {
			continue
		}
		if err := c.Stop.Validate(); err != nil {
			return fmt.Errorf("candidate: %w", err)
		}
	}
	return nil
}

func optimizeSubset(
	ctx context.Context,
	req ScheduleRequest,
	stops []domain.Stop,
	costs domain.CostMatrix,
	active []int,
	cfg OptimizerConfig,
) (*domain.RoutePlan, error) {
	idx := make([]int, 0, len(active)+1)
	idx = append(idx, 0)
	subset := make([]domain.Stop, 0, len(active))
	for _, i := range active {
		idx = append(idx, i+1)
		subset = append(subset, stops[i])
	}

	return OptimizeRoute(ctx, OptimizeRequest{
		TechnicianID: req.TechnicianID,
		Date:         req.Date,
		DepartAt:     req.WorkingHours.Start,
		Origin:       req.Origin,
		Stops:        subset,
		Costs:        costs.Sub(idx),
	}, cfg)
}

func fitsDay(plan *domain.RoutePlan, req ScheduleRequest) bool {
	if plan.TotalDurationMinutes > req.CapacityMinutes+eps {
		return false
	}
	return !plan.FinishAt().After(req.WorkingHours.End)
}

// leastUrgent returns the stop index of the least urgent selected candidate
// among the active non-fixed indices. selected[k] is stops[nFixed+k].
func leastUrgent(active []int, selected []domain.Candidate, nFixed int) int {
	victim := active[0]
	for _, i := range active[1:] {
		if moreUrgent(selected[victim-nFixed].Score, selected[i-nFixed].Score) {
			victim = i
		}
	}
	return victim
}
