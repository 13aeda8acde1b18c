package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
)

// Costs within eps are treated as equal.
const eps = 1e-9

type OptimizerConfig struct {
	TwoOptIterationCap int
}

// OptimizeRequest is one technician's day of stops with precomputed costs.
// Costs is indexed 0 = Origin, i+1 = Stops[i].
type OptimizeRequest struct {
	TechnicianID int64
	Date         time.Time
	DepartAt     time.Time
	Origin       domain.Coordinate
	Stops        []domain.Stop
	Costs        domain.CostMatrix
}

// OptimizeRoute orders the stops of an open route that starts at the origin.
//
// A nearest-neighbour construction places non-fixed stops around the fixed
// appointments, then 2-opt reverses runs of non-fixed stops while that lowers
// travel time without adding window violations. Stops that cannot meet their
// window are kept and flagged Infeasible. Identical input gives an identical
// order.
func OptimizeRoute(ctx context.Context, req OptimizeRequest, cfg OptimizerConfig) (_ *domain.RoutePlan, err error) {
	defer obs.Time(ctx, "services.OptimizeRoute")(&err)

	if err := validateOptimizeRequest(req); err != nil {
		return nil, fmt.Errorf("optimize route: %w", err)
	}

	if len(req.Stops) == 0 {
		return newSequence(req).plan(nil), nil
	}

	seq := newSequence(req)

	built := seq.construct()
	best, passes, err := seq.twoOpt(ctx, built, cfg.TwoOptIterationCap)
	if err != nil {
		return nil, fmt.Errorf("optimize route: %w", err)
	}

	// The caller's own order is also improved and kept when it is better, so
	// the result is never worse than the order the stops were given in.
	given := make([]int, len(req.Stops))
	for i := range given {
		given[i] = i
	}
	if !equalOrder(given, built) {
		alt, altPasses, err := seq.twoOpt(ctx, given, cfg.TwoOptIterationCap)
		if err != nil {
			return nil, fmt.Errorf("optimize route: %w", err)
		}
		passes += altPasses
		if seq.better(alt, best) {
			best = alt
		}
	}
	obs.TwoOptPasses.Observe(float64(passes))

	return seq.plan(best), nil
}

func validateOptimizeRequest(req OptimizeRequest) error {
	if err := req.Origin.Validate(); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	for _, s := range req.Stops {
		if err := s.Validate(); err != nil {
			return err
		}
		if s.TimeWindow != nil && req.DepartAt.IsZero() {
			return fmt.Errorf("%w: stop property_id=%d has a time window but no departure time was given",
				domain.ErrInvalidInput, s.PropertyID)
		}
	}
	if len(req.Stops) == 0 {
		return nil
	}

	n := req.Costs.Size()
	if n != len(req.Stops)+1 {
		return fmt.Errorf("%w: cost matrix is %d wide for %d stops", domain.ErrInvalidInput, n, len(req.Stops))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d, t := req.Costs.Distances[i][j], req.Costs.Durations[i][j]
			if d < 0 || t < 0 || math.IsNaN(d) || math.IsNaN(t) || math.IsInf(d, 0) || math.IsInf(t, 0) {
				return fmt.Errorf("%w: cost matrix entry [%d][%d] is not a finite non-negative value",
					domain.ErrInvalidInput, i, j)
			}
		}
	}
	return nil
}

// sequence evaluates orders of a fixed set of stops. Times are minutes after
// DepartAt; a stop without a window has earliest -Inf and latest +Inf.
type sequence struct {
	req      OptimizeRequest
	stops    []domain.Stop
	travel   [][]float64
	earliest []float64
	latest   []float64
}

func newSequence(req OptimizeRequest) *sequence {
	s := &sequence{
		req:      req,
		stops:    req.Stops,
		travel:   req.Costs.Durations,
		earliest: make([]float64, len(req.Stops)),
		latest:   make([]float64, len(req.Stops)),
	}
	for i, st := range req.Stops {
		s.earliest[i] = math.Inf(-1)
		s.latest[i] = math.Inf(1)
		if st.TimeWindow != nil {
			s.earliest[i] = st.TimeWindow.Earliest.Sub(req.DepartAt).Minutes()
			s.latest[i] = st.TimeWindow.Latest.Sub(req.DepartAt).Minutes()
		}
	}
	return s
}

// cost is the travel time between stop indices; -1 is the origin.
func (s *sequence) cost(from, to int) float64 {
	return s.travel[from+1][to+1]
}

// visit returns arrival, service start and departure at stop i when leaving
// from stop `from` at time t.
func (s *sequence) visit(from, i int, t float64) (arrive, start, depart float64) {
	arrive = t + s.cost(from, i)
	start = math.Max(arrive, s.earliest[i])
	depart = start + s.stops[i].ServiceMinutes
	return arrive, start, depart
}

// evaluate returns total travel time and the number of missed windows.
func (s *sequence) evaluate(order []int) (travel float64, infeasible int) {
	prev, t := -1, 0.0
	for _, i := range order {
		travel += s.cost(prev, i)
		arrive, _, depart := s.visit(prev, i, t)
		if arrive > s.latest[i]+eps {
			infeasible++
		}
		prev, t = i, depart
	}
	return travel, infeasible
}

// better prefers fewer missed windows, then lower travel time.
func (s *sequence) better(a, b []int) bool {
	ta, ia := s.evaluate(a)
	tb, ib := s.evaluate(b)
	if ia != ib {
		return ia < ib
	}
	return ta < tb-eps
}

// anchors returns the fixed stops in visiting order: windowed ones by earliest
// time, then the ones without a window in input order.
func (s *sequence) anchors() []int {
	out := []int{}
	for i, st := range s.stops {
		if st.Fixed {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		wa, wb := s.stops[out[a]].TimeWindow, s.stops[out[b]].TimeWindow
		switch {
		case wa != nil && wb != nil:
			return wa.Earliest.Before(wb.Earliest)
		case wa != nil:
			return true
		default:
			return false
		}
	})
	return out
}

// construct builds the initial order with a nearest-neighbour walk that never
// takes a non-fixed stop whose service would make the next fixed stop late.
func (s *sequence) construct() []int {
	anchors := s.anchors()
	next := 0

	free := []int{}
	for i, st := range s.stops {
		if !st.Fixed {
			free = append(free, i)
		}
	}

	order := make([]int, 0, len(s.stops))
	prev, t := -1, 0.0

	for len(free) > 0 || next < len(anchors) {
		best, bestCost, bestSlack := -1, math.Inf(1), math.Inf(1)

		for _, f := range free {
			arrive, _, depart := s.visit(prev, f, t)
			if arrive > s.latest[f]+eps {
				continue
			}
			if next < len(anchors) {
				a := anchors[next]
				if arriveA, _, _ := s.visit(f, a, depart); arriveA > s.latest[a]+eps {
					continue
				}
			}
			c := s.cost(prev, f)
			slack := s.latest[f] - arrive
			// Free is in input order, so the first of equal candidates wins.
			if c < bestCost-eps || (math.Abs(c-bestCost) <= eps && slack < bestSlack-eps) {
				best, bestCost, bestSlack = f, c, slack
			}
		}

		switch {
		case best >= 0:
			free = removeIndex(free, best)
		case next < len(anchors):
			best = anchors[next]
			next++
		default:
			// Every remaining stop misses its window; take the nearest.
			for _, f := range free {
				if c := s.cost(prev, f); best < 0 || c < bestCost-eps {
					best, bestCost = f, c
				}
			}
			free = removeIndex(free, best)
		}

		_, _, depart := s.visit(prev, best, t)
		order = append(order, best)
		prev, t = best, depart
	}
	return order
}

// twoOpt reverses runs of non-fixed stops while a reversal strictly lowers
// travel time without adding missed windows. It runs at most maxPasses passes
// and checks ctx between them.
func (s *sequence) twoOpt(ctx context.Context, start []int, maxPasses int) ([]int, int, error) {
	order := append([]int(nil), start...)
	travel, infeasible := s.evaluate(order)

	passes := 0
	for passes < maxPasses {
		if err := ctx.Err(); err != nil {
			return nil, passes, fmt.Errorf("2-opt pass %d: %w", passes+1, err)
		}
		passes++

		improved := false
		for i := 0; i < len(order)-1; i++ {
			if s.stops[order[i]].Fixed {
				continue
			}
			for j := i + 1; j < len(order); j++ {
				if s.stops[order[j]].Fixed {
					break
				}
				reverse(order, i, j)
				t, inf := s.evaluate(order)
				if t < travel-eps && inf <= infeasible {
					travel, infeasible = t, inf
					improved = true
					continue
				}
				reverse(order, i, j)
			}
		}
		if !improved {
			break
		}
	}
	return order, passes, nil
}

// plan materializes the order into a RoutePlan with legs and timestamps.
func (s *sequence) plan(order []int) *domain.RoutePlan {
	req := s.req
	p := &domain.RoutePlan{
		TechnicianID:       req.TechnicianID,
		Date:               req.Date,
		DepartAt:           req.DepartAt,
		Origin:             req.Origin,
		OrderedStops:       make([]domain.Stop, 0, len(order)),
		Legs:               make([]domain.Leg, 0, len(order)),
		Estimated:          req.Costs.Estimated,
		DroppedPropertyIDs: []int64{},
		SkippedPropertyIDs: []int64{},
	}

	prev, t := -1, 0.0
	for k, i := range order {
		arrive, start, depart := s.visit(prev, i, t)

		st := s.stops[i]
		st.ArriveAt = atMinutes(req.DepartAt, arrive)
		st.StartAt = atMinutes(req.DepartAt, start)
		st.DepartAt = atMinutes(req.DepartAt, depart)
		st.WaitMinutes = start - arrive
		st.Infeasible = arrive > s.latest[i]+eps

		p.OrderedStops = append(p.OrderedStops, st)
		p.Legs = append(p.Legs, domain.Leg{
			FromStopIndex:   k - 1,
			ToStopIndex:     k,
			DistanceMiles:   req.Costs.Distances[prev+1][i+1],
			DurationMinutes: s.cost(prev, i),
		})

		p.TotalDistanceMiles += req.Costs.Distances[prev+1][i+1]
		p.TravelMinutes += s.cost(prev, i)
		p.ServiceMinutes += st.ServiceMinutes
		p.WaitMinutes += st.WaitMinutes
		prev, t = i, depart
	}
	p.TotalDurationMinutes = p.TravelMinutes + p.ServiceMinutes
	return p
}

func atMinutes(base time.Time, minutes float64) time.Time {
	return base.Add(time.Duration(math.Round(minutes * float64(time.Minute))))
}

func reverse(order []int, i, j int) {
	for ; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
}

func removeIndex(list []int, v int) []int {
	for k, x := range list {
		if x == v {
			return append(list[:k], list[k+1:]...)
		}
	}
	return list
}

func equalOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
