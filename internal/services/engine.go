package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"

	"golang.org/x/sync/errgroup"
)

// Engine wires the geocoder, the distance provider and the tunables behind
// one entry point. It never writes to shared storage.
type Engine struct {
	geocoder ports.Geocoder
	provider ports.DistanceProvider
	fallback ports.DistanceProvider
	cfg      Config
}

type Option func(*Engine)

// WithFallback sets the provider used for estimated costs when the primary
// provider is unavailable. It is ignored unless AllowEstimatedCosts is set.
func WithFallback(p ports.DistanceProvider) Option {
	return func(e *Engine) { e.fallback = p }
}

func NewEngine(geocoder ports.Geocoder, provider ports.DistanceProvider, cfg Config, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, errors.New("new engine: distance provider is nil")
	}
	if cfg.MaxConcurrentSchedules < 1 {
		cfg.MaxConcurrentSchedules = 1
	}
	e := &Engine{geocoder: geocoder, provider: provider, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) costFallback() ports.DistanceProvider {
	if !e.cfg.AllowEstimatedCosts {
		return nil
	}
	return e.fallback
}

func (e *Engine) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	if e.geocoder == nil {
		return domain.Coordinate{}, &domain.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: no geocoder configured", domain.ErrGeocodeNotFound),
		}
	}
	return e.geocoder.Geocode(ctx, address)
}

// GeocodeResult is the outcome of a batch geocode. Properties are copies with
// coordinates filled in where they could be resolved.
type GeocodeResult struct {
	Properties []*domain.Property
	Resolved   map[int64]domain.Coordinate
	NotFound   []int64
}

// GeocodeProperties resolves missing coordinates for a batch. Addresses that
// cannot be found are reported in NotFound; any other failure aborts.
func (e *Engine) GeocodeProperties(ctx context.Context, properties []*domain.Property) (*GeocodeResult, error) {
	for i, p := range properties {
		if p == nil {
			return nil, fmt.Errorf("geocode properties: %w: property at index %d is nil", domain.ErrInvalidInput, i)
		}
	}

	out := make([]*domain.Property, len(properties))
	found := make([]*domain.Coordinate, len(properties))
	missing := make([]bool, len(properties))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentSchedules)

	for i, p := range properties {
		cp := *p
		out[i] = &cp
		if cp.Coordinate != nil {
			continue
		}

		g.Go(func() error {
			c, err := e.Geocode(gctx, cp.Address)
			switch {
			case err == nil:
				found[i] = &c
			case errors.Is(err, domain.ErrGeocodeNotFound) || errors.Is(err, domain.ErrInvalidInput):
				missing[i] = true
			default:
				return fmt.Errorf("property_id=%d: %w", cp.ID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("geocode properties: %w", err)
	}

	res := &GeocodeResult{Properties: out, Resolved: map[int64]domain.Coordinate{}, NotFound: []int64{}}
	for i, p := range out {
		switch {
		case found[i] != nil:
			p.Coordinate = found[i]
			res.Resolved[p.ID] = *found[i]
		case missing[i]:
			res.NotFound = append(res.NotFound, p.ID)
		}
	}
	return res, nil
}

func (e *Engine) Rank(properties []*domain.Property, asOf time.Time) ([]domain.PriorityScore, error) {
	return Rank(properties, asOf, e.cfg.priority())
}

// Candidates joins ranked scores with their properties, in rank order.
// serviceMinutes <= 0 uses DefaultServiceMinutes.
func (e *Engine) Candidates(properties []*domain.Property, ranks []domain.PriorityScore, serviceMinutes float64) []domain.Candidate {
	if serviceMinutes <= 0 {
		serviceMinutes = e.cfg.DefaultServiceMinutes
	}

	byID := make(map[int64]*domain.Property, len(properties))
	for _, p := range properties {
		if p != nil {
			byID[p.ID] = p
		}
	}

	out := make([]domain.Candidate, 0, len(ranks))
	for _, r := range ranks {
		p, ok := byID[r.PropertyID]
		if !ok {
			continue
		}
		c := domain.Candidate{
			Score: r,
			Stop:  domain.Stop{PropertyID: p.ID, ServiceMinutes: serviceMinutes},
		}
		if p.Coordinate != nil {
			c.Stop.Coordinate = *p.Coordinate
			c.Geocoded = true
		}
		out = append(out, c)
	}
	return out
}

// Optimize routes the given stops. Costs are fetched when req.Costs is empty.
func (e *Engine) Optimize(ctx context.Context, req OptimizeRequest) (*domain.RoutePlan, error) {
	if len(req.Stops) > 0 && len(req.Costs.Durations) == 0 {
		for _, s := range req.Stops {
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("optimize: %w", err)
			}
		}
		if err := req.Origin.Validate(); err != nil {
			return nil, fmt.Errorf("optimize: origin: %w", err)
		}

		costs, err := BuildCostMatrix(ctx, e.provider, req.Origin, req.Stops, e.costOptions())
		if err != nil {
			return nil, fmt.Errorf("optimize: %w", err)
		}
		req.Costs = costs
	}
	return OptimizeRoute(ctx, req, e.cfg.optimizer())
}

func (e *Engine) ScheduleDay(ctx context.Context, req ScheduleRequest) (*domain.RoutePlan, error) {
	return ScheduleDay(ctx, req, e.scheduleDeps())
}

// ScheduleMany schedules independent technician days concurrently. Plans are
// returned in request order; the first error cancels the rest.
func (e *Engine) ScheduleMany(ctx context.Context, reqs []ScheduleRequest) ([]*domain.RoutePlan, error) {
	plans := make([]*domain.RoutePlan, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrentSchedules)

	for i, req := range reqs {
		g.Go(func() error {
			plan, err := e.ScheduleDay(gctx, req)
			if err != nil {
				return err
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("schedule many: %w", err)
	}
	return plans, nil
}

func (e *Engine) scheduleDeps() ScheduleDeps {
	return ScheduleDeps{
		Provider:             e.provider,
		Costs:                e.costOptions(),
		TravelBufferFraction: e.cfg.TravelBufferFraction,
		Optimizer:            e.cfg.optimizer(),
	}
}

func (e *Engine) costOptions() CostOptions {
	return CostOptions{Fallback: e.costFallback(), AttemptTimeout: e.routingTimeout()}
}

func (e *Engine) routingTimeout() time.Duration {
	if e.cfg.RoutingTimeout <= 0 {
		return 10 * time.Second
	}
	return e.cfg.RoutingTimeout
}
