package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"
)

// DayPlanner loads a day's inputs from the repositories and runs the engine.
// It is the only caller that writes back geocoded coordinates.
type DayPlanner struct {
	Engine       *Engine
	Properties   ports.PropertyRepository
	Appointments ports.AppointmentRepository
}

type PlanDayRequest struct {
	TechnicianID int64
	Date         time.Time
	// Minutes per candidate visit. Zero uses the engine default.
	ServiceMinutes float64
	// Offer properties that are not yet due-soon as well.
	IncludeUpcoming bool
}

func (p *DayPlanner) validate() error {
	if p.Engine == nil || p.Properties == nil || p.Appointments == nil {
		return errors.New("day planner: engine and repositories are required")
	}
	return nil
}

// PlanDay schedules one technician's day. Properties booked as fixed
// appointments for other technicians that day are not offered.
func (p *DayPlanner) PlanDay(ctx context.Context, req PlanDayRequest) (*domain.RoutePlan, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	tech, err := p.Appointments.GetTechnician(ctx, req.TechnicianID)
	if err != nil {
		return nil, fmt.Errorf("plan day: %w", err)
	}
	techs, err := p.Appointments.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan day: %w", err)
	}
	fixed, err := p.fixedAppointments(ctx, techs, req.Date)
	if err != nil {
		return nil, fmt.Errorf("plan day: %w", err)
	}
	if _, ok := fixed[tech.ID]; !ok {
		own, err := p.Appointments.ListFixedAppointments(ctx, tech.ID, req.Date)
		if err != nil {
			return nil, fmt.Errorf("plan day: technician %d: %w", tech.ID, err)
		}
		fixed[tech.ID] = own
	}

	pool, err := p.candidatePool(ctx, req.Date, req.ServiceMinutes, req.IncludeUpcoming)
	if err != nil {
		return nil, fmt.Errorf("plan day: %w", err)
	}

	return p.Engine.ScheduleDay(ctx, scheduleRequest(tech, req.Date, fixed[tech.ID], withoutBooked(pool, fixed)))
}

// PlanAll schedules every technician's day, splitting the candidate pool so
// each property is offered to one technician only. Properties that already
// have a fixed appointment with any technician are left out of the pool.
func (p *DayPlanner) PlanAll(ctx context.Context, date time.Time, serviceMinutes float64) ([]*domain.RoutePlan, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	techs, err := p.Appointments.ListTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("plan all: %w", err)
	}
	if len(techs) == 0 {
		return []*domain.RoutePlan{}, nil
	}

	fixed, err := p.fixedAppointments(ctx, techs, date)
	if err != nil {
		return nil, fmt.Errorf("plan all: %w", err)
	}

	pool, err := p.candidatePool(ctx, date, serviceMinutes, false)
	if err != nil {
		return nil, fmt.Errorf("plan all: %w", err)
	}

	pools, unlocated := AssignCandidates(techs, withoutBooked(pool, fixed))
	if len(unlocated) > 0 {
		log.Printf("plan all: date=%s unlocated_properties=%d", date.Format("2006-01-02"), len(unlocated))
	}

	reqs := make([]ScheduleRequest, 0, len(techs))
	for _, t := range techs {
		reqs = append(reqs, scheduleRequest(t, date, fixed[t.ID], pools[t.ID]))
	}

	return p.Engine.ScheduleMany(ctx, reqs)
}

func (p *DayPlanner) fixedAppointments(
	ctx context.Context,
	techs []domain.Technician,
	date time.Time,
) (map[int64][]domain.Stop, error) {
	out := make(map[int64][]domain.Stop, len(techs))
	for _, t := range techs {
		stops, err := p.Appointments.ListFixedAppointments(ctx, t.ID, date)
		if err != nil {
			return nil, fmt.Errorf("technician %d: %w", t.ID, err)
		}
		out[t.ID] = stops
	}
	return out, nil
}

// withoutBooked drops candidates whose property is a fixed appointment of any
// technician. Ungeocoded candidates stay so they are reported as skipped.
func withoutBooked(pool []domain.Candidate, fixed map[int64][]domain.Stop) []domain.Candidate {
	booked := make(map[int64]struct{})
	for _, stops := range fixed {
		for _, s := range stops {
			booked[s.PropertyID] = struct{}{}
		}
	}
	if len(booked) == 0 {
		return pool
	}

	out := make([]domain.Candidate, 0, len(pool))
	for _, c := range pool {
		if _, ok := booked[c.Stop.PropertyID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// candidatePool geocodes, ranks and filters the properties for a date.
// Resolved coordinates are written back; write-back failures are logged.
func (p *DayPlanner) candidatePool(
	ctx context.Context,
	date time.Time,
	serviceMinutes float64,
	includeUpcoming bool,
) ([]domain.Candidate, error) {
	props, err := p.Properties.ListProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}

	geo, err := p.Engine.GeocodeProperties(ctx, props)
	if err != nil {
		return nil, err
	}
	for id, c := range geo.Resolved {
		if err := p.Properties.UpdateCoordinate(ctx, id, c); err != nil {
			log.Printf("plan day: write back coordinate failed property_id=%d err=%v", id, err)
		}
	}

	ranks, err := p.Engine.Rank(geo.Properties, date)
	if err != nil {
		return nil, err
	}

	pool := p.Engine.Candidates(geo.Properties, ranks, serviceMinutes)
	if includeUpcoming {
		return pool, nil
	}

	due := make([]domain.Candidate, 0, len(pool))
	for _, c := range pool {
		if c.Score.Bucket != domain.BucketUpcoming {
			due = append(due, c)
		}
	}
	return due, nil
}

func scheduleRequest(
	tech domain.Technician,
	date time.Time,
	fixed []domain.Stop,
	pool []domain.Candidate,
) ScheduleRequest {
	return ScheduleRequest{
		TechnicianID:      tech.ID,
		Date:              date,
		Origin:            tech.Origin,
		WorkingHours:      tech.WorkingHours(date),
		FixedAppointments: fixed,
		CandidatePool:     pool,
		CapacityMinutes:   float64(tech.CapacityMinutes),
	}
}
