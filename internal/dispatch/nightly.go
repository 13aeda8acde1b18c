// Package dispatch runs the scheduled drafting of next-day itineraries.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"

	"github.com/robfig/cron/v3"
)

const PlanStatusDraft = "draft"

// Planner drafts plans for every technician on a date.
type Planner interface {
	PlanAll(ctx context.Context, date time.Time, serviceMinutes float64) ([]*domain.RoutePlan, error)
}

// Nightly drafts tomorrow's plans on a cron schedule and stores them with
// status "draft" for a dispatcher to review.
type Nightly struct {
	cron    *cron.Cron
	planner Planner
	plans   ports.PlanRepository
	spec    string
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

func NewNightly(planner Planner, plans ports.PlanRepository, spec string, timeout time.Duration) *Nightly {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Nightly{
		cron:    cron.New(),
		planner: planner,
		plans:   plans,
		spec:    spec,
		timeout: timeout,
		now:     time.Now,
	}
}

// Start registers the job and starts the cron loop. An empty spec disables it.
func (n *Nightly) Start() error {
	if n.spec == "" {
		log.Println("dispatch: nightly drafting is disabled")
		return nil
	}
	if n.planner == nil || n.plans == nil {
		return errors.New("dispatch: planner and plan repository are required")
	}

	_, err := n.cron.AddFunc(n.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if _, err := n.RunOnce(ctx); err != nil {
			log.Printf("dispatch: nightly drafting failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("dispatch: parse cron spec %q: %w", n.spec, err)
	}

	n.cron.Start()
	n.mu.Lock()
	n.running = true
	n.mu.Unlock()
	log.Printf("dispatch: nightly drafting scheduled cron=%q", n.spec)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (n *Nightly) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return
	}
	<-n.cron.Stop().Done()
	n.running = false
	log.Println("dispatch: stopped")
}

// RunOnce drafts and stores plans for the day after now (UTC). It returns
// the number of plans stored.
func (n *Nightly) RunOnce(ctx context.Context) (int, error) {
	today := n.now().UTC()
	date := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	plans, err := n.planner.PlanAll(ctx, date, 0)
	if err != nil {
		return 0, fmt.Errorf("draft plans for %s: %w", date.Format(time.DateOnly), err)
	}

	saved := 0
	var errs []error
	for _, p := range plans {
		p.AssignID()
		if err := n.plans.SavePlan(ctx, p, PlanStatusDraft); err != nil {
			errs = append(errs, fmt.Errorf("technician %d: %w", p.TechnicianID, err))
			continue
		}
		saved++
		log.Printf("dispatch: drafted plan_id=%s technician_id=%d date=%s stops=%d over_capacity=%t estimated=%t",
			p.ID, p.TechnicianID, date.Format(time.DateOnly), len(p.OrderedStops), p.OverCapacity, p.Estimated)
	}

	if len(errs) > 0 {
		return saved, fmt.Errorf("save drafts: %w", errors.Join(errs...))
	}
	return saved, nil
}
