package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"visit-scheduling-service/internal/domain"

	"github.com/google/uuid"
)

const (
	PlanStatusCommitted = "committed"
	PlanStatusDraft     = "draft"
)

// Postgres-backed store for committed and draft itineraries.
type PostgresPlanRepository struct{ DB *sql.DB }

func NewPostgresPlanRepository(db *sql.DB) *PostgresPlanRepository {
	return &PostgresPlanRepository{DB: db}
}

// SavePlan writes the plan and its ordered stops in one transaction.
func (s *PostgresPlanRepository) SavePlan(ctx context.Context, plan *domain.RoutePlan, status string) error {
	if s.DB == nil {
		return errors.New("postgres plan repository: DB is nil")
	}
	if plan == nil {
		return errors.New("save plan: plan is nil")
	}
	if plan.ID == uuid.Nil {
		return errors.New("save plan: plan has no id")
	}
	if len(plan.Legs) != len(plan.OrderedStops) {
		return fmt.Errorf("save plan %s: %d legs for %d stops", plan.ID, len(plan.Legs), len(plan.OrderedStops))
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save plan: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO route_plans (plan_id, technician_id, plan_date, status, depart_at,
		total_distance_miles, total_duration_minutes, estimated, over_capacity)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`, plan.ID.String(), plan.TechnicianID, plan.Date.Format("2006-01-02"), status, plan.DepartAt,
		plan.TotalDistanceMiles, plan.TotalDurationMinutes, plan.Estimated, plan.OverCapacity)
	if err != nil {
		return fmt.Errorf("save plan %s: insert route_plans: %w", plan.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO route_plan_stops (plan_id, seq, property_id, fixed, infeasible,
		arrive_at, depart_at, leg_distance_miles, leg_duration_minutes)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`)
	if err != nil {
		return fmt.Errorf("save plan %s: prepare stops: %w", plan.ID, err)
	}
	defer stmt.Close()

	for i, st := range plan.OrderedStops {
		leg := plan.Legs[i]
		if _, err := stmt.ExecContext(ctx, plan.ID.String(), i+1, st.PropertyID, st.Fixed, st.Infeasible,
			st.ArriveAt, st.DepartAt, leg.DistanceMiles, leg.DurationMinutes); err != nil {
			return fmt.Errorf("save plan %s: insert stop seq=%d: %w", plan.ID, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save plan %s: commit tx: %w", plan.ID, err)
	}

	return nil
}
