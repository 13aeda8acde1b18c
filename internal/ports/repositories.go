package ports

import (
	"context"
	"time"
	"visit-scheduling-service/internal/domain"
)

// Port: a boundary for reading Property records.
type PropertyRepository interface {
	// Retrieve all properties under an active contract.
	ListProperties(ctx context.Context) ([]*domain.Property, error)
	// Persist a geocoded coordinate for a property.
	UpdateCoordinate(ctx context.Context, propertyID int64, c domain.Coordinate) error
}

// Port: confirmed appointments and technicians.
type AppointmentRepository interface {
	ListTechnicians(ctx context.Context) ([]domain.Technician, error)
	GetTechnician(ctx context.Context, technicianID int64) (domain.Technician, error)
	// Fixed stops for a technician on a date, with coordinates resolved.
	ListFixedAppointments(ctx context.Context, technicianID int64, date time.Time) ([]domain.Stop, error)
}

// Port: persists a committed itinerary. The engine never calls this itself.
type PlanRepository interface {
	SavePlan(ctx context.Context, plan *domain.RoutePlan, status string) error
}
