package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"visit-scheduling-service/internal/domain"
)

// Postgres-backed technicians and confirmed appointments.
type PostgresAppointmentRepository struct{ DB *sql.DB }

func NewPostgresAppointmentRepository(db *sql.DB) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{DB: db}
}

const technicianColumns = `technician_id, name, origin_lat, origin_lon, work_start_minute, work_end_minute, capacity_minutes`

func scanTechnician(row interface{ Scan(...any) error }) (domain.Technician, error) {
	var t domain.Technician
	err := row.Scan(&t.ID, &t.Name, &t.Origin.Lat, &t.Origin.Lon, &t.WorkStartMinute, &t.WorkEndMinute, &t.CapacityMinutes)
	return t, err
}

func (s *PostgresAppointmentRepository) ListTechnicians(ctx context.Context) ([]domain.Technician, error) {
	if s.DB == nil {
		return nil, errors.New("postgres appointment repository: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+technicianColumns+` FROM technicians ORDER BY technician_id;`)
	if err != nil {
		return nil, fmt.Errorf("list technicians: query technicians table: %w", err)
	}
	defer rows.Close()

	out := []domain.Technician{}
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, fmt.Errorf("list technicians: scan row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list technicians: row iteration: %w", err)
	}

	return out, nil
}

func (s *PostgresAppointmentRepository) GetTechnician(ctx context.Context, technicianID int64) (domain.Technician, error) {
	if s.DB == nil {
		return domain.Technician{}, errors.New("postgres appointment repository: DB is nil")
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE technician_id = $1;`, technicianID)
	t, err := scanTechnician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Technician{}, fmt.Errorf("get technician %d: %w", technicianID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Technician{}, fmt.Errorf("get technician %d: %w", technicianID, err)
	}
	return t, nil
}

// Return the technician's confirmed appointments for the date as fixed stops.
// Every appointment's property must already carry a coordinate.
func (s *PostgresAppointmentRepository) ListFixedAppointments(
	ctx context.Context,
	technicianID int64,
	date time.Time,
) ([]domain.Stop, error) {
	if s.DB == nil {
		return nil, errors.New("postgres appointment repository: DB is nil")
	}

	query := `
	SELECT
		a.property_id,
		p.lat,
		p.lon,
		a.window_start,
		a.window_end,
		a.service_minutes
	FROM appointments a
	JOIN properties p ON p.property_id = a.property_id
	WHERE a.technician_id = $1
		AND a.visit_date = $2
	ORDER BY a.window_start, a.property_id;
	`
	rows, err := s.DB.QueryContext(ctx, query, technicianID, date.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list appointments: query appointments table: %w", err)
	}
	defer rows.Close()

	stops := []domain.Stop{}
	for rows.Next() {
		var (
			propertyID int64
			lat, lon   sql.NullFloat64
			start, end time.Time
			minutes    float64
		)
		if err := rows.Scan(&propertyID, &lat, &lon, &start, &end, &minutes); err != nil {
			return nil, fmt.Errorf("list appointments: scan row: %w", err)
		}
		if !lat.Valid || !lon.Valid {
			return nil, fmt.Errorf("list appointments: property_id=%d has no coordinate", propertyID)
		}
		stops = append(stops, domain.Stop{
			PropertyID:     propertyID,
			Coordinate:     domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64},
			ServiceMinutes: minutes,
			TimeWindow:     &domain.TimeWindow{Earliest: start, Latest: end},
			Fixed:          true,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list appointments: row iteration: %w", err)
	}

	return stops, nil
}
