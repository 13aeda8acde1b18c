package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"visit-scheduling-service/internal/domain"
)

// Postgres-backed implementation of the PropertyRepository port.
type PostgresPropertyRepository struct{ DB *sql.DB }

func NewPostgresPropertyRepository(db *sql.DB) *PostgresPropertyRepository {
	return &PostgresPropertyRepository{DB: db}
}

// Return all properties ordered by id.
func (s *PostgresPropertyRepository) ListProperties(ctx context.Context) ([]*domain.Property, error) {
	if s.DB == nil {
		return nil, errors.New("postgres property repository: DB is nil")
	}

	query := `
	SELECT
		property_id,
		name,
		address,
		lat,
		lon,
		visit_frequency_days,
		last_visit_date
	FROM properties
	ORDER BY property_id;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list properties: query properties table: %w", err)
	}
	defer rows.Close()

	properties := make([]*domain.Property, 0, 64)
	for rows.Next() {
		var (
			p         domain.Property
			lat, lon  sql.NullFloat64
			lastVisit sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &lat, &lon, &p.VisitFrequencyDays, &lastVisit); err != nil {
			return nil, fmt.Errorf("list properties: scan row: %w", err)
		}
		if lat.Valid && lon.Valid {
			p.Coordinate = &domain.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		if lastVisit.Valid {
			d := time.Date(lastVisit.Time.Year(), lastVisit.Time.Month(), lastVisit.Time.Day(), 0, 0, 0, 0, time.UTC)
			p.LastVisitDate = &d
		}
		properties = append(properties, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list properties: row iteration: %w", err)
	}

	return properties, nil
}

// Persist a geocoded coordinate so the address is resolved only once.
func (s *PostgresPropertyRepository) UpdateCoordinate(ctx context.Context, propertyID int64, c domain.Coordinate) error {
	if s.DB == nil {
		return errors.New("postgres property repository: DB is nil")
	}

	res, err := s.DB.ExecContext(ctx, `
	UPDATE properties
	SET lat = $2, lon = $3
	WHERE property_id = $1;
	`, propertyID, c.Lat, c.Lon)
	if err != nil {
		return fmt.Errorf("update coordinate property_id=%d: %w", propertyID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update coordinate property_id=%d: rows affected: %w", propertyID, err)
	}
	if n == 0 {
		return fmt.Errorf("update coordinate property_id=%d: %w", propertyID, domain.ErrNotFound)
	}

	return nil
}
