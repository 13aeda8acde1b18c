package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Initialize the Postgres schema used by the repositories and caches.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS technicians (
			technician_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			origin_lat DOUBLE PRECISION NOT NULL,
			origin_lon DOUBLE PRECISION NOT NULL,
			work_start_minute INTEGER NOT NULL,
			work_end_minute INTEGER NOT NULL,
			capacity_minutes INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS properties (
			property_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			address TEXT NOT NULL,
			lat DOUBLE PRECISION,
			lon DOUBLE PRECISION,
			visit_frequency_days INTEGER NOT NULL CHECK (visit_frequency_days > 0),
			last_visit_date DATE
		);`,
		`CREATE TABLE IF NOT EXISTS appointments (
			appointment_id BIGINT PRIMARY KEY,
			technician_id BIGINT NOT NULL REFERENCES technicians(technician_id),
			property_id BIGINT NOT NULL REFERENCES properties(property_id),
			visit_date DATE NOT NULL,
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			service_minutes DOUBLE PRECISION NOT NULL CHECK (service_minutes >= 0)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_technician_date
			ON appointments(technician_id, visit_date);`,
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lat DOUBLE PRECISION NOT NULL,
			lon DOUBLE PRECISION NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS distance_cache (
			pair_key TEXT PRIMARY KEY,
			distance_miles DOUBLE PRECISION NOT NULL,
			duration_minutes DOUBLE PRECISION NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS route_plans (
			plan_id UUID PRIMARY KEY,
			technician_id BIGINT NOT NULL,
			plan_date DATE NOT NULL,
			status TEXT NOT NULL,
			depart_at TIMESTAMPTZ NOT NULL,
			total_distance_miles DOUBLE PRECISION NOT NULL,
			total_duration_minutes DOUBLE PRECISION NOT NULL,
			estimated BOOLEAN NOT NULL,
			over_capacity BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS route_plan_stops (
			plan_id UUID NOT NULL REFERENCES route_plans(plan_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			property_id BIGINT NOT NULL,
			fixed BOOLEAN NOT NULL,
			infeasible BOOLEAN NOT NULL,
			arrive_at TIMESTAMPTZ NOT NULL,
			depart_at TIMESTAMPTZ NOT NULL,
			leg_distance_miles DOUBLE PRECISION NOT NULL,
			leg_duration_minutes DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (plan_id, seq)
		);`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type TechnicianSeed struct {
	TechnicianID    int64   `json:"technician_id"`
	Name            string  `json:"name"`
	OriginLat       float64 `json:"origin_lat"`
	OriginLon       float64 `json:"origin_lon"`
	WorkStartMinute int     `json:"work_start_minute"`
	WorkEndMinute   int     `json:"work_end_minute"`
	CapacityMinutes int     `json:"capacity_minutes"`
}

type PropertySeed struct {
	PropertyID         int64    `json:"property_id"`
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	Lat                *float64 `json:"lat"`
	Lon                *float64 `json:"lon"`
	VisitFrequencyDays int      `json:"visit_frequency_days"`
	LastVisitDate      string   `json:"last_visit_date"`
}

type AppointmentSeed struct {
	AppointmentID  int64     `json:"appointment_id"`
	TechnicianID   int64     `json:"technician_id"`
	PropertyID     int64     `json:"property_id"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	ServiceMinutes float64   `json:"service_minutes"`
}

type Seed struct {
	Technicians  []TechnicianSeed  `json:"technicians"`
	Properties   []PropertySeed    `json:"properties"`
	Appointments []AppointmentSeed `json:"appointments"`
}

// Populate the database with technicians, properties and appointments from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed: parse json: %w", err)
	}

	if err := validateSeed(&data); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range data.Technicians {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO technicians (technician_id, name, origin_lat, origin_lon, work_start_minute, work_end_minute, capacity_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (technician_id) DO UPDATE
		SET name = EXCLUDED.name,
			origin_lat = EXCLUDED.origin_lat,
			origin_lon = EXCLUDED.origin_lon,
			work_start_minute = EXCLUDED.work_start_minute,
			work_end_minute = EXCLUDED.work_end_minute,
			capacity_minutes = EXCLUDED.capacity_minutes;
		`, t.TechnicianID, t.Name, t.OriginLat, t.OriginLon, t.WorkStartMinute, t.WorkEndMinute, t.CapacityMinutes)
		if err != nil {
			return fmt.Errorf("seed: insert technician_id=%d: %w", t.TechnicianID, err)
		}
	}

	for _, p := range data.Properties {
		var lastVisit any
		if p.LastVisitDate != "" {
			lastVisit = p.LastVisitDate
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO properties (property_id, name, address, lat, lon, visit_frequency_days, last_visit_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (property_id) DO UPDATE
		SET name = EXCLUDED.name,
			address = EXCLUDED.address,
			lat = EXCLUDED.lat,
			lon = EXCLUDED.lon,
			visit_frequency_days = EXCLUDED.visit_frequency_days,
			last_visit_date = EXCLUDED.last_visit_date;
		`, p.PropertyID, p.Name, p.Address, p.Lat, p.Lon, p.VisitFrequencyDays, lastVisit)
		if err != nil {
			return fmt.Errorf("seed: insert property_id=%d: %w", p.PropertyID, err)
		}
	}

	for _, a := range data.Appointments {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO appointments (appointment_id, technician_id, property_id, visit_date, window_start, window_end, service_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (appointment_id) DO NOTHING;
		`, a.AppointmentID, a.TechnicianID, a.PropertyID, a.WindowStart.Format("2006-01-02"), a.WindowStart, a.WindowEnd, a.ServiceMinutes)
		if err != nil {
			return fmt.Errorf("seed: insert appointment_id=%d: %w", a.AppointmentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit tx: %w", err)
	}

	return nil
}

func validateSeed(s *Seed) error {
	for i, t := range s.Technicians {
		if t.TechnicianID <= 0 {
			return fmt.Errorf("invalid technician_id at index %d: %d", i+1, t.TechnicianID)
		}
		if t.WorkEndMinute <= t.WorkStartMinute {
			return fmt.Errorf("technician_id=%d: empty working window", t.TechnicianID)
		}
	}
	for i, p := range s.Properties {
		if p.PropertyID <= 0 {
			return fmt.Errorf("invalid property_id at index %d: %d", i+1, p.PropertyID)
		}
		if strings.TrimSpace(p.Address) == "" {
			return fmt.Errorf("property_id=%d: address cannot be empty", p.PropertyID)
		}
		if p.VisitFrequencyDays <= 0 {
			return fmt.Errorf("property_id=%d: visit_frequency_days must be positive", p.PropertyID)
		}
		if p.LastVisitDate != "" {
			if _, err := time.Parse("2006-01-02", p.LastVisitDate); err != nil {
				return fmt.Errorf("property_id=%d: last_visit_date: %w", p.PropertyID, err)
			}
		}
	}
	for i, a := range s.Appointments {
		if a.AppointmentID <= 0 {
			return fmt.Errorf("invalid appointment_id at index %d: %d", i+1, a.AppointmentID)
		}
		if a.WindowEnd.Before(a.WindowStart) {
			return fmt.Errorf("appointment_id=%d: window_end before window_start", a.AppointmentID)
		}
	}
	return nil
}
