package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when TEST_DATABASE_URL points at a disposable Postgres database.
func TestPostgresRepositoriesIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := db.Open(url)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, InitSchema(ctx, conn))

	seed := `{
		"technicians": [{"technician_id": 901, "name": "Test Tech", "origin_lat": 26.1, "origin_lon": -81.7,
			"work_start_minute": 480, "work_end_minute": 1020, "capacity_minutes": 480}],
		"properties": [
			{"property_id": 9001, "name": "Palm", "address": "1 Palm Way", "lat": 26.2, "lon": -81.8,
				"visit_frequency_days": 14, "last_visit_date": "2026-01-01"},
			{"property_id": 9002, "name": "Gulf", "address": "2 Gulf Dr", "visit_frequency_days": 7}
		],
		"appointments": [{"appointment_id": 90001, "technician_id": 901, "property_id": 9001,
			"window_start": "2026-02-02T10:00:00Z", "window_end": "2026-02-02T11:00:00Z", "service_minutes": 30}]
	}`
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))
	require.NoError(t, SeedFromJSON(ctx, conn, path))

	props := NewPostgresPropertyRepository(conn)
	require.NoError(t, props.UpdateCoordinate(ctx, 9002, domain.Coordinate{Lat: 26.3, Lon: -81.9}))

	list, err := props.ListProperties(ctx)
	require.NoError(t, err)
	var gulf *domain.Property
	for _, p := range list {
		if p.ID == 9002 {
			gulf = p
		}
	}
	require.NotNil(t, gulf)
	require.NotNil(t, gulf.Coordinate)
	assert.Nil(t, gulf.LastVisitDate)

	appts := NewPostgresAppointmentRepository(conn)
	stops, err := appts.ListFixedAppointments(ctx, 901, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, stops, 1)
	assert.True(t, stops[0].Fixed)

	plans := NewPostgresPlanRepository(conn)
	plan := &domain.RoutePlan{
		ID:           uuid.New(),
		TechnicianID: 901,
		Date:         time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		DepartAt:     time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC),
		OrderedStops: stops,
		Legs:         []domain.Leg{{FromStopIndex: -1, ToStopIndex: 0, DistanceMiles: 1, DurationMinutes: 3}},
	}
	require.NoError(t, plans.SavePlan(ctx, plan, PlanStatusDraft))
}
