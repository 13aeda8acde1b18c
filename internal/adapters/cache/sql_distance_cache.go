package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"
)

// SQLDistanceCache is a Postgres-backed cache of pairwise travel estimates.
// Rows are keyed by rounded coordinate keys (see domain.Coordinate.Key).
type SQLDistanceCache struct {
	DB *sql.DB
}

func NewSQLDistanceCache(db *sql.DB) *SQLDistanceCache {
	return &SQLDistanceCache{DB: db}
}

// Fetch cached estimates for the given coordinate pairs.
func (s *SQLDistanceCache) GetMany(
	ctx context.Context,
	pairs []ports.CoordinatePair,
) (_ map[ports.CoordinatePair]domain.Estimate, err error) {
	defer obs.Time(ctx, "distance.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}

	if len(pairs) == 0 {
		return map[ports.CoordinatePair]domain.Estimate{}, nil
	}

	byKey := make(map[string]ports.CoordinatePair, len(pairs))
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		k := p.Key()
		if _, ok := byKey[k]; ok {
			continue
		}
		byKey[k] = p
		keys = append(keys, k)
	}

	q := `
	SELECT pair_key, distance_miles, duration_minutes
    FROM distance_cache
    WHERE pair_key = ANY($1::text[]);
	`

	rows, err := s.DB.QueryContext(ctx, q, keys)
	if err != nil {
		return nil, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[ports.CoordinatePair]domain.Estimate, len(keys))
	for rows.Next() {
		var key string
		var miles, minutes float64
		if err := rows.Scan(&key, &miles, &minutes); err != nil {
			return nil, fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		if p, ok := byKey[key]; ok {
			out[p] = domain.Estimate{DistanceMiles: miles, DurationMinutes: minutes}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get distance cache: row iteration: %w", err)
	}

	return out, nil
}

// Store pairwise estimates. Great-circle estimates are never cached.
func (s *SQLDistanceCache) PutMany(
	ctx context.Context,
	results map[ports.CoordinatePair]domain.Estimate,
) error {
	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}

	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert distance cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO distance_cache (pair_key, distance_miles, duration_minutes)
    VALUES ($1, $2, $3)
	ON CONFLICT (pair_key) DO UPDATE
	SET distance_miles = EXCLUDED.distance_miles,
		duration_minutes = EXCLUDED.duration_minutes;
	`)
	if err != nil {
		return fmt.Errorf("insert distance cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for p, e := range results {
		if e.Estimated {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.Key(), e.DistanceMiles, e.DurationMinutes); err != nil {
			return fmt.Errorf("insert distance cache pair=%q: %w", p.Key(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert distance cache commit: %w", err)
	}

	return nil
}
