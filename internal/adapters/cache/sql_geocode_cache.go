package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
)

// SQLGeocodeCache keeps geocoded coordinates in Postgres, keyed by the
// normalized address. It is the second level behind the in-process cache and
// survives restarts.
type SQLGeocodeCache struct {
	DB *sql.DB
}

func NewSQLGeocodeCache(db *sql.DB) *SQLGeocodeCache {
	return &SQLGeocodeCache{DB: db}
}

// GetMany returns the stored coordinates keyed by normalized address.
// Rows holding an out-of-range coordinate are treated as misses.
func (s *SQLGeocodeCache) GetMany(
	ctx context.Context,
	addresses []string,
) (_ map[string]domain.Coordinate, err error) {
	defer obs.Time(ctx, "geocode.store.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("geocode store: db is nil")
	}

	keys := lookupKeys(addresses)
	if len(keys) == 0 {
		return map[string]domain.Coordinate{}, nil
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT address, lat, lon FROM geocode_cache WHERE address = ANY($1::text[])`, keys)
	if err != nil {
		return nil, fmt.Errorf("geocode store: select %d keys: %w", len(keys), err)
	}
	defer rows.Close()

	hits := make(map[string]domain.Coordinate, len(keys))
	for rows.Next() {
		var key string
		var c domain.Coordinate
		if err := rows.Scan(&key, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("geocode store: scan: %w", err)
		}
		if err := c.Validate(); err != nil {
			log.Printf("geocode store: ignoring bad row address=%q err=%v", key, err)
			continue
		}
		hits[key] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("geocode store: rows: %w", err)
	}
	return hits, nil
}

// PutMany upserts all entries in one statement. Nothing is written when any
// key is not a normalized address or any coordinate is out of range.
func (s *SQLGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinate) (err error) {
	defer obs.Time(ctx, "geocode.store.PutMany")(&err)

	if s.DB == nil {
		return errors.New("geocode store: db is nil")
	}

	keys, err := checkEntries(results)
	if err != nil {
		return fmt.Errorf("geocode store: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	lats := make([]float64, len(keys))
	lons := make([]float64, len(keys))
	for i, k := range keys {
		lats[i], lons[i] = results[k].Lat, results[k].Lon
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO geocode_cache (address, lat, lon)
	SELECT * FROM unnest($1::text[], $2::float8[], $3::float8[])
	ON CONFLICT (address) DO UPDATE
	SET lat = EXCLUDED.lat, lon = EXCLUDED.lon`, keys, lats, lons)
	if err != nil {
		return fmt.Errorf("geocode store: upsert %d keys: %w", len(keys), err)
	}
	return nil
}
