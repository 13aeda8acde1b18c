package cache

import (
	"context"
	"testing"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*RedisDistanceCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisDistanceCache(rdb, time.Hour), mr
}

func TestRedisDistanceCachePutThenGet(t *testing.T) {
	c, _ := newTestRedisCache(t)
	ctx := context.Background()

	ab := ports.CoordinatePair{From: domain.Coordinate{Lat: 1, Lon: 2}, To: domain.Coordinate{Lat: 3, Lon: 4}}
	ba := ports.CoordinatePair{From: ab.To, To: ab.From}

	err := c.PutMany(ctx, map[ports.CoordinatePair]domain.Estimate{
		ab: {DistanceMiles: 4.5, DurationMinutes: 11},
	})
	require.NoError(t, err)

	got, err := c.GetMany(ctx, []ports.CoordinatePair{ab, ba})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, domain.Estimate{DistanceMiles: 4.5, DurationMinutes: 11}, got[ab])
	_, ok := got[ba]
	assert.False(t, ok, "reverse direction must not be inferred")
}

func TestRedisDistanceCacheSkipsEstimatedResults(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	p := ports.CoordinatePair{From: domain.Coordinate{Lat: 1, Lon: 1}, To: domain.Coordinate{Lat: 2, Lon: 2}}
	err := c.PutMany(ctx, map[ports.CoordinatePair]domain.Estimate{
		p: {DistanceMiles: 1, DurationMinutes: 2, Estimated: true},
	})
	require.NoError(t, err)

	assert.Empty(t, mr.Keys())
}

func TestRedisDistanceCacheEntriesExpire(t *testing.T) {
	c, mr := newTestRedisCache(t)
	ctx := context.Background()

	p := ports.CoordinatePair{From: domain.Coordinate{Lat: 1, Lon: 1}, To: domain.Coordinate{Lat: 2, Lon: 2}}
	require.NoError(t, c.PutMany(ctx, map[ports.CoordinatePair]domain.Estimate{p: {DistanceMiles: 1, DurationMinutes: 2}}))

	mr.FastForward(2 * time.Hour)

	got, err := c.GetMany(ctx, []ports.CoordinatePair{p})
	require.NoError(t, err)
	assert.Empty(t, got)
}
