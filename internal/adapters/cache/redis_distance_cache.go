package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"

	redis "github.com/redis/go-redis/v9"
)

// RedisDistanceCache shares pairwise travel estimates between service
// instances. Entries expire after TTL because road conditions change.
type RedisDistanceCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type cachedEstimate struct {
	Miles   float64 `json:"mi"`
	Minutes float64 `json:"min"`
}

func NewRedisDistanceCache(rdb *redis.Client, ttl time.Duration) *RedisDistanceCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDistanceCache{rdb: rdb, prefix: "dist:", ttl: ttl}
}

// NewRedisDistanceCacheFromURL parses a redis:// URL and pings the server.
func NewRedisDistanceCacheFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisDistanceCache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis distance cache: parse url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis distance cache: ping: %w", err)
	}
	return NewRedisDistanceCache(rdb, ttl), nil
}

func (c *RedisDistanceCache) Close() error { return c.rdb.Close() }

// Fetch cached estimates; missing keys are simply absent from the result.
func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	pairs []ports.CoordinatePair,
) (map[ports.CoordinatePair]domain.Estimate, error) {
	out := make(map[ports.CoordinatePair]domain.Estimate, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = c.prefix + p.Key()
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get distance cache: mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var ce cachedEstimate
		if err := json.Unmarshal([]byte(s), &ce); err != nil {
			continue
		}
		out[pairs[i]] = domain.Estimate{DistanceMiles: ce.Miles, DurationMinutes: ce.Minutes}
	}

	return out, nil
}

// Store estimates in one pipeline. Great-circle estimates are never cached.
func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	results map[ports.CoordinatePair]domain.Estimate,
) error {
	if len(results) == 0 {
		return nil
	}

	pipe := c.rdb.Pipeline()
	queued := 0
	for p, e := range results {
		if e.Estimated {
			continue
		}
		data, err := json.Marshal(cachedEstimate{Miles: e.DistanceMiles, Minutes: e.DurationMinutes})
		if err != nil {
			return fmt.Errorf("insert distance cache: marshal: %w", err)
		}
		pipe.Set(ctx, c.prefix+p.Key(), data, c.ttl)
		queued++
	}
	if queued == 0 {
		return nil
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("insert distance cache: exec pipeline: %w", err)
	}
	return nil
}
