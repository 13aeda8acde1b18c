package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"

	"golang.org/x/sync/singleflight"
)

type GeocoderOptions struct {
	// Optional persistent second level, read before the provider.
	Store ports.GeocodeStore
	// Per-attempt bound on a provider call. Defaults to 10s.
	Timeout time.Duration
	// Provider attempts per lookup. Defaults to 2 (one retry).
	MaxAttempts int
	Backoff     time.Duration
}

// CachingGeocoder resolves addresses through a provider and remembers every
// successful answer for the lifetime of the process.
//
// Lookups are keyed by the normalized address, so "12 Palm Way" and
// " 12  PALM way" share one entry. Concurrent misses for the same key are
// collapsed into a single provider call.
type CachingGeocoder struct {
	provider    ports.Geocoder
	store       ports.GeocodeStore
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration

	mu    sync.RWMutex
	cache map[string]domain.Coordinate
	group singleflight.Group
}

func NewCachingGeocoder(provider ports.Geocoder, opts GeocoderOptions) *CachingGeocoder {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	return &CachingGeocoder{
		provider:    provider,
		store:       opts.Store,
		timeout:     opts.Timeout,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		cache:       make(map[string]domain.Coordinate),
	}
}

func (g *CachingGeocoder) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	key := domain.NormalizeAddress(address)
	if key == "" {
		return domain.Coordinate{}, &domain.GeocodeError{
			Address: address,
			Err:     fmt.Errorf("%w: empty address", domain.ErrInvalidInput),
		}
	}

	if c, ok := g.lookup(key); ok {
		obs.GeocodeLookups.WithLabelValues("memory").Inc()
		return c, nil
	}

	// The flight outlives any single caller; each attempt is bounded by the
	// per-attempt timeout instead.
	ch := g.group.DoChan(key, func() (any, error) {
		return g.resolve(context.WithoutCancel(ctx), address, key)
	})
	select {
	case <-ctx.Done():
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", address, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return domain.Coordinate{}, r.Err
		}
		return r.Val.(domain.Coordinate), nil
	}
}

// Len reports the number of cached addresses.
func (g *CachingGeocoder) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.cache)
}

func (g *CachingGeocoder) lookup(key string) (domain.Coordinate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.cache[key]
	return c, ok
}

func (g *CachingGeocoder) remember(key string, c domain.Coordinate) {
	g.mu.Lock()
	g.cache[key] = c
	g.mu.Unlock()
}

func (g *CachingGeocoder) resolve(ctx context.Context, address, key string) (domain.Coordinate, error) {
	// Another flight may have finished between the read and Do.
	if c, ok := g.lookup(key); ok {
		obs.GeocodeLookups.WithLabelValues("memory").Inc()
		return c, nil
	}

	if g.store != nil {
		sctx, cancel := context.WithTimeout(ctx, g.timeout)
		hits, err := g.store.GetMany(sctx, []string{key})
		cancel()
		if err != nil {
			log.Printf("geocode: store read failed key=%q err=%v", key, err)
		} else if c, ok := hits[key]; ok {
			obs.GeocodeLookups.WithLabelValues("store").Inc()
			g.remember(key, c)
			return c, nil
		}
	}

	c, err := g.callProvider(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrGeocodeNotFound) {
			obs.GeocodeLookups.WithLabelValues("not_found").Inc()
		} else {
			obs.GeocodeLookups.WithLabelValues("error").Inc()
		}
		return domain.Coordinate{}, err
	}

	obs.GeocodeLookups.WithLabelValues("provider").Inc()
	g.remember(key, c)

	if g.store != nil {
		sctx, cancel := context.WithTimeout(ctx, g.timeout)
		if err := g.store.PutMany(sctx, map[string]domain.Coordinate{key: c}); err != nil {
			log.Printf("geocode: store write failed key=%q err=%v", key, err)
		}
		cancel()
	}
	return c, nil
}

func (g *CachingGeocoder) callProvider(ctx context.Context, address string) (domain.Coordinate, error) {
	backoff := g.backoff
	var lastErr error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, g.timeout)
		c, err := g.provider.Geocode(actx, strings.TrimSpace(address))
		cancel()
		if err == nil {
			return c, nil
		}

		lastErr = classifyGeocodeError(ctx, address, err)
		if !domain.IsRetryable(lastErr) || attempt == g.maxAttempts {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", address, ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}

	return domain.Coordinate{}, lastErr
}

// Provider errors are reported as *GeocodeError. A per-attempt timeout is
// unavailability; cancellation of the flight's context is passed through.
func classifyGeocodeError(ctx context.Context, address string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("geocode %q: %w", address, ctx.Err())
	}
	var gerr *domain.GeocodeError
	if errors.As(err, &gerr) {
		return &domain.GeocodeError{Address: address, Err: gerr.Err}
	}
	if errors.Is(err, domain.ErrGeocodeNotFound) || errors.Is(err, domain.ErrProviderUnavailable) ||
		errors.Is(err, domain.ErrInvalidInput) {
		return &domain.GeocodeError{Address: address, Err: err}
	}
	return &domain.GeocodeError{
		Address: address,
		Err:     fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err),
	}
}
