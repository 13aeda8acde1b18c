package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"
)

type CostOptions struct {
	// Used when the provider stays unavailable. Nil returns the error.
	Fallback ports.DistanceProvider
	// Per-attempt bound on a provider call. Zero leaves attempts unbounded.
	AttemptTimeout time.Duration
	// Provider attempts per matrix. Defaults to 2 (one retry).
	MaxAttempts int
	Backoff     time.Duration
}

// BuildCostMatrix asks the provider for the (n+1)x(n+1) travel costs between
// origin and stops. Index 0 is the origin and i+1 is stops[i].
//
// Each attempt gets its own timeout; an attempt that times out counts as the
// provider being unavailable and is retried. When every attempt fails that
// way and a fallback is set, the matrix comes from the fallback and is
// flagged Estimated. Cancellation of ctx itself is returned as is.
func BuildCostMatrix(
	ctx context.Context,
	provider ports.DistanceProvider,
	origin domain.Coordinate,
	stops []domain.Stop,
	opts CostOptions,
) (_ domain.CostMatrix, err error) {
	defer obs.Time(ctx, "services.BuildCostMatrix")(&err)

	if provider == nil {
		return domain.CostMatrix{}, errors.New("build cost matrix: provider is nil")
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}

	points := make([]domain.Coordinate, 0, len(stops)+1)
	points = append(points, origin)
	for _, s := range stops {
		points = append(points, s.Coordinate)
	}

	m, err := matrixWithRetry(ctx, provider, points, opts)
	if err != nil {
		if ctx.Err() != nil || !domain.IsRetryable(err) || opts.Fallback == nil {
			return domain.CostMatrix{}, fmt.Errorf("build cost matrix: %w", err)
		}
		log.Printf("build cost matrix: provider unavailable, using estimates points=%d err=%v", len(points), err)
		m, err = opts.Fallback.Matrix(ctx, points, points)
		if err != nil {
			return domain.CostMatrix{}, fmt.Errorf("build cost matrix: fallback: %w", err)
		}
		m.Estimated = true
	}

	if m.Size() != len(points) {
		return domain.CostMatrix{}, fmt.Errorf("build cost matrix: provider returned malformed matrix for %d points", len(points))
	}
	return m, nil
}

func matrixWithRetry(
	ctx context.Context,
	provider ports.DistanceProvider,
	points []domain.Coordinate,
	opts CostOptions,
) (domain.CostMatrix, error) {
	backoff := opts.Backoff
	var lastErr error

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		actx, cancel := ctx, context.CancelFunc(func() {})
		if opts.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, opts.AttemptTimeout)
		}
		m, err := provider.Matrix(actx, points, points)
		cancel()
		if err == nil {
			return m, nil
		}
		if ctx.Err() != nil {
			return domain.CostMatrix{}, err
		}

		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsRetryable(err) {
			lastErr = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		if !domain.IsRetryable(lastErr) || attempt == opts.MaxAttempts {
			break
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return domain.CostMatrix{}, ctx.Err()
		case <-t.C:
		}
		backoff *= 2
	}

	return domain.CostMatrix{}, lastErr
}
