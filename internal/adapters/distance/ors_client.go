package distance

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
	"visit-scheduling-service/internal/domain"
	"visit-scheduling-service/internal/ports"

	"golang.org/x/time/rate"
)

// ORSClient implements Geocoder and DistanceProvider using OpenRouteService.
//
// It coordinates:
//   - Persistent distance caching (optional)
//   - Client-side rate limiting
//   - External API calls with a bounded retry on transient failures
//   - Great-circle fallback for single-pair lookups when ORS is unavailable
//
// The client is safe for concurrent use.
type ORSClient struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	profile       string
	limiter       *rate.Limiter
	maxAttempts   int
	backoff       time.Duration
	distanceCache ports.DistanceStore
	fallback      *HaversineProvider
}

type ORSOptions struct {
	APIKey  string
	BaseURL string
	Profile string
	// Requests per minute allowed against the ORS API. 0 disables limiting.
	RatePerMinute int
	// Per-request timeout.
	Timeout time.Duration
	// Total attempts per request, including the first one.
	MaxAttempts   int
	Backoff       time.Duration
	DistanceCache ports.DistanceStore
	Fallback      *HaversineProvider
}

func NewORSClient(opts ORSOptions) (*ORSClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openrouteservice.org"
	}
	if opts.Profile == "" {
		opts.Profile = "driving-car"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 2
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}

	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60.0), 1)
	}

	return &ORSClient{
		session:       &http.Client{Timeout: opts.Timeout},
		apiKey:        opts.APIKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		profile:       opts.Profile,
		limiter:       limiter,
		maxAttempts:   opts.MaxAttempts,
		backoff:       opts.Backoff,
		distanceCache: opts.DistanceCache,
		fallback:      opts.Fallback,
	}, nil
}

// Pairwise delegates to the matrix path to reuse caching. When ORS is
// unavailable and a fallback is configured, the great-circle estimate is
// returned with Estimated set.
func (o *ORSClient) Pairwise(ctx context.Context, a, b domain.Coordinate) (domain.Estimate, error) {
	m, err := o.Matrix(ctx, []domain.Coordinate{a}, []domain.Coordinate{b})
	if err != nil {
		if o.fallback != nil && domain.IsRetryable(err) {
			log.Printf("ors pairwise unavailable, using great-circle estimate: from=%s to=%s err=%v", a.Key(), b.Key(), err)
			return o.fallback.Pairwise(ctx, a, b)
		}
		return domain.Estimate{}, err
	}

	return domain.Estimate{
		DistanceMiles:   m.Distances[0][0],
		DurationMinutes: m.Durations[0][0],
	}, nil
}

// Matrix returns origin x destination costs, serving fully cached requests
// without calling ORS.
func (o *ORSClient) Matrix(
	ctx context.Context,
	origins []domain.Coordinate,
	destinations []domain.Coordinate,
) (domain.CostMatrix, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return domain.CostMatrix{Distances: [][]float64{}, Durations: [][]float64{}}, nil
	}

	pairs := make([]ports.CoordinatePair, 0, len(origins)*len(destinations))
	for _, a := range origins {
		for _, b := range destinations {
			if a.Key() != b.Key() {
				pairs = append(pairs, ports.CoordinatePair{From: a, To: b})
			}
		}
	}

	// Check the distance cache before issuing external API calls.
	if o.distanceCache != nil && len(pairs) > 0 {
		hits, err := o.distanceCache.GetMany(ctx, pairs)
		if err != nil {
			log.Printf("distance cache read failed: %v", err)
		} else if len(hits) == len(pairs) {
			return assemble(origins, destinations, hits), nil
		}
	}

	m, err := o.fetchMatrix(ctx, origins, destinations)
	if err != nil {
		return domain.CostMatrix{}, err
	}

	if o.distanceCache != nil && len(pairs) > 0 {
		fresh := make(map[ports.CoordinatePair]domain.Estimate, len(pairs))
		for i, a := range origins {
			for j, b := range destinations {
				if a.Key() == b.Key() {
					continue
				}
				fresh[ports.CoordinatePair{From: a, To: b}] = domain.Estimate{
					DistanceMiles:   m.Distances[i][j],
					DurationMinutes: m.Durations[i][j],
				}
			}
		}
		if err := o.distanceCache.PutMany(ctx, fresh); err != nil {
			log.Printf("distance cache write failed: %v", err)
		}
	}

	return m, nil
}

func assemble(origins, destinations []domain.Coordinate, hits map[ports.CoordinatePair]domain.Estimate) domain.CostMatrix {
	m := domain.CostMatrix{
		Distances: make([][]float64, len(origins)),
		Durations: make([][]float64, len(origins)),
	}
	for i, a := range origins {
		m.Distances[i] = make([]float64, len(destinations))
		m.Durations[i] = make([]float64, len(destinations))
		for j, b := range destinations {
			if a.Key() == b.Key() {
				continue
			}
			e := hits[ports.CoordinatePair{From: a, To: b}]
			m.Distances[i][j] = e.DistanceMiles
			m.Durations[i][j] = e.DurationMinutes
		}
	}
	return m
}
