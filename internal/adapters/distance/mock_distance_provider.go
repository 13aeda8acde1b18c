package distance

import (
	"context"
	"fmt"
	"math"
	"sync"
	"visit-scheduling-service/internal/domain"
)

type MockPair struct {
	From, To domain.Coordinate
	Miles    float64
	Minutes  float64
}

// MockDistanceProvider is an in-memory provider for tests and demos.
//
// Explicit pairs win; otherwise, when Flat is set, the distance is the planar
// Euclidean distance between (Lat, Lon) treated as x/y miles and the duration
// equals the distance in minutes. Err, when set, is returned from every call.
type MockDistanceProvider struct {
	m    map[string]domain.Estimate
	Flat bool
	Err  error

	mu          sync.Mutex
	MatrixCalls int
	PairCalls   int
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]domain.Estimate, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = domain.Estimate{DistanceMiles: p.Miles, DurationMinutes: p.Minutes}
	}
	return &MockDistanceProvider{m: m}
}

// NewFlatMockDistanceProvider returns a provider using the planar metric.
func NewFlatMockDistanceProvider() *MockDistanceProvider {
	return &MockDistanceProvider{m: map[string]domain.Estimate{}, Flat: true}
}

func (p *MockDistanceProvider) lookup(a, b domain.Coordinate) (domain.Estimate, error) {
	if a.Key() == b.Key() {
		return domain.Estimate{}, nil
	}
	if r, ok := p.m[a.Key()+"|"+b.Key()]; ok {
		return r, nil
	}
	if p.Flat {
		d := math.Hypot(b.Lat-a.Lat, b.Lon-a.Lon)
		return domain.Estimate{DistanceMiles: d, DurationMinutes: d}, nil
	}
	return domain.Estimate{}, fmt.Errorf("missing pair %s -> %s", a.Key(), b.Key())
}

func (p *MockDistanceProvider) Pairwise(_ context.Context, a, b domain.Coordinate) (domain.Estimate, error) {
	p.mu.Lock()
	p.PairCalls++
	p.mu.Unlock()

	if p.Err != nil {
		return domain.Estimate{}, p.Err
	}
	return p.lookup(a, b)
}

func (p *MockDistanceProvider) Matrix(_ context.Context, origins, destinations []domain.Coordinate) (domain.CostMatrix, error) {
	p.mu.Lock()
	p.MatrixCalls++
	p.mu.Unlock()

	if p.Err != nil {
		return domain.CostMatrix{}, p.Err
	}

	m := zeroMatrix(len(origins), len(destinations))
	for i, a := range origins {
		for j, b := range destinations {
			r, err := p.lookup(a, b)
			if err != nil {
				return domain.CostMatrix{}, err
			}
			m.Distances[i][j] = r.DistanceMiles
			m.Durations[i][j] = r.DurationMinutes
		}
	}
	return m, nil
}
