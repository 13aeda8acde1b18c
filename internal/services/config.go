package services

import "time"

// Config holds the engine tunables. It is injected by the caller; the engine
// never reads the environment.
type Config struct {
	OverdueThreshold       float64
	DueSoonThreshold       float64
	TravelBufferFraction   float64
	TwoOptIterationCap     int
	GeocodeTimeout         time.Duration
	RoutingTimeout         time.Duration
	AllowEstimatedCosts    bool
	DefaultServiceMinutes  float64
	MaxConcurrentSchedules int
}

func DefaultConfig() Config {
	return Config{
		OverdueThreshold:       1.0,
		DueSoonThreshold:       0.7,
		TravelBufferFraction:   0.15,
		TwoOptIterationCap:     200,
		GeocodeTimeout:         10 * time.Second,
		RoutingTimeout:         10 * time.Second,
		AllowEstimatedCosts:    true,
		DefaultServiceMinutes:  45,
		MaxConcurrentSchedules: 4,
	}
}

func (c Config) priority() PriorityConfig {
	return PriorityConfig{OverdueThreshold: c.OverdueThreshold, DueSoonThreshold: c.DueSoonThreshold}
}

func (c Config) optimizer() OptimizerConfig {
	return OptimizerConfig{TwoOptIterationCap: c.TwoOptIterationCap}
}
