// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML file of engine tunables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"visit-scheduling-service/internal/domain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port             string
	DatabaseURL      string
	SqlitePath       string
	RedisURL         string
	ORSAPIKey        string
	ORSBaseURL       string
	ORSRatePerMinute int
	SeedPath         string
	DispatchCron     string
	// Default route origin when a request omits one. Nil unless both
	// DEPOT_LAT and DEPOT_LON are set.
	Depot  *domain.Coordinate
	Engine EngineConfig
}

// Engine tunables. Durations are in milliseconds to match the YAML keys.
type EngineConfig struct {
	OverdueThreshold       float64 `yaml:"overdue_threshold"`
	DueSoonThreshold       float64 `yaml:"due_soon_threshold"`
	TravelBufferFraction   float64 `yaml:"travel_buffer_fraction"`
	TwoOptIterationCap     int     `yaml:"two_opt_iteration_cap"`
	GeocodeTimeoutMs       int     `yaml:"geocode_timeout_ms"`
	RoutingTimeoutMs       int     `yaml:"routing_timeout_ms"`
	AllowEstimatedCosts    bool    `yaml:"allow_estimated_costs"`
	DefaultServiceMinutes  float64 `yaml:"default_service_minutes"`
	AverageSpeedMph        float64 `yaml:"average_speed_mph"`
	MaxConcurrentSchedules int     `yaml:"max_concurrent_schedules"`
}

func DefaultEngine() EngineConfig {
	return EngineConfig{
		OverdueThreshold:       1.0,
		DueSoonThreshold:       0.7,
		TravelBufferFraction:   0.15,
		TwoOptIterationCap:     200,
		GeocodeTimeoutMs:       10000,
		RoutingTimeoutMs:       10000,
		AllowEstimatedCosts:    true,
		DefaultServiceMinutes:  45,
		AverageSpeedMph:        30,
		MaxConcurrentSchedules: 4,
	}
}

func (e EngineConfig) GeocodeTimeout() time.Duration {
	return time.Duration(e.GeocodeTimeoutMs) * time.Millisecond
}

func (e EngineConfig) RoutingTimeout() time.Duration {
	return time.Duration(e.RoutingTimeoutMs) * time.Millisecond
}

// Load reads .env (if present), then the environment, then ENGINE_CONFIG_FILE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	cfg := &Config{
		Port:             Get("PORT", "8080"),
		DatabaseURL:      Get("DATABASE_URL", ""),
		SqlitePath:       Get("SQLITE_PATH", ""),
		RedisURL:         Get("REDIS_URL", ""),
		ORSAPIKey:        Get("ORS_API_KEY", ""),
		ORSBaseURL:       Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSRatePerMinute: GetInt("ORS_RATE_PER_MINUTE", 40),
		SeedPath:         Get("SEED_PATH", "data/seeds/visits.json"),
		DispatchCron:     Get("DISPATCH_CRON", ""),
		Engine:           DefaultEngine(),
	}

	if Get("DEPOT_LAT", "") != "" && Get("DEPOT_LON", "") != "" {
		cfg.Depot = &domain.Coordinate{Lat: GetFloat("DEPOT_LAT", 0), Lon: GetFloat("DEPOT_LON", 0)}
	}

	if path := Get("ENGINE_CONFIG_FILE", ""); path != "" {
		if err := loadEngineFile(path, &cfg.Engine); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges of the engine tunables.
func (c *Config) Validate() error {
	e := c.Engine
	var errs []error
	if c.Depot != nil {
		if err := c.Depot.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("depot: %w", err))
		}
	}
	if e.DueSoonThreshold <= 0 || e.DueSoonThreshold > e.OverdueThreshold {
		errs = append(errs, fmt.Errorf("due_soon_threshold %v must be in (0, overdue_threshold]", e.DueSoonThreshold))
	}
	if e.TravelBufferFraction < 0 || e.TravelBufferFraction >= 1 {
		errs = append(errs, fmt.Errorf("travel_buffer_fraction %v must be in [0, 1)", e.TravelBufferFraction))
	}
	if e.TwoOptIterationCap < 0 {
		errs = append(errs, fmt.Errorf("two_opt_iteration_cap %d must not be negative", e.TwoOptIterationCap))
	}
	if e.GeocodeTimeoutMs <= 0 || e.RoutingTimeoutMs <= 0 {
		errs = append(errs, errors.New("provider timeouts must be positive"))
	}
	if e.AverageSpeedMph <= 0 {
		errs = append(errs, fmt.Errorf("average_speed_mph %v must be positive", e.AverageSpeedMph))
	}
	if e.MaxConcurrentSchedules < 1 {
		errs = append(errs, fmt.Errorf("max_concurrent_schedules %d must be at least 1", e.MaxConcurrentSchedules))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func loadEngineFile(path string, into *EngineConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read engine file %q: %w", path, err)
	}
	// Keys absent from the file keep their defaults.
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("config: parse engine file %q: %w", path, err)
	}
	return nil
}

func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) int {
	if v := Get(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("config: ignoring non-integer %s=%q", key, v)
	}
	return fallback
}

func GetFloat(key string, fallback float64) float64 {
	if v := Get(key, ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("config: ignoring non-numeric %s=%q", key, v)
	}
	return fallback
}
