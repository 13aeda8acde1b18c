package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"visit-scheduling-service/internal/adapters/cache"
	"visit-scheduling-service/internal/adapters/distance"
	"visit-scheduling-service/internal/adapters/repositories"
	"visit-scheduling-service/internal/api"
	"visit-scheduling-service/internal/config"
	"visit-scheduling-service/internal/dispatch"
	"visit-scheduling-service/internal/platform/db"
	"visit-scheduling-service/internal/platform/obs"
	"visit-scheduling-service/internal/ports"
	"visit-scheduling-service/internal/services"
)

// main is the application composition root.
// It wires concrete adapters (Postgres, Redis, ORS) behind ports and starts the HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	obs.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	geocodeStore, closeGeocodeStore, err := openGeocodeStore(ctx, cfg, conn)
	if err != nil {
		log.Fatal(err)
	}
	defer closeGeocodeStore()

	distanceStore, closeDistanceStore, err := openDistanceStore(ctx, cfg, conn)
	if err != nil {
		log.Fatal(err)
	}
	defer closeDistanceStore()

	engineCfg := engineConfig(cfg.Engine)
	haversine := distance.NewHaversineProvider(cfg.Engine.AverageSpeedMph)

	var (
		provider ports.DistanceProvider = haversine
		geocoder ports.Geocoder
	)
	if cfg.ORSAPIKey != "" {
		// The engine owns retries and per-attempt timeouts, so the client
		// makes a single attempt per call.
		ors, err := distance.NewORSClient(distance.ORSOptions{
			APIKey:        cfg.ORSAPIKey,
			BaseURL:       cfg.ORSBaseURL,
			RatePerMinute: cfg.ORSRatePerMinute,
			Timeout:       max(engineCfg.RoutingTimeout, engineCfg.GeocodeTimeout),
			MaxAttempts:   1,
			DistanceCache: distanceStore,
			Fallback:      haversine,
		})
		if err != nil {
			log.Fatal(err)
		}
		provider = ors
		geocoder = services.NewCachingGeocoder(ors, services.GeocoderOptions{
			Store:   geocodeStore,
			Timeout: engineCfg.GeocodeTimeout,
		})
	} else {
		log.Println("ORS_API_KEY not set: using great-circle estimates and no geocoding")
	}

	engine, err := services.NewEngine(geocoder, provider, engineCfg, services.WithFallback(haversine))
	if err != nil {
		log.Fatal(err)
	}

	properties := repositories.NewPostgresPropertyRepository(conn)
	appointments := repositories.NewPostgresAppointmentRepository(conn)
	plans := repositories.NewPostgresPlanRepository(conn)

	nightly := dispatch.NewNightly(&services.DayPlanner{
		Engine:       engine,
		Properties:   properties,
		Appointments: appointments,
	}, plans, cfg.DispatchCron, 30*time.Minute)
	if err := nightly.Start(); err != nil {
		log.Fatal(err)
	}
	defer nightly.Stop()

	router := api.NewRouter(api.Deps{
		Engine:       engine,
		Properties:   properties,
		Appointments: appointments,
		Plans:        plans,
		Depot:        cfg.Depot,
	})

	// Timeouts are tuned for cold-cache route planning (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening addr=:%s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}
}

func engineConfig(e config.EngineConfig) services.Config {
	return services.Config{
		OverdueThreshold:       e.OverdueThreshold,
		DueSoonThreshold:       e.DueSoonThreshold,
		TravelBufferFraction:   e.TravelBufferFraction,
		TwoOptIterationCap:     e.TwoOptIterationCap,
		GeocodeTimeout:         e.GeocodeTimeout(),
		RoutingTimeout:         e.RoutingTimeout(),
		AllowEstimatedCosts:    e.AllowEstimatedCosts,
		DefaultServiceMinutes:  e.DefaultServiceMinutes,
		MaxConcurrentSchedules: e.MaxConcurrentSchedules,
	}
}

// openGeocodeStore prefers a local SQLite file when SQLITE_PATH is set and
// falls back to the Postgres geocode_cache table.
func openGeocodeStore(ctx context.Context, cfg *config.Config, conn *sql.DB) (ports.GeocodeStore, func(), error) {
	if cfg.SqlitePath == "" {
		return cache.NewSQLGeocodeCache(conn), func() {}, nil
	}

	lite, err := db.OpenSqlite(cfg.SqlitePath)
	if err != nil {
		return nil, nil, err
	}
	store := cache.NewSqliteGeocodeCache(lite)
	if err := store.EnsureSchema(ctx); err != nil {
		lite.Close()
		return nil, nil, fmt.Errorf("geocode store: %w", err)
	}
	return store, func() { lite.Close() }, nil
}

// openDistanceStore uses Redis when REDIS_URL is set, otherwise Postgres.
func openDistanceStore(ctx context.Context, cfg *config.Config, conn *sql.DB) (ports.DistanceStore, func(), error) {
	if cfg.RedisURL == "" {
		return cache.NewSQLDistanceCache(conn), func() {}, nil
	}

	rc, err := cache.NewRedisDistanceCacheFromURL(ctx, cfg.RedisURL, 0)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { rc.Close() }, nil
}
