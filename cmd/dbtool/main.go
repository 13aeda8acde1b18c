package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
	"visit-scheduling-service/internal/adapters/cache"
	"visit-scheduling-service/internal/adapters/repositories"
	"visit-scheduling-service/internal/config"
	"visit-scheduling-service/internal/platform/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := initAndSeed(ctx, conn, cfg.SeedPath); err != nil {
		log.Fatal(err)
	}

	if cfg.SqlitePath != "" {
		log.Printf("Initializing local geocode cache path=%s", cfg.SqlitePath)
		lite, err := db.OpenSqlite(cfg.SqlitePath)
		if err != nil {
			log.Fatal(err)
		}
		defer lite.Close()
		if err := cache.NewSqliteGeocodeCache(lite).EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}
	log.Println("Schema ready.")

	log.Printf("Seeding database path=%s", seedPath)
	if err := repositories.SeedFromJSON(ctx, conn, seedPath); err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Println("Seeding complete.")

	return nil
}
