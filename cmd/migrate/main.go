// Package main applies the embedded SQL migrations to DATABASE_URL.
//
// Usage:
//
//	migrate          apply pending migrations
//	migrate -list    print the embedded versions
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"explostock/internal/config"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/migrations"
	"explostock/pkg/logger"
)

func main() {
	list := flag.Bool("list", false, "print embedded migrations and exit")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       config.GetEnv("LOG_LEVEL", "info"),
		Development: config.GetEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	if *list {
		all, err := migrations.List()
		if err != nil {
			log.Fatalw("failed to list migrations", "error", err)
		}
		for _, m := range all {
			fmt.Println(m.Version)
		}
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	applied, err := migrations.Apply(ctx, pool.Unwrap())
	if err != nil {
		log.Fatalw("migration failed", "error", err, "applied", applied)
	}
	log.Infow("migrations complete", "applied", len(applied))
}
