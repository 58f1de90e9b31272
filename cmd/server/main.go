// Package main is the entry point for the explostock API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"explostock/internal/config"
	"explostock/internal/core/clock"
	"explostock/internal/domain/auth"
	v1 "explostock/internal/infrastructure/http/v1"
	"explostock/internal/infrastructure/http/v1/middleware"
	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage"
	"explostock/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()
	log.Infow("starting explostock server", "storage", cfg.StorageDriver, "auth", cfg.AuthEnabled)

	// --- Storage ---
	backend, err := storage.Open(ctx, cfg, clock.System())
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer backend.Close()

	if err := backend.Ping(ctx); err != nil {
		log.Fatalw("failed to ping storage", "error", err)
	}
	log.Infow("storage ready", "driver", backend.Driver)

	// --- JWT Service ---
	var validator middleware.JWTValidator
	if cfg.JWTSecret != "" {
		validator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	}

	// --- Idempotency ---
	// Replay protection needs the postgres table; memory mode runs without it.
	var idem middleware.IdempotencyStore
	if cfg.IdempotencyEnabled && backend.Idempotency != nil {
		idem = backend.Idempotency
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Backend:      backend,
		Logger:       log,
		Metrics:      metrics.New(),
		JWTValidator: validator,
		AuthEnabled:  cfg.AuthEnabled,
		Idempotency:  idem,
		Debug:        cfg.Development(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
