// Package main is the entry point for the explostock background worker.
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
	"explostock/internal/infrastructure/messaging"
	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage"
	"explostock/internal/infrastructure/storage/postgres"
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

	if cfg.StorageDriver != config.StoragePostgres {
		log.Fatalw("worker requires the postgres storage driver", "storage", cfg.StorageDriver)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting explostock worker")

	backend, err := storage.Open(ctx, cfg, clock.System())
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer backend.Close()

	m := metrics.New()

	// Without brokers events are only logged.
	var handler postgres.OutboxHandler = messaging.LogHandler{Metrics: m}
	if len(cfg.KafkaBrokers) > 0 {
		kcfg := messaging.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}
		publisher := messaging.NewPublisher(messaging.NewWriter(kcfg), kcfg, m)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warnw("failed to close kafka writer", "error", err)
			}
		}()
		handler = publisher
		log.Infow("publishing outbox to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	metricsServer := &http.Server{
		Addr:              ":" + config.GetEnv("WORKER_METRICS_PORT", "9091"),
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	worker := NewWorker(backend, handler, m, cfg, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()
	<-done

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("worker stopped")
}
