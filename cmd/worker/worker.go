package main

import (
	"context"
	"sync"
	"time"

	"explostock/internal/config"
	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/pkg/logger"
)

// SystemUser is recorded as the actor of background transitions.
const SystemUser = "system"

// Worker runs the periodic background jobs against one backend:
// outbox relay, batch expiry sweep and table cleanup.
type Worker struct {
	backend *storage.Backend
	relay   *postgres.OutboxRelay // nil without postgres
	metrics *metrics.Metrics
	cfg     config.Config
	log     *logger.Logger
}

// NewWorker creates a worker. handler receives relayed outbox messages and
// is ignored for the memory backend.
func NewWorker(backend *storage.Backend, handler postgres.OutboxHandler, m *metrics.Metrics, cfg config.Config, log *logger.Logger) *Worker {
	w := &Worker{
		backend: backend,
		metrics: m,
		cfg:     cfg,
		log:     log.WithComponent("worker"),
	}
	if backend.TxManager != nil && handler != nil {
		w.relay = postgres.NewOutboxRelay(backend.TxManager, cfg.OutboxBatchSize, handler, nil)
	}
	return w
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ctx = logger.WithLogger(ctx, w.log)

	var wg sync.WaitGroup
	if w.relay != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.every(ctx, w.cfg.OutboxInterval, w.relayOutbox)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		w.every(ctx, w.cfg.ExpirySweepInterval, func(ctx context.Context) {
			w.run(ctx, "expiry_sweep", w.expireBatches)
		})
	}()
	go func() {
		defer wg.Done()
		w.every(ctx, w.cfg.CleanupInterval, func(ctx context.Context) {
			w.run(ctx, "cleanup", w.cleanup)
		})
	}()

	wg.Wait()
}

// every runs fn immediately and then on each tick.
func (w *Worker) every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context, job string, fn func(context.Context) error) {
	err := fn(ctx)
	if w.metrics != nil {
		w.metrics.RecordJob(job, err)
	}
	if err != nil && ctx.Err() == nil {
		w.log.Errorw("job failed", "job", job, "error", err)
	}
}

func (w *Worker) relayOutbox(ctx context.Context) {
	start := time.Now()
	n, err := w.relay.ProcessBatch(ctx)
	if w.metrics != nil {
		w.metrics.OutboxBatchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if ctx.Err() == nil {
			w.log.Errorw("outbox relay failed", "error", err)
		}
		return
	}
	if n > 0 {
		w.log.Debugw("relayed outbox batch", "count", n)
	}
}

// expireBatches marks the batches past their expiry date as Expired.
func (w *Worker) expireBatches(ctx context.Context) error {
	n, err := w.backend.Services.Batches.ExpireDue(ctx, SystemUser)
	if n > 0 {
		if w.metrics != nil {
			w.metrics.BatchesExpired.Add(float64(n))
		}
		w.log.Infow("expired batches", "count", n)
	}
	return err
}

// cleanup dead-letters exhausted outbox messages, purges old published ones
// and drops expired idempotency keys.
func (w *Worker) cleanup(ctx context.Context) error {
	if w.relay != nil {
		moved, err := w.relay.MoveToDLQ(ctx)
		if err != nil {
			return err
		}
		if moved > 0 {
			if w.metrics != nil {
				w.metrics.OutboxDeadLettered.Add(float64(moved))
			}
			w.log.Warnw("moved outbox messages to DLQ", "count", moved)
		}

		purged, err := w.relay.PurgePublished(ctx, w.cfg.OutboxRetention)
		if err != nil {
			return err
		}
		if purged > 0 {
			w.log.Infow("purged published outbox messages", "count", purged)
		}
	}

	if w.backend.Idempotency != nil {
		n, err := w.backend.Idempotency.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			if w.metrics != nil {
				w.metrics.IdempotencyPurged.Add(float64(n))
			}
			w.log.Infow("cleaned up idempotency keys", "count", n)
		}
	}

	if w.backend.Pool != nil {
		stats := postgres.GetPoolStats(w.backend.Pool.Unwrap())
		if w.metrics != nil {
			w.metrics.DBPoolAcquiredConns.Set(float64(stats.AcquiredConns))
		}
		postgres.LogPoolStats(ctx, w.backend.Pool.Unwrap())
	}
	return nil
}
