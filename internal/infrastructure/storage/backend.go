// Package storage opens the configured storage backend and builds the domain
// services over it.
package storage

import (
	"context"
	"fmt"
	"time"

	"explostock/internal/app"
	"explostock/internal/config"
	"explostock/internal/core/clock"
	"explostock/internal/domain"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/numerator"
	"explostock/internal/infrastructure/storage/memory"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/internal/infrastructure/storage/postgres/document_repo"
	"explostock/internal/infrastructure/storage/postgres/register_repo"
)

// Backend is an opened storage backend with the services built over it.
// The postgres-only collaborators are nil in memory mode.
type Backend struct {
	Driver   string
	Services *app.Services

	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Audit       *postgres.AuditService
	Idempotency *postgres.IdempotencyStore

	Memory *memory.Store
}

// Open opens the backend selected by cfg.StorageDriver.
func Open(ctx context.Context, cfg config.Config, clk clock.Clock) (*Backend, error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		return OpenMemory(clk), nil
	case config.StoragePostgres:
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		if cfg.DBMaxConns > 0 {
			poolCfg.MaxConns = int32(cfg.DBMaxConns)
		}
		poolCfg.LockTimeout = cfg.DBLockTimeout
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, err
		}
		b, err := OpenPostgres(pool, clk, cfg.IdempotencyTTL)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// OpenMemory builds the services over a fresh in-memory store.
func OpenMemory(clk clock.Clock) *Backend {
	svc, store := memory.NewServices(clk)
	return &Backend{
		Driver:   config.StorageMemory,
		Services: svc,
		Memory:   store,
	}
}

// OpenPostgres builds the services over pool. Events go to the outbox and
// every batch, transfer request and store stock write is audited, both in
// the command's transaction.
func OpenPostgres(pool *postgres.Pool, clk clock.Clock, idempotencyTTL time.Duration) (*Backend, error) {
	if clk == nil {
		clk = clock.System()
	}
	txm := postgres.NewTxManager(pool)

	repos := app.Repositories{
		Batches:  document_repo.NewBatchRepo(txm),
		Requests: document_repo.NewTransferRequestRepo(txm),
		Stocks:   document_repo.NewStoreStockRepo(txm),
		Ledger:   register_repo.NewLedgerRepo(txm),
	}
	num := numerator.NewWithProvider(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	svc := app.New(repos, num, domain.ServiceDeps{
		TxManager: txm,
		Clock:     clk,
		Events:    postgres.NewOutboxPublisher(txm, clk),
	})

	audit, err := postgres.NewAuditService(txm, clk)
	if err != nil {
		return nil, fmt.Errorf("create audit service: %w", err)
	}
	postgres.RegisterAuditHooks(audit, warehouse.EntityName, svc.Batches.Hooks())
	postgres.RegisterAuditHooks(audit, transfer.EntityName, svc.Transfers.Hooks())
	postgres.RegisterAuditHooks(audit, storestock.EntityName, svc.Stocks.Hooks())

	return &Backend{
		Driver:      config.StoragePostgres,
		Services:    svc,
		Pool:        pool,
		TxManager:   txm,
		Audit:       audit,
		Idempotency: postgres.NewIdempotencyStore(txm, clk, idempotencyTTL),
	}, nil
}

// Ping checks that the backend can serve requests.
func (b *Backend) Ping(ctx context.Context) error {
	if b.Pool == nil {
		return nil
	}
	return b.Pool.Ping(ctx)
}

// Close releases the pool and the audit codec.
func (b *Backend) Close() {
	if b.Audit != nil {
		b.Audit.Close()
	}
	if b.Pool != nil {
		b.Pool.Close()
	}
}
