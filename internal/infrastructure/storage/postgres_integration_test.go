//go:build integration

package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"explostock/internal/core/apperror"
	"explostock/internal/core/clock"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transactions"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/storage"
	"explostock/internal/infrastructure/storage/postgres"
	"explostock/migrations"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// startPostgres runs a throwaway postgres and returns a migrated pool.
func startPostgres(t *testing.T) *postgres.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "explostock",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/explostock?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := migrations.Apply(ctx, pool.Pool)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	again, err := migrations.Apply(ctx, pool.Pool)
	require.NoError(t, err)
	require.Empty(t, again, "migrations must be applied once")

	return pool
}

func count(t *testing.T, pool *postgres.Pool, sql string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}

func TestPostgres(t *testing.T) {
	pool := startPostgres(t)
	clk := clock.NewFixed(now)

	backend, err := storage.OpenPostgres(pool, clk, time.Hour)
	require.NoError(t, err)
	svc := backend.Services
	ctx := context.Background()

	receive := func(t *testing.T, code string, qty int64) *warehouse.Batch {
		t.Helper()
		b, err := svc.Batches.Receive(ctx, warehouse.ReceiveCommand{
			Code:           code,
			MaterialTypeID: id.New(),
			Unit:           "kg",
			Quantity:       types.NewQuantity(qty),
			ManufacturedAt: now.AddDate(0, -1, 0),
			ExpiresAt:      now.AddDate(1, 0, 0),
			UserID:         "storekeeper",
		})
		require.NoError(t, err)
		return b
	}

	t.Run("transfer lifecycle", func(t *testing.T) {
		batch := receive(t, "ANFO-001", 1000)
		store := id.New()

		req, err := svc.Transfers.Create(ctx, transfer.CreateCommand{
			BatchID: batch.ID, DestinationStoreID: store, Quantity: types.NewQuantity(400), UserID: "foreman",
		})
		require.NoError(t, err)
		assert.Equal(t, "TR-20261019-00001", req.Number)

		approved := types.NewQuantity(300)
		_, err = svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: req.ID, ApprovedQuantity: &approved, UserID: "manager"})
		require.NoError(t, err)

		_, err = svc.Transfers.Dispatch(ctx, transfer.DispatchCommand{
			RequestID: req.ID, TruckNumber: "KA-01-7781", DriverName: "R. Rao", UserID: "dispatcher",
		})
		require.NoError(t, err)
		_, err = svc.Transfers.ConfirmDelivery(ctx, transfer.ProcessCommand{RequestID: req.ID, UserID: "store"})
		require.NoError(t, err)

		done, err := svc.Transfers.Complete(ctx, transfer.ProcessCommand{RequestID: req.ID, UserID: "store"})
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusCompleted, done.Status)

		b, err := svc.Batches.GetByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, types.NewQuantity(700), b.Quantity)
		assert.True(t, b.Allocated.IsZero())

		st, err := svc.Stocks.GetByStoreAndMaterial(ctx, store, batch.MaterialTypeID)
		require.NoError(t, err)
		assert.Equal(t, types.NewQuantity(300), st.Quantity)

		entries, err := svc.Ledger.ListByTransferRequest(ctx, req.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, ledger.TypeTransfer, entries[0].Type)
		assert.Equal(t, *done.LedgerEntryID, entries[0].ID)

		assert.Positive(t, count(t, pool, `SELECT COUNT(*) FROM sys_outbox WHERE aggregate_id = $1`, req.ID))
		// One create and four transitions.
		assert.Equal(t, 5, count(t, pool, `SELECT COUNT(*) FROM sys_audit WHERE entity_id = $1`, req.ID))

		history, err := backend.Audit.GetEntityHistory(ctx, transfer.EntityName, req.ID, 10)
		require.NoError(t, err)
		require.NotEmpty(t, history)
		assert.Equal(t, postgres.AuditActionUpdate, history[0].Action)
	})

	t.Run("failed command rolls back", func(t *testing.T) {
		batch := receive(t, "PETN-002", 100)
		req, err := svc.Transfers.Create(ctx, transfer.CreateCommand{
			BatchID: batch.ID, DestinationStoreID: id.New(), Quantity: types.NewQuantity(150), UserID: "foreman",
		})
		require.NoError(t, err)

		_, err = svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: req.ID, UserID: "manager"})
		assert.True(t, apperror.IsInsufficientQuantity(err), "got %v", err)

		stored, err := svc.Transfers.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, transfer.StatusPending, stored.Status)
		assert.Equal(t, req.Version, stored.Version)
		assert.Equal(t, 1, count(t, pool, `SELECT COUNT(*) FROM sys_audit WHERE entity_id = $1`, req.ID))
	})

	t.Run("duplicate batch code", func(t *testing.T) {
		receive(t, "TNT-003", 10)
		_, err := svc.Batches.Receive(ctx, warehouse.ReceiveCommand{
			Code: "TNT-003", MaterialTypeID: id.New(), Unit: "kg", Quantity: types.NewQuantity(5),
			ManufacturedAt: now.AddDate(0, -1, 0), ExpiresAt: now.AddDate(1, 0, 0), UserID: "storekeeper",
		})
		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate), "got %v", err)
	})

	t.Run("concurrent allocations", func(t *testing.T) {
		batch := receive(t, "EMUL-004", 600)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = svc.Batches.Allocate(ctx, warehouse.QuantityCommand{
					BatchID: batch.ID, Quantity: types.NewQuantity(600), UserID: "manager",
				})
			}(i)
		}
		wg.Wait()

		failures := 0
		for _, err := range errs {
			if err != nil {
				failures++
				assert.True(t, apperror.IsConcurrentModification(err) || apperror.IsInsufficientQuantity(err), "got %v", err)
			}
		}
		assert.Equal(t, 1, failures)

		b, err := svc.Batches.GetByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, types.NewQuantity(600), b.Allocated)
	})

	t.Run("stock movements", func(t *testing.T) {
		from, to, material := id.New(), id.New(), id.New()
		_, err := svc.Transactions.StockIn(ctx, transactions.StockInCommand{
			Movement: transactions.Movement{StoreID: from, MaterialTypeID: material},
			Quantity: types.NewQuantity(50),
			Unit:     "pcs",
		})
		require.NoError(t, err)

		_, err = svc.Stocks.Create(ctx, storestock.CreateCommand{StoreID: to, MaterialTypeID: material, Unit: "pcs", UserID: "clerk"})
		require.NoError(t, err)
		_, err = svc.Stocks.Create(ctx, storestock.CreateCommand{StoreID: to, MaterialTypeID: material, Unit: "pcs", UserID: "clerk"})
		assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate), "got %v", err)

		_, err = svc.Transactions.Transfer(ctx, transactions.TransferCommand{
			Movement:  transactions.Movement{StoreID: from, MaterialTypeID: material},
			ToStoreID: to,
			Quantity:  types.NewQuantity(20),
		})
		require.NoError(t, err)

		_, err = svc.Transactions.Adjustment(ctx, transactions.AdjustmentCommand{
			Movement: transactions.Movement{StoreID: from, MaterialTypeID: material},
			Delta:    types.NewQuantity(-100),
		})
		assert.True(t, apperror.IsInsufficientQuantity(err), "got %v", err)

		res, err := svc.Ledger.ListByStore(ctx, from, ledger.ListFilter{})
		require.NoError(t, err)
		require.EqualValues(t, 2, res.TotalCount)
		assert.Equal(t, ledger.TypeTransfer, res.Items[0].Type, "newest first")

		res, err = svc.Ledger.ListByStore(ctx, to, ledger.ListFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.TotalCount)
	})

	t.Run("idempotency keys", func(t *testing.T) {
		store := backend.Idempotency
		replay, err := store.AcquireKey(ctx, "key-1", "u1", "POST /transfers", "hash-a")
		require.NoError(t, err)
		assert.Nil(t, replay)

		_, err = store.AcquireKey(ctx, "key-1", "u1", "POST /transfers", "hash-a")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "got %v", err)

		require.NoError(t, store.CompleteKey(ctx, "key-1", 201, "application/json", []byte(`{"ok":true}`)))
		replay, err = store.AcquireKey(ctx, "key-1", "u1", "POST /transfers", "hash-a")
		require.NoError(t, err)
		require.NotNil(t, replay)
		assert.Equal(t, 201, replay.StatusCode)

		_, err = store.AcquireKey(ctx, "key-1", "u1", "POST /transfers", "hash-b")
		assert.True(t, apperror.HasCode(err, apperror.CodeIdempotency), "got %v", err)
	})
}
