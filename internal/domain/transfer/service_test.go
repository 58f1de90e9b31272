package transfer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/app"
	"explostock/internal/core/apperror"
	"explostock/internal/core/clock"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/storage/memory"
)

var start = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *app.Services
	store *memory.Store
	clk   *clock.Fixed
	batch *warehouse.Batch
	dest  id.ID
}

func newFixture(t *testing.T, qty int64) *fixture {
	t.Helper()
	clk := clock.NewFixed(start)
	svc, store := memory.NewServices(clk)

	b, err := svc.Batches.Receive(context.Background(), warehouse.ReceiveCommand{
		Code:           "EMUL-2026-014",
		MaterialTypeID: id.New(),
		Unit:           "kg",
		Quantity:       types.NewQuantity(qty),
		ManufacturedAt: start.AddDate(0, -1, 0),
		ExpiresAt:      start.AddDate(1, 0, 0),
		UserID:         "storekeeper",
	})
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, clk: clk, batch: b, dest: id.New()}
}

func (f *fixture) create(t *testing.T, qty int64) *transfer.Request {
	t.Helper()
	r, err := f.svc.Transfers.Create(context.Background(), transfer.CreateCommand{
		BatchID:            f.batch.ID,
		DestinationStoreID: f.dest,
		Quantity:           types.NewQuantity(qty),
		UserID:             "site-manager",
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) reloadBatch(t *testing.T) *warehouse.Batch {
	t.Helper()
	b, err := f.svc.Batches.GetByID(context.Background(), f.batch.ID)
	require.NoError(t, err)
	return b
}

func TestService_CreateAssignsNumbers(t *testing.T) {
	f := newFixture(t, 1000)

	first := f.create(t, 100)
	second := f.create(t, 50)

	assert.Equal(t, "TR-20261019-00001", first.Number)
	assert.Equal(t, "TR-20261019-00002", second.Number)
	assert.Equal(t, transfer.StatusPending, first.Status)
	assert.Equal(t, f.batch.MaterialTypeID, first.MaterialTypeID)
	assert.Equal(t, "kg", first.Unit)

	got, err := f.svc.Transfers.GetByNumber(context.Background(), "TR-20261019-00002")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	// Creating a request allocates nothing.
	assert.True(t, f.reloadBatch(t).Allocated.IsZero())
}

func TestService_CreateRejections(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Transfers.Create(ctx, transfer.CreateCommand{
		BatchID: id.New(), DestinationStoreID: f.dest, Quantity: types.NewQuantity(1), UserID: "u",
	})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.Transfers.Create(ctx, transfer.CreateCommand{
		BatchID: f.batch.ID, DestinationStoreID: f.dest, Quantity: 0, UserID: "u",
	})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Batches.MarkExpired(ctx, f.batch.ID, "qa")
	require.NoError(t, err)
	_, err = f.svc.Transfers.Create(ctx, transfer.CreateCommand{
		BatchID: f.batch.ID, DestinationStoreID: f.dest, Quantity: types.NewQuantity(1), UserID: "u",
	})
	assert.True(t, apperror.IsInvalidState(err))
}

// Request 500, approve 300, dispatch, complete.
func TestService_FullWorkflow(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	r := f.create(t, 500)

	partial := types.NewQuantity(300)
	r, err := f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: r.ID, ApprovedQuantity: &partial, UserID: "chief"})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusApproved, r.Status)
	assert.Equal(t, types.NewQuantity(300), f.reloadBatch(t).Allocated)

	f.clk.Advance(2 * time.Hour)
	r, err = f.svc.Transfers.Dispatch(ctx, transfer.DispatchCommand{
		RequestID: r.ID, TruckNumber: "MH-12-7781", DriverName: "R. Patil", UserID: "dispatch",
	})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusInProgress, r.Status)

	f.clk.Advance(5 * time.Hour)
	r, err = f.svc.Transfers.ConfirmDelivery(ctx, transfer.ProcessCommand{RequestID: r.ID, UserID: "site"})
	require.NoError(t, err)
	require.NotNil(t, r.DeliveryConfirmedAt)

	r, err = f.svc.Transfers.Complete(ctx, transfer.ProcessCommand{RequestID: r.ID, UserID: "site"})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCompleted, r.Status)
	require.NotNil(t, r.LedgerEntryID)

	b := f.reloadBatch(t)
	assert.Equal(t, types.NewQuantity(700), b.Quantity)
	assert.True(t, b.Allocated.IsZero())
	assert.Equal(t, warehouse.StatusAvailable, b.Status)

	st, err := f.svc.Stocks.GetByStoreAndMaterial(ctx, f.dest, b.MaterialTypeID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(300), st.Quantity)
	require.NotNil(t, st.BatchNumber)
	assert.Equal(t, "EMUL-2026-014", *st.BatchNumber)

	entries, err := f.svc.Ledger.ListByTransferRequest(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, *r.LedgerEntryID, e.ID)
	assert.Equal(t, ledger.TypeTransfer, e.Type)
	assert.Equal(t, ledger.DirectionIn, e.Direction)
	assert.Equal(t, types.NewQuantity(300), e.Quantity)
	assert.Equal(t, f.dest, e.StoreID)
	assert.Equal(t, r.Number, *e.ReferenceNumber)

	_, err = f.svc.Transfers.Cancel(ctx, transfer.ReasonCommand{RequestID: r.ID, Reason: "late", UserID: "chief"})
	assert.True(t, apperror.IsInvalidState(err))
}

func TestService_CompleteAddsToExistingStock(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	existing, err := f.svc.Stocks.Create(ctx, storestock.CreateCommand{
		StoreID: f.dest, MaterialTypeID: f.batch.MaterialTypeID, Unit: "kg",
	})
	require.NoError(t, err)

	r := f.create(t, 40)
	_, err = f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: r.ID, UserID: "chief"})
	require.NoError(t, err)
	_, err = f.svc.Transfers.Complete(ctx, transfer.ProcessCommand{RequestID: r.ID, UserID: "site"})
	require.NoError(t, err)

	st, err := f.svc.Stocks.GetByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(40), st.Quantity)
}

func TestService_CancelReleasesAllocation(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	r := f.create(t, 250)

	_, err := f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: r.ID, UserID: "chief"})
	require.NoError(t, err)
	require.Equal(t, types.NewQuantity(250), f.reloadBatch(t).Allocated)

	_, err = f.svc.Transfers.Cancel(ctx, transfer.ReasonCommand{RequestID: r.ID, UserID: "chief"})
	assert.True(t, apperror.IsValidation(err))

	cancelled, err := f.svc.Transfers.Cancel(ctx, transfer.ReasonCommand{RequestID: r.ID, Reason: "site closed", UserID: "chief"})
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusCancelled, cancelled.Status)
	assert.True(t, f.reloadBatch(t).Allocated.IsZero())
}

func TestService_CancelPendingTouchesNothing(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()
	r := f.create(t, 250)

	_, err := f.svc.Transfers.Cancel(ctx, transfer.ReasonCommand{RequestID: r.ID, Reason: "duplicate", UserID: "site-manager"})
	require.NoError(t, err)
	b := f.reloadBatch(t)
	assert.True(t, b.Allocated.IsZero())
	assert.Equal(t, 1, b.Version)
}

func TestService_ApproveFailsWhenBatchIsShort(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	first := f.create(t, 80)
	second := f.create(t, 80)

	_, err := f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: first.ID, UserID: "chief"})
	require.NoError(t, err)

	_, err = f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: second.ID, UserID: "chief"})
	assert.True(t, apperror.IsInsufficientQuantity(err))

	got, err := f.svc.Transfers.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusPending, got.Status)
	assert.Nil(t, got.ApprovedQuantity)
}

func TestService_CompleteIsAtomic(t *testing.T) {
	f := newFixture(t, 500)
	ctx := context.Background()
	r := f.create(t, 200)
	_, err := f.svc.Transfers.Approve(ctx, transfer.ApproveCommand{RequestID: r.ID, UserID: "chief"})
	require.NoError(t, err)
	eventsBefore := len(f.store.Events())

	boom := errors.New("store offline")
	f.svc.Stocks.Hooks().OnAfterUpdate(func(context.Context, *storestock.Stock) error { return boom })

	_, err = f.svc.Transfers.Complete(ctx, transfer.ProcessCommand{RequestID: r.ID, UserID: "site"})
	require.ErrorIs(t, err, boom)

	got, err := f.svc.Transfers.GetByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, transfer.StatusApproved, got.Status)
	assert.Nil(t, got.LedgerEntryID)

	b := f.reloadBatch(t)
	assert.Equal(t, types.NewQuantity(500), b.Quantity)
	assert.Equal(t, types.NewQuantity(200), b.Allocated)

	_, err = f.svc.Stocks.GetByStoreAndMaterial(ctx, f.dest, f.batch.MaterialTypeID)
	assert.True(t, apperror.IsNotFound(err))

	res, err := f.svc.Ledger.List(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Len(t, f.store.Events(), eventsBefore)
}

func TestService_TransitionsNeedUser(t *testing.T) {
	f := newFixture(t, 100)
	r := f.create(t, 10)

	_, err := f.svc.Transfers.Approve(context.Background(), transfer.ApproveCommand{RequestID: r.ID})
	assert.True(t, apperror.IsValidation(err))
}

func TestService_OverdueAndUrgentQueries(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	soon := start.Add(2 * 24 * time.Hour)
	later := start.Add(20 * 24 * time.Hour)
	urgent, err := f.svc.Transfers.Create(ctx, transfer.CreateCommand{
		BatchID: f.batch.ID, DestinationStoreID: f.dest, Quantity: types.NewQuantity(10), RequiredBy: &soon, UserID: "u",
	})
	require.NoError(t, err)
	_, err = f.svc.Transfers.Create(ctx, transfer.CreateCommand{
		BatchID: f.batch.ID, DestinationStoreID: f.dest, Quantity: types.NewQuantity(10), RequiredBy: &later, UserID: "u",
	})
	require.NoError(t, err)

	items, err := f.svc.Transfers.ListUrgent(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, urgent.ID, items[0].ID)

	overdue, err := f.svc.Transfers.ListOverdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	f.clk.Advance(3 * 24 * time.Hour)
	overdue, err = f.svc.Transfers.ListOverdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, urgent.ID, overdue[0].ID)
}
