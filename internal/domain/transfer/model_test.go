package transfer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func pending(qty int64) *Request {
	return NewRequest(id.New(), id.New(), id.New(), "kg", types.NewQuantity(qty), "requester", now)
}

func approved(t *testing.T, qty int64) *Request {
	t.Helper()
	r := pending(qty)
	require.NoError(t, r.Approve("approver", nil, nil, now))
	return r
}

func TestRequest_Approve(t *testing.T) {
	r := pending(500)
	partial := types.NewQuantity(300)
	notes := "partial approval"

	require.NoError(t, r.Approve("approver", &partial, &notes, now))
	assert.Equal(t, StatusApproved, r.Status)
	assert.Equal(t, partial, r.FinalQuantity())
	require.NotNil(t, r.ApprovedBy)
	assert.Equal(t, "approver", *r.ApprovedBy)
	require.NotNil(t, r.ApprovedAt)
	assert.Equal(t, now, *r.ApprovedAt)
}

func TestRequest_ApproveRejections(t *testing.T) {
	tests := []struct {
		name     string
		approver string
		qty      *types.Quantity
		check    func(error) bool
	}{
		{"blank approver", "  ", nil, apperror.IsValidation},
		{"zero quantity", "approver", types.QuantityPtr(0), apperror.IsValidation},
		{"more than requested", "approver", types.QuantityPtr(types.NewQuantity(501)), apperror.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pending(500)
			err := r.Approve(tt.approver, tt.qty, nil, now)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Equal(t, StatusPending, r.Status)
			assert.Nil(t, r.ApprovedQuantity)
		})
	}
}

func TestRequest_FinalQuantityDefaultsToRequested(t *testing.T) {
	r := pending(120)
	assert.Equal(t, types.NewQuantity(120), r.FinalQuantity())

	require.NoError(t, r.Approve("approver", nil, nil, now))
	assert.Equal(t, types.NewQuantity(120), r.FinalQuantity())
}

func TestRequest_DispatchAndDeliver(t *testing.T) {
	r := approved(t, 10)

	err := r.ConfirmDelivery(now)
	assert.True(t, apperror.IsInvalidState(err))

	err = r.Dispatch(DispatchInfo{DispatcherID: "dispatcher", TruckNumber: "", DriverName: "D. Driver"}, now)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, StatusApproved, r.Status)

	require.NoError(t, r.Dispatch(DispatchInfo{DispatcherID: "dispatcher", TruckNumber: "KA-01-1234", DriverName: "D. Driver"}, now))
	assert.Equal(t, StatusInProgress, r.Status)
	require.NotNil(t, r.TruckNumber)
	assert.Equal(t, "KA-01-1234", *r.TruckNumber)

	later := now.Add(6 * time.Hour)
	require.NoError(t, r.ConfirmDelivery(later))
	assert.Equal(t, StatusInProgress, r.Status)
	assert.Equal(t, later, *r.DeliveryConfirmedAt)
}

func TestRequest_ConfirmDeliveryNeedsDispatch(t *testing.T) {
	r := approved(t, 10)
	require.NoError(t, r.MarkInProgress("processor"))

	err := r.ConfirmDelivery(now)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestRequest_Complete(t *testing.T) {
	r := pending(10)
	err := r.Complete("processor", id.New(), now)
	assert.True(t, apperror.IsInvalidState(err))

	r = approved(t, 10)
	assert.True(t, apperror.IsValidation(r.Complete("processor", id.Nil(), now)))

	entryID := id.New()
	require.NoError(t, r.Complete("processor", entryID, now))
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Equal(t, entryID, *r.LedgerEntryID)
	assert.Equal(t, "processor", *r.ProcessedBy)
}

func TestRequest_TerminalStatesRejectEveryTransition(t *testing.T) {
	terminal := map[string]func(t *testing.T) *Request{
		"rejected": func(t *testing.T) *Request {
			r := pending(10)
			require.NoError(t, r.Reject("approver", "not needed", now))
			return r
		},
		"completed": func(t *testing.T) *Request {
			r := approved(t, 10)
			require.NoError(t, r.Complete("processor", id.New(), now))
			return r
		},
		"cancelled": func(t *testing.T) *Request {
			r := pending(10)
			require.NoError(t, r.Cancel("requester", "duplicate", now))
			return r
		},
	}

	for name, build := range terminal {
		t.Run(name, func(t *testing.T) {
			r := build(t)
			status := r.Status
			require.True(t, r.IsTerminal())

			errs := []error{
				r.Approve("approver", nil, nil, now),
				r.Reject("approver", "reason", now),
				r.Dispatch(DispatchInfo{DispatcherID: "d", TruckNumber: "t", DriverName: "n"}, now),
				r.MarkInProgress("processor"),
				r.ConfirmDelivery(now),
				r.Complete("processor", id.New(), now),
				r.Cancel("requester", "reason", now),
			}
			for _, err := range errs {
				assert.True(t, apperror.IsInvalidState(err), "unexpected error: %v", err)
			}
			assert.Equal(t, status, r.Status)
		})
	}
}

func TestRequest_CancelNeedsReason(t *testing.T) {
	r := approved(t, 10)
	assert.True(t, apperror.IsValidation(r.Cancel("requester", " ", now)))
	assert.True(t, r.HoldsAllocation())

	require.NoError(t, r.Cancel("requester", "plan changed", now))
	assert.Equal(t, StatusCancelled, r.Status)
	assert.False(t, r.HoldsAllocation())
}

func TestRequest_OverdueAndUrgent(t *testing.T) {
	r := pending(10)
	assert.False(t, r.IsOverdue(now))
	assert.False(t, r.IsUrgent(now))

	due := now.Add(3 * 24 * time.Hour)
	r.RequiredBy = &due
	assert.True(t, r.IsUrgent(now))
	assert.False(t, r.IsOverdue(now))
	assert.True(t, r.IsOverdue(due.Add(time.Minute)))

	far := now.Add(30 * 24 * time.Hour)
	r.RequiredBy = &far
	assert.False(t, r.IsUrgent(now))

	r.RequiredBy = &due
	require.NoError(t, r.Reject("approver", "no stock", now))
	assert.False(t, r.IsUrgent(now))
	assert.True(t, r.IsOverdue(due.Add(time.Minute)))

	c := pending(10)
	c.RequiredBy = &due
	require.NoError(t, c.Cancel("requester", "dropped", now))
	assert.False(t, c.IsOverdue(due.Add(time.Minute)))
}

func TestRequest_Validate(t *testing.T) {
	r := pending(10)
	require.NoError(t, r.Validate(t.Context()))

	r.RequestedBy = ""
	assert.True(t, apperror.IsValidation(r.Validate(t.Context())))

	r = pending(0)
	assert.True(t, apperror.IsValidation(r.Validate(t.Context())))
}
