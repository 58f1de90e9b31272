package warehouse

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func kg(v int64) types.Quantity { return types.NewQuantity(v) }

func newTestBatch(qty int64) *Batch {
	return NewBatch("B-001", id.New(), "kg", kg(qty),
		testNow.AddDate(0, -1, 0), testNow.AddDate(1, 0, 0), testNow, "user-1")
}

func TestBatch_ScenarioA(t *testing.T) {
	b := newTestBatch(1000)

	require.NoError(t, b.Allocate(kg(400)))
	assert.Equal(t, kg(600), b.Available())
	assert.Equal(t, StatusAvailable, b.Status)

	require.NoError(t, b.Allocate(kg(600)))
	assert.True(t, b.Available().IsZero())
	assert.Equal(t, StatusAllocated, b.Status)

	require.NoError(t, b.ReleaseAllocation(kg(600)))
	assert.Equal(t, kg(600), b.Available())
	assert.Equal(t, StatusAvailable, b.Status)
}

func TestBatch_AllocateReleaseIsInverse(t *testing.T) {
	b := newTestBatch(500)
	require.NoError(t, b.Allocate(kg(120)))

	allocated, available := b.Allocated, b.Available()
	require.NoError(t, b.Allocate(kg(80)))
	require.NoError(t, b.ReleaseAllocation(kg(80)))

	assert.Equal(t, allocated, b.Allocated)
	assert.Equal(t, available, b.Available())
}

func TestBatch_AllocateRejections(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(b *Batch)
		qty     types.Quantity
		check   func(error) bool
	}{
		{"zero quantity", func(*Batch) {}, 0, apperror.IsValidation},
		{"negative quantity", func(*Batch) {}, kg(-1), apperror.IsValidation},
		{"more than available", func(*Batch) {}, kg(101), apperror.IsInsufficientQuantity},
		{"quarantined", func(b *Batch) { _ = b.Quarantine("damaged packaging") }, kg(1), apperror.IsInvalidState},
		{"expired", func(b *Batch) { _ = b.MarkExpired() }, kg(1), apperror.IsInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBatch(100)
			tt.prepare(b)
			before := *b

			err := b.Allocate(tt.qty)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error kind: %v", err)
			assert.Equal(t, before.Allocated, b.Allocated)
			assert.Equal(t, before.Status, b.Status)
		})
	}
}

func TestBatch_ConsumeAllocation(t *testing.T) {
	t.Run("partial consume keeps allocated status", func(t *testing.T) {
		b := newTestBatch(300)
		require.NoError(t, b.Allocate(kg(300)))
		require.Equal(t, StatusAllocated, b.Status)
		require.NoError(t, b.ReleaseAllocation(kg(100)))
		require.NoError(t, b.Allocate(kg(100)))

		require.NoError(t, b.ConsumeAllocation(kg(200)))
		assert.Equal(t, kg(100), b.Quantity)
		assert.Equal(t, kg(100), b.Allocated)
		assert.Equal(t, StatusAllocated, b.Status)

		require.NoError(t, b.ConsumeAllocation(kg(100)))
		assert.Equal(t, StatusDepleted, b.Status)
		assert.True(t, b.Quantity.IsZero())
	})

	t.Run("consuming the whole quantity depletes", func(t *testing.T) {
		b := newTestBatch(300)
		require.NoError(t, b.Allocate(kg(300)))
		require.NoError(t, b.UpdateQuantity(kg(500)))
		require.Equal(t, StatusAvailable, b.Status)
		require.NoError(t, b.Allocate(kg(200)))
		require.Equal(t, StatusAllocated, b.Status)

		require.NoError(t, b.ConsumeAllocation(kg(500)))
		assert.Equal(t, StatusDepleted, b.Status)
	})

	t.Run("consuming twice fails the second time", func(t *testing.T) {
		b := newTestBatch(1000)
		require.NoError(t, b.Allocate(kg(300)))
		require.NoError(t, b.ConsumeAllocation(kg(300)))

		err := b.ConsumeAllocation(kg(300))
		require.Error(t, err)
		assert.True(t, apperror.IsInsufficientQuantity(err))
		assert.Equal(t, kg(700), b.Quantity)
		assert.True(t, b.Allocated.IsZero())
	})
}

func TestBatch_UpdateQuantity(t *testing.T) {
	b := newTestBatch(100)
	require.NoError(t, b.Allocate(kg(40)))

	err := b.UpdateQuantity(kg(30))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
	assert.Equal(t, kg(100), b.Quantity)

	require.NoError(t, b.UpdateQuantity(kg(40)))
	assert.Equal(t, StatusAllocated, b.Status)

	require.NoError(t, b.ReleaseAllocation(kg(40)))
	require.NoError(t, b.UpdateQuantity(0))
	assert.Equal(t, StatusDepleted, b.Status)

	require.NoError(t, b.UpdateQuantity(kg(10)))
	assert.Equal(t, StatusAvailable, b.Status)
}

func TestBatch_QuarantineLifecycle(t *testing.T) {
	b := newTestBatch(100)

	require.Error(t, b.Quarantine("  "))
	require.NoError(t, b.Quarantine("seal broken"))
	assert.Equal(t, StatusQuarantined, b.Status)
	require.NotNil(t, b.QuarantineReason)

	err := b.Quarantine("again")
	assert.True(t, apperror.IsInvalidState(err))

	require.NoError(t, b.ReleaseFromQuarantine(testNow))
	assert.Equal(t, StatusAvailable, b.Status)
	assert.Nil(t, b.QuarantineReason)

	err = b.ReleaseFromQuarantine(testNow)
	assert.True(t, apperror.IsInvalidState(err))
}

func TestBatch_ReleaseFromQuarantinePriority(t *testing.T) {
	t.Run("expired wins", func(t *testing.T) {
		b := newTestBatch(100)
		require.NoError(t, b.Quarantine("inspection"))
		require.NoError(t, b.ReleaseFromQuarantine(b.ExpiresAt.Add(time.Hour)))
		assert.Equal(t, StatusExpired, b.Status)
	})

	t.Run("allocated when nothing is available", func(t *testing.T) {
		b := newTestBatch(100)
		require.NoError(t, b.Allocate(kg(100)))
		require.NoError(t, b.Quarantine("inspection"))
		require.NoError(t, b.ReleaseFromQuarantine(testNow))
		assert.Equal(t, StatusAllocated, b.Status)
	})

	t.Run("depleted when empty", func(t *testing.T) {
		b := newTestBatch(100)
		require.NoError(t, b.Quarantine("inspection"))
		require.NoError(t, b.UpdateQuantity(0))
		require.NoError(t, b.ReleaseFromQuarantine(testNow))
		assert.Equal(t, StatusDepleted, b.Status)
	})
}

func TestBatch_MarkExpired(t *testing.T) {
	b := newTestBatch(100)
	require.NoError(t, b.MarkExpired())
	assert.Equal(t, StatusExpired, b.Status)

	depleted := newTestBatch(100)
	require.NoError(t, depleted.UpdateQuantity(0))
	err := depleted.MarkExpired()
	assert.True(t, apperror.IsInvalidState(err))
}

func TestBatch_ExpiryHelpers(t *testing.T) {
	b := newTestBatch(10)
	b.ExpiresAt = time.Date(2026, 10, 25, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 6, b.DaysUntilExpiry(testNow))
	assert.True(t, b.ExpiresWithin(6, testNow))
	assert.False(t, b.ExpiresWithin(5, testNow))
	assert.False(t, b.IsExpired(testNow))
	assert.True(t, b.IsExpired(b.ExpiresAt.Add(time.Second)))
	assert.Equal(t, -1, b.DaysUntilExpiry(time.Date(2026, 10, 26, 0, 0, 0, 0, time.UTC)))
}

func TestBatch_Validate(t *testing.T) {
	ctx := context.Background()

	b := newTestBatch(10)
	require.NoError(t, b.Validate(ctx))

	b.ExpiresAt = b.ManufacturedAt
	assert.True(t, apperror.IsValidation(b.Validate(ctx)))

	b = newTestBatch(10)
	b.Code = ""
	assert.True(t, apperror.IsValidation(b.Validate(ctx)))
}

// Random operation sequences never break allocated <= quantity or the
// status invariants.
func TestBatch_InvariantsHoldUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	for run := 0; run < 50; run++ {
		b := newTestBatch(1000)
		for step := 0; step < 200; step++ {
			qty := kg(rng.Int64N(400) - 20)
			switch rng.IntN(6) {
			case 0, 1:
				_ = b.Allocate(qty)
			case 2:
				_ = b.ReleaseAllocation(qty)
			case 3:
				_ = b.ConsumeAllocation(qty)
			case 4:
				_ = b.UpdateQuantity(b.Quantity + qty)
			case 5:
				if b.Status == StatusQuarantined {
					_ = b.ReleaseFromQuarantine(testNow)
				} else {
					_ = b.Quarantine("random check")
				}
			}

			require.False(t, b.Allocated.IsNegative())
			require.LessOrEqual(t, b.Allocated, b.Quantity)
			if b.Status == StatusAllocated {
				require.True(t, b.Available().IsZero(), "allocated batch with available stock")
			}
			if b.Status == StatusDepleted {
				require.True(t, b.Quantity.IsZero(), "depleted batch with stock")
			}
		}
	}
}
