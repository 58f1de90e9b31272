package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

func TestEntry_Validate(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	valid := func() *Entry {
		return NewEntry(id.New(), id.New(), "kg", TypeStockIn, DirectionIn, types.NewQuantity(5), now)
	}

	require.NoError(t, valid().Validate(context.Background()))

	tests := []struct {
		name   string
		mutate func(e *Entry)
	}{
		{"missing store", func(e *Entry) { e.StoreID = id.Nil() }},
		{"missing unit", func(e *Entry) { e.Unit = "" }},
		{"unknown type", func(e *Entry) { e.Type = "Gift" }},
		{"unknown direction", func(e *Entry) { e.Direction = "sideways" }},
		{"zero quantity", func(e *Entry) { e.Quantity = 0 }},
		{"negative quantity", func(e *Entry) { e.Quantity = types.NewQuantity(-1) }},
		{"related store equals store", func(e *Entry) { e.RelatedStoreID = &e.StoreID }},
		{"missing timestamp", func(e *Entry) { e.TransactionAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid()
			tt.mutate(e)
			assert.True(t, apperror.IsValidation(e.Validate(context.Background())))
		})
	}
}

func TestEntry_Signed(t *testing.T) {
	e := NewEntry(id.New(), id.New(), "kg", TypeAdjustment, DirectionOut, types.NewQuantity(7), time.Now())
	assert.Equal(t, types.NewQuantity(-7), e.Signed())

	e.Direction = DirectionIn
	assert.Equal(t, types.NewQuantity(7), e.Signed())
}
