package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
)

func TestExtractDBColumns_EmbeddedFields(t *testing.T) {
	cols := ExtractDBColumns[storestock.Stock]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_by",
		"store_id", "material_type_id", "unit",
		"quantity", "reserved", "minimum_level", "lifecycle",
	} {
		assert.Contains(t, cols, expected)
	}

	// Embedded columns keep their declaration order.
	assert.Equal(t, []string{"id", "version"}, cols[:2])
}

func TestExtractDBColumns_NoDuplicates(t *testing.T) {
	cols := ExtractDBColumns[ledger.Entry]()
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		require.False(t, seen[c], "duplicate column %s", c)
		seen[c] = true
	}
	assert.True(t, seen["related_store_id"])
}

func TestStructToMap_Stock(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	st := storestock.NewStock(id.New(), id.New(), "kg", now, "clerk")
	st.Quantity = types.NewQuantity(12)
	st.Version = 4

	m := StructToMap(st)

	assert.Equal(t, st.ID, m["id"])
	assert.Equal(t, 4, m["version"])
	assert.Equal(t, st.StoreID, m["store_id"])
	assert.Equal(t, "kg", m["unit"])
	assert.Equal(t, types.NewQuantity(12), m["quantity"])
	assert.Equal(t, now, m["created_at"])
	assert.Nil(t, m["minimum_level"])
	assert.Len(t, m, len(ExtractDBColumns[storestock.Stock]()))
}

func TestWithout(t *testing.T) {
	m := map[string]any{"id": 1, "version": 2, "quantity": 3}
	out := Without(m, "id", "version")

	assert.Equal(t, map[string]any{"quantity": 3}, out)
	assert.Len(t, m, 3, "source map is untouched")
}

func TestDiff(t *testing.T) {
	before := map[string]any{"status": "Pending", "quantity": int64(10), "notes": "x"}
	after := map[string]any{"status": "Approved", "quantity": int64(10), "approved_by": "a"}

	changes := Diff(before, after)

	assert.Len(t, changes, 3)
	assert.Equal(t, map[string]any{"old": "Pending", "new": "Approved"}, changes["status"])
	assert.Equal(t, map[string]any{"old": nil, "new": "a"}, changes["approved_by"])
	assert.Equal(t, map[string]any{"old": "x", "new": nil}, changes["notes"])
}
