package storestock

import (
	"context"
	"slices"

	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// Repository defines persistence for store stock rows.
// Update uses optimistic locking on Version and bumps it on success.
type Repository interface {
	Create(ctx context.Context, s *Stock) error
	GetByID(ctx context.Context, stockID id.ID) (*Stock, error)

	// GetByStoreAndMaterial returns NotFound when the pair has no row.
	GetByStoreAndMaterial(ctx context.Context, storeID, materialTypeID id.ID) (*Stock, error)

	Update(ctx context.Context, s *Stock) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Stock], error)
}

// ListFilter for store stock queries.
type ListFilter struct {
	domain.ListFilter

	StoreID        *id.ID
	MaterialTypeID *id.ID

	// LowStockOnly keeps rows with a minimum level and quantity at or below it.
	LowStockOnly bool
}

// Matches reports whether s satisfies the filter.
func (f ListFilter) Matches(s *Stock) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, s.ID) {
		return false
	}
	if !f.IncludeInactive && !s.Lifecycle.IsActive() {
		return false
	}
	if f.StoreID != nil && s.StoreID != *f.StoreID {
		return false
	}
	if f.MaterialTypeID != nil && s.MaterialTypeID != *f.MaterialTypeID {
		return false
	}
	if f.LowStockOnly && !s.IsLowStock() {
		return false
	}
	return true
}
