package warehouse

import (
	"context"
	"slices"
	"time"

	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// Repository defines persistence for warehouse batches.
// Batches are never deleted. Update uses optimistic locking on Version.
type Repository interface {
	Create(ctx context.Context, b *Batch) error
	GetByID(ctx context.Context, batchID id.ID) (*Batch, error)
	GetByCode(ctx context.Context, code string) (*Batch, error)
	Update(ctx context.Context, b *Batch) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Batch], error)
}

// ListFilter for batch queries.
type ListFilter struct {
	domain.ListFilter

	MaterialTypeID *id.ID
	Statuses       []Status

	// ExpiresBefore keeps batches whose expiry date is before the given time.
	ExpiresBefore *time.Time

	// Received filters by CreatedAt.
	Received domain.DateRange
}

// Matches reports whether b satisfies the filter.
func (f ListFilter) Matches(b *Batch) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, b.ID) {
		return false
	}
	if f.MaterialTypeID != nil && b.MaterialTypeID != *f.MaterialTypeID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
		return false
	}
	if f.ExpiresBefore != nil && !b.ExpiresAt.Before(*f.ExpiresBefore) {
		return false
	}
	return f.Received.Contains(b.CreatedAt)
}
