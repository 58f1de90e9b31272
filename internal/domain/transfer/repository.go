package transfer

import (
	"context"
	"slices"
	"time"

	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// Repository defines persistence for transfer requests.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, requestID id.ID) (*Request, error)
	GetByNumber(ctx context.Context, number string) (*Request, error)

	// Update uses optimistic locking on Version.
	Update(ctx context.Context, r *Request) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Request], error)
}

// ListFilter for transfer request queries.
type ListFilter struct {
	domain.ListFilter

	Statuses           []Status
	DestinationStoreID *id.ID
	BatchID            *id.ID
	MaterialTypeID     *id.ID
	Requested          domain.DateRange

	// OverdueAt keeps requests overdue at the given instant.
	OverdueAt *time.Time

	// UrgentAt keeps requests urgent at the given instant.
	UrgentAt *time.Time
}

// Matches reports whether r satisfies the filter.
func (f ListFilter) Matches(r *Request) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, r.ID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.DestinationStoreID != nil && r.DestinationStoreID != *f.DestinationStoreID {
		return false
	}
	if f.BatchID != nil && r.BatchID != *f.BatchID {
		return false
	}
	if f.MaterialTypeID != nil && r.MaterialTypeID != *f.MaterialTypeID {
		return false
	}
	if f.OverdueAt != nil && !r.IsOverdue(*f.OverdueAt) {
		return false
	}
	if f.UrgentAt != nil && !r.IsUrgent(*f.UrgentAt) {
		return false
	}
	return f.Requested.Contains(r.RequestedAt)
}
