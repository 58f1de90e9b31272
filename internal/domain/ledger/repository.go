package ledger

import (
	"context"
	"slices"

	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// Repository persists ledger entries. Entries are immutable: no Update or Delete.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, entryID id.ID) (*Entry, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Entry], error)
}

// ListFilter for ledger queries.
type ListFilter struct {
	domain.ListFilter

	// StoreID matches entries where the store is either side of the movement.
	StoreID           *id.ID
	MaterialTypeID    *id.ID
	Type              *TransactionType
	TransferRequestID *id.ID
	Period            domain.DateRange
}

// Matches reports whether e satisfies the filter. Storage backends without
// a query language use it; SQL backends translate the same fields.
func (f ListFilter) Matches(e *Entry) bool {
	if len(f.IDs) > 0 && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if f.StoreID != nil && e.StoreID != *f.StoreID &&
		(e.RelatedStoreID == nil || *e.RelatedStoreID != *f.StoreID) {
		return false
	}
	if f.MaterialTypeID != nil && e.MaterialTypeID != *f.MaterialTypeID {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.TransferRequestID != nil && (e.TransferRequestID == nil || *e.TransferRequestID != *f.TransferRequestID) {
		return false
	}
	return f.Period.Contains(e.TransactionAt)
}

