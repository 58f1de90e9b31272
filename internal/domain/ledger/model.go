// Package ledger provides the append-only stock ledger: one immutable entry
// per stock-affecting operation at a store.
package ledger

import (
	"context"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

// EntityName is used in error details and events.
const EntityName = "StockLedgerEntry"

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeStockIn    TransactionType = "StockIn"
	TypeStockOut   TransactionType = "StockOut"
	TypeTransfer   TransactionType = "Transfer"
	TypeAdjustment TransactionType = "Adjustment"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TypeStockIn, TypeStockOut, TypeTransfer, TypeAdjustment:
		return true
	}
	return false
}

// Direction tells whether the entry increased or decreased stock at StoreID.
// Quantity is always a positive magnitude.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Entry is a single immutable ledger record.
type Entry struct {
	ID id.ID `db:"id" json:"id"`

	// StoreID is the store whose stock moved.
	StoreID id.ID `db:"store_id" json:"storeId"`

	// StoreStockID references the affected stock row, when known.
	StoreStockID *id.ID `db:"store_stock_id" json:"storeStockId,omitempty"`

	// RelatedStoreID is the counterpart store of a store-to-store transfer.
	RelatedStoreID *id.ID `db:"related_store_id" json:"relatedStoreId,omitempty"`

	// TransferRequestID is set for entries written by a completed transfer request.
	TransferRequestID *id.ID `db:"transfer_request_id" json:"transferRequestId,omitempty"`

	entity.MaterialAware

	Type      TransactionType `db:"transaction_type" json:"transactionType"`
	Direction Direction       `db:"direction" json:"direction"`
	Quantity  types.Quantity  `db:"quantity" json:"quantity"`

	ReferenceNumber *string `db:"reference_number" json:"referenceNumber,omitempty"`
	Notes           *string `db:"notes" json:"notes,omitempty"`

	// ProcessedBy is the acting user. Nil when the operation had no user.
	ProcessedBy *string `db:"processed_by" json:"processedBy,omitempty"`

	TransactionAt time.Time `db:"transaction_at" json:"transactionAt"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// NewEntry creates an entry stamped at now.
func NewEntry(storeID, materialTypeID id.ID, unit string, typ TransactionType, dir Direction, qty types.Quantity, now time.Time) *Entry {
	return &Entry{
		ID:      id.New(),
		StoreID: storeID,
		MaterialAware: entity.MaterialAware{
			MaterialTypeID: materialTypeID,
			Unit:           unit,
		},
		Type:          typ,
		Direction:     dir,
		Quantity:      qty,
		TransactionAt: now,
		CreatedAt:     now,
	}
}

// Validate implements entity.Validatable.
func (e *Entry) Validate(ctx context.Context) error {
	if id.IsNil(e.StoreID) {
		return apperror.NewRequired("storeId")
	}
	if err := e.ValidateMaterial(ctx); err != nil {
		return err
	}
	if !e.Type.IsValid() {
		return apperror.NewValidation("unknown transaction type").
			WithDetail("field", "transactionType").
			WithDetail("value", string(e.Type))
	}
	if e.Direction != DirectionIn && e.Direction != DirectionOut {
		return apperror.NewValidation("unknown direction").
			WithDetail("field", "direction").
			WithDetail("value", string(e.Direction))
	}
	if !e.Quantity.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", e.Quantity)
	}
	if e.RelatedStoreID != nil && *e.RelatedStoreID == e.StoreID {
		return apperror.NewValidation("related store must differ from store").
			WithDetail("field", "relatedStoreId")
	}
	if e.TransactionAt.IsZero() {
		return apperror.NewRequired("transactionAt")
	}
	return nil
}

// Signed returns the quantity with the sign implied by Direction.
func (e *Entry) Signed() types.Quantity {
	if e.Direction == DirectionOut {
		return e.Quantity.Neg()
	}
	return e.Quantity
}
