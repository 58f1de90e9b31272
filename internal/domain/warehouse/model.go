// Package warehouse provides central-warehouse batches: lots of material with
// expiry dates, an on-hand quantity and an allocation counter.
package warehouse

import (
	"context"
	"strings"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

// EntityName is used in error details and events.
const EntityName = "WarehouseBatch"

// Status is the business status of a batch.
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusAllocated   Status = "Allocated"
	StatusQuarantined Status = "Quarantined"
	StatusExpired     Status = "Expired"
	StatusDepleted    Status = "Depleted"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusAvailable, StatusAllocated, StatusQuarantined, StatusExpired, StatusDepleted:
		return true
	}
	return false
}

// Batch is a warehouse lot.
//
// Invariants:
//   - 0 <= Allocated <= Quantity
//   - StatusAllocated implies Available() == 0
//   - StatusDepleted implies Quantity == 0
type Batch struct {
	entity.BaseDocument

	// Code is the human-assigned batch code, unique across the warehouse.
	Code string `db:"code" json:"code"`

	entity.MaterialAware

	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Allocated types.Quantity `db:"allocated" json:"allocated"`

	ManufacturedAt time.Time `db:"manufactured_at" json:"manufacturedAt"`
	ExpiresAt      time.Time `db:"expires_at" json:"expiresAt"`

	Status           Status  `db:"status" json:"status"`
	QuarantineReason *string `db:"quarantine_reason" json:"quarantineReason,omitempty"`

	Supplier        *string `db:"supplier" json:"supplier,omitempty"`
	StorageLocation *string `db:"storage_location" json:"storageLocation,omitempty"`
	Notes           *string `db:"notes" json:"notes,omitempty"`
}

// NewBatch creates an Available batch received at now.
func NewBatch(code string, materialTypeID id.ID, unit string, qty types.Quantity, manufacturedAt, expiresAt, now time.Time, createdBy string) *Batch {
	return &Batch{
		BaseDocument: entity.NewBaseDocument(now, createdBy),
		Code:         strings.TrimSpace(code),
		MaterialAware: entity.MaterialAware{
			MaterialTypeID: materialTypeID,
			Unit:           unit,
		},
		Quantity:       qty,
		ManufacturedAt: manufacturedAt,
		ExpiresAt:      expiresAt,
		Status:         StatusAvailable,
	}
}

// Validate implements entity.Validatable.
func (b *Batch) Validate(ctx context.Context) error {
	if b.Code == "" {
		return apperror.NewRequired("code")
	}
	if err := b.ValidateMaterial(ctx); err != nil {
		return err
	}
	if b.Quantity.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity").
			WithDetail("current", b.Quantity)
	}
	if b.Allocated.IsNegative() || b.Allocated > b.Quantity {
		return apperror.NewValidation("allocated must be between zero and quantity").
			WithDetail("field", "allocated").
			WithDetail("current", b.Allocated)
	}
	if b.ManufacturedAt.IsZero() {
		return apperror.NewRequired("manufacturedAt")
	}
	if !b.ExpiresAt.After(b.ManufacturedAt) {
		return apperror.NewValidation("expiry date must be after manufacturing date").
			WithDetail("field", "expiresAt")
	}
	if !b.Status.IsValid() {
		return apperror.NewValidation("unknown status").WithDetail("field", "status")
	}
	return nil
}

// Available returns Quantity - Allocated.
func (b *Batch) Available() types.Quantity {
	return b.Quantity - b.Allocated
}

// IsExpired reports whether the expiry date has passed at now.
func (b *Batch) IsExpired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// DaysUntilExpiry counts whole calendar days from now to the expiry date.
// Negative once expired.
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	return int(truncateDay(b.ExpiresAt).Sub(truncateDay(now)).Hours() / 24)
}

// ExpiresWithin reports whether the batch expires within days of now.
// Already expired batches are included.
func (b *Batch) ExpiresWithin(days int, now time.Time) bool {
	return b.DaysUntilExpiry(now) <= days
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Allocate commits qty to an in-flight transfer.
func (b *Batch) Allocate(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if b.Status == StatusExpired || b.Status == StatusQuarantined {
		return apperror.NewInvalidState(EntityName, b.ID, "allocate", b.Status)
	}
	if qty > b.Available() {
		return apperror.NewInsufficientQuantity(EntityName, b.ID, "allocate", qty, b.Available())
	}
	b.Allocated += qty
	if b.Available().IsZero() {
		b.Status = StatusAllocated
	}
	return nil
}

// ReleaseAllocation returns qty of the allocation to available.
func (b *Batch) ReleaseAllocation(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if qty > b.Allocated {
		return apperror.NewInsufficientQuantity(EntityName, b.ID, "release allocation", qty, b.Allocated)
	}
	b.Allocated -= qty
	if b.Status == StatusAllocated && b.Available().IsPositive() {
		b.Status = StatusAvailable
	}
	return nil
}

// ConsumeAllocation removes allocated quantity from the batch when a
// transfer completes. Calling it twice for the same transfer fails.
func (b *Batch) ConsumeAllocation(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if qty > b.Allocated {
		return apperror.NewInsufficientQuantity(EntityName, b.ID, "consume allocation", qty, b.Allocated)
	}
	prior := b.Status
	b.Quantity -= qty
	b.Allocated -= qty
	switch {
	case b.Quantity.IsZero():
		b.Status = StatusDepleted
	case b.Allocated.IsZero() && prior == StatusAllocated:
		b.Status = StatusAvailable
	}
	return nil
}

// UpdateQuantity corrects the on-hand quantity. It cannot drop below the
// allocated quantity.
func (b *Batch) UpdateQuantity(newQty types.Quantity) error {
	if newQty.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity").
			WithDetail("requested", newQty)
	}
	if newQty < b.Allocated {
		return apperror.NewValidation("quantity cannot be below allocated quantity").
			WithDetail("field", "quantity").
			WithDetail("requested", newQty).
			WithDetail("allocated", b.Allocated)
	}
	b.Quantity = newQty
	if b.Status == StatusQuarantined || b.Status == StatusExpired {
		return nil
	}
	b.Status = b.quantityStatus()
	return nil
}

// Quarantine blocks allocation until released.
func (b *Batch) Quarantine(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.NewRequired("reason")
	}
	if b.Status == StatusQuarantined || b.Status == StatusDepleted {
		return apperror.NewInvalidState(EntityName, b.ID, "quarantine", b.Status)
	}
	b.Status = StatusQuarantined
	b.QuarantineReason = &reason
	return nil
}

// ReleaseFromQuarantine recomputes the status with priority
// Expired > Depleted > Allocated > Available.
func (b *Batch) ReleaseFromQuarantine(now time.Time) error {
	if b.Status != StatusQuarantined {
		return apperror.NewInvalidState(EntityName, b.ID, "release from quarantine", b.Status)
	}
	b.QuarantineReason = nil
	if b.IsExpired(now) {
		b.Status = StatusExpired
		return nil
	}
	b.Status = b.quantityStatus()
	return nil
}

// MarkExpired forces the Expired status.
func (b *Batch) MarkExpired() error {
	if b.Status == StatusDepleted {
		return apperror.NewInvalidState(EntityName, b.ID, "mark expired", b.Status)
	}
	b.Status = StatusExpired
	return nil
}

func (b *Batch) quantityStatus() Status {
	switch {
	case b.Quantity.IsZero():
		return StatusDepleted
	case b.Available().IsZero():
		return StatusAllocated
	default:
		return StatusAvailable
	}
}
