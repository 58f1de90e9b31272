// Package storestock provides per (store, material type) stock counters with
// reservation support.
package storestock

import (
	"context"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

// EntityName is used in error details and events.
const EntityName = "StoreStock"

// Level is the derived stocking level relative to the configured thresholds.
type Level string

const (
	LevelOutOfStock  Level = "OutOfStock"
	LevelLow         Level = "Low"
	LevelNormal      Level = "Normal"
	LevelOverstocked Level = "Overstocked"
)

// Stock is the on-hand and reserved quantity of one material at one store.
// Invariants: 0 <= Reserved <= Quantity.
type Stock struct {
	entity.BaseDocument

	StoreID id.ID `db:"store_id" json:"storeId"`
	entity.MaterialAware

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Reserved types.Quantity `db:"reserved" json:"reserved"`

	MinimumLevel *types.Quantity `db:"minimum_level" json:"minimumLevel,omitempty"`
	MaximumLevel *types.Quantity `db:"maximum_level" json:"maximumLevel,omitempty"`

	// Metadata of the most recent receipt.
	BatchNumber     *string    `db:"batch_number" json:"batchNumber,omitempty"`
	Supplier        *string    `db:"supplier" json:"supplier,omitempty"`
	ExpiresAt       *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	LastRestockedAt *time.Time `db:"last_restocked_at" json:"lastRestockedAt,omitempty"`

	Lifecycle entity.Lifecycle `db:"lifecycle" json:"lifecycle"`
}

// RestockInfo is optional receipt metadata carried by AddStock.
type RestockInfo struct {
	BatchNumber *string
	Supplier    *string
	ExpiresAt   *time.Time
}

// NewStock creates an empty, active stock row.
func NewStock(storeID, materialTypeID id.ID, unit string, now time.Time, createdBy string) *Stock {
	return &Stock{
		BaseDocument: entity.NewBaseDocument(now, createdBy),
		StoreID:      storeID,
		MaterialAware: entity.MaterialAware{
			MaterialTypeID: materialTypeID,
			Unit:           unit,
		},
		Lifecycle: entity.LifecycleActive,
	}
}

// Validate implements entity.Validatable.
func (s *Stock) Validate(ctx context.Context) error {
	if id.IsNil(s.StoreID) {
		return apperror.NewRequired("storeId")
	}
	if err := s.ValidateMaterial(ctx); err != nil {
		return err
	}
	if s.Quantity.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity").
			WithDetail("current", s.Quantity)
	}
	if s.Reserved.IsNegative() || s.Reserved > s.Quantity {
		return apperror.NewValidation("reserved must be between zero and quantity").
			WithDetail("field", "reserved").
			WithDetail("current", s.Reserved)
	}
	return validateLevels(s.MinimumLevel, s.MaximumLevel)
}

func validateLevels(minimum, maximum *types.Quantity) error {
	if minimum != nil && minimum.IsNegative() {
		return apperror.NewValidation("minimum level cannot be negative").WithDetail("field", "minimumLevel")
	}
	if maximum != nil && maximum.IsNegative() {
		return apperror.NewValidation("maximum level cannot be negative").WithDetail("field", "maximumLevel")
	}
	if minimum != nil && maximum != nil && *minimum > *maximum {
		return apperror.NewValidation("minimum level cannot exceed maximum level").
			WithDetail("field", "minimumLevel").
			WithDetail("minimum", *minimum).
			WithDetail("maximum", *maximum)
	}
	return nil
}

// Available returns Quantity - Reserved.
func (s *Stock) Available() types.Quantity {
	return s.Quantity - s.Reserved
}

// AddStock increases on-hand quantity and records receipt metadata.
func (s *Stock) AddStock(qty types.Quantity, info RestockInfo, now time.Time) error {
	if err := s.checkMutable("add stock"); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	total, err := s.Quantity.Add(qty)
	if err != nil {
		return apperror.NewValidation("quantity exceeds the storable range").
			WithDetail("field", "quantity").
			WithDetail("requested", qty).
			WithDetail("current", s.Quantity).
			WithCause(err)
	}
	s.Quantity = total
	if info.BatchNumber != nil {
		s.BatchNumber = info.BatchNumber
	}
	if info.Supplier != nil {
		s.Supplier = info.Supplier
	}
	if info.ExpiresAt != nil {
		s.ExpiresAt = info.ExpiresAt
	}
	s.LastRestockedAt = &now
	return nil
}

// ConsumeStock decreases on-hand quantity. Reserved stock cannot be consumed.
func (s *Stock) ConsumeStock(qty types.Quantity) error {
	if err := s.checkMutable("consume stock"); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if qty > s.Available() {
		return apperror.NewInsufficientQuantity(EntityName, s.ID, "consume stock", qty, s.Available())
	}
	s.Quantity -= qty
	return nil
}

// ReserveStock earmarks part of the available quantity.
func (s *Stock) ReserveStock(qty types.Quantity) error {
	if err := s.checkMutable("reserve stock"); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if qty > s.Available() {
		return apperror.NewInsufficientQuantity(EntityName, s.ID, "reserve stock", qty, s.Available())
	}
	s.Reserved += qty
	return nil
}

// ReleaseReservedStock returns reserved quantity to available.
func (s *Stock) ReleaseReservedStock(qty types.Quantity) error {
	if err := s.checkMutable("release reserved stock"); err != nil {
		return err
	}
	if !qty.IsPositive() {
		return apperror.NewNonPositiveQuantity("quantity", qty)
	}
	if qty > s.Reserved {
		return apperror.NewInsufficientQuantity(EntityName, s.ID, "release reserved stock", qty, s.Reserved)
	}
	s.Reserved -= qty
	return nil
}

// UpdateQuantity is a direct correction of the on-hand quantity.
// It bypasses reservation accounting but never drops below Reserved.
func (s *Stock) UpdateQuantity(newQty types.Quantity) error {
	if err := s.checkMutable("update quantity"); err != nil {
		return err
	}
	if newQty.IsNegative() {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity").
			WithDetail("requested", newQty)
	}
	if newQty < s.Reserved {
		return apperror.NewValidation("quantity cannot be below reserved quantity").
			WithDetail("field", "quantity").
			WithDetail("requested", newQty).
			WithDetail("reserved", s.Reserved)
	}
	s.Quantity = newQty
	return nil
}

// SetLevels replaces the stocking policy thresholds. Nil clears a level.
func (s *Stock) SetLevels(minimum, maximum *types.Quantity) error {
	if err := validateLevels(minimum, maximum); err != nil {
		return err
	}
	s.MinimumLevel = minimum
	s.MaximumLevel = maximum
	return nil
}

// Deactivate soft-retires an empty row.
func (s *Stock) Deactivate() error {
	if !s.Lifecycle.IsActive() {
		return apperror.NewInvalidState(EntityName, s.ID, "deactivate", s.Lifecycle)
	}
	if !s.Quantity.IsZero() || !s.Reserved.IsZero() {
		return apperror.NewInvalidState(EntityName, s.ID, "deactivate", "non-empty").
			WithDetail("quantity", s.Quantity).
			WithDetail("reserved", s.Reserved)
	}
	s.Lifecycle = entity.LifecycleInactive
	return nil
}

// Activate brings a deactivated row back into use.
func (s *Stock) Activate() error {
	if s.Lifecycle.IsActive() {
		return apperror.NewInvalidState(EntityName, s.ID, "activate", s.Lifecycle)
	}
	s.Lifecycle = entity.LifecycleActive
	return nil
}

// IsLowStock reports quantity at or below the minimum level.
func (s *Stock) IsLowStock() bool {
	return s.MinimumLevel != nil && s.Quantity <= *s.MinimumLevel
}

// Level derives the stocking level.
func (s *Stock) Level() Level {
	switch {
	case s.Quantity.IsZero():
		return LevelOutOfStock
	case s.IsLowStock():
		return LevelLow
	case s.MaximumLevel != nil && s.Quantity > *s.MaximumLevel:
		return LevelOverstocked
	default:
		return LevelNormal
	}
}

func (s *Stock) checkMutable(operation string) error {
	if !s.Lifecycle.IsActive() {
		return apperror.NewInvalidState(EntityName, s.ID, operation, s.Lifecycle)
	}
	return nil
}
