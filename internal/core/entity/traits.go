package entity

import (
	"context"
	"strings"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
)

// MaterialAware is a trait for entities that hold a quantity of one
// material type. Used for composition in batches, store stocks, transfer
// requests and ledger entries.
type MaterialAware struct {
	// MaterialTypeID references the explosive material type (external catalog).
	MaterialTypeID id.ID `db:"material_type_id" json:"materialTypeId"`

	// Unit is the unit of measure quantities are expressed in (e.g. "kg").
	Unit string `db:"unit" json:"unit"`
}

// ValidateMaterial ensures material type and unit are set.
func (m *MaterialAware) ValidateMaterial(ctx context.Context) error {
	if id.IsNil(m.MaterialTypeID) {
		return apperror.NewRequired("materialTypeId")
	}
	if strings.TrimSpace(m.Unit) == "" {
		return apperror.NewRequired("unit")
	}
	return nil
}

// GetMaterialTypeID returns the material type ID (useful for interfaces).
func (m *MaterialAware) GetMaterialTypeID() id.ID {
	return m.MaterialTypeID
}
