package dto

import (
	"explostock/internal/core/types"
	"explostock/internal/domain/storestock"
)

// CreateStockRequest registers a (store, material) stock row.
type CreateStockRequest struct {
	StoreID        string          `json:"storeId" binding:"required,uuid"`
	MaterialTypeID string          `json:"materialTypeId" binding:"required,uuid"`
	Unit           string          `json:"unit" binding:"required,max=16"`
	MinimumLevel   *types.Quantity `json:"minimumLevel"`
	MaximumLevel   *types.Quantity `json:"maximumLevel"`
}

// ToCommand converts the request for the store stock service.
func (r CreateStockRequest) ToCommand(userID string) (storestock.CreateCommand, error) {
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return storestock.CreateCommand{}, err
	}
	materialID, err := ParseID("materialTypeId", r.MaterialTypeID)
	if err != nil {
		return storestock.CreateCommand{}, err
	}
	return storestock.CreateCommand{
		StoreID:        storeID,
		MaterialTypeID: materialID,
		Unit:           r.Unit,
		MinimumLevel:   r.MinimumLevel,
		MaximumLevel:   r.MaximumLevel,
		UserID:         userID,
	}, nil
}

// LevelsRequest replaces the minimum and maximum levels. Null clears a level.
type LevelsRequest struct {
	MinimumLevel *types.Quantity `json:"minimumLevel"`
	MaximumLevel *types.Quantity `json:"maximumLevel"`
}

// StockListRequest holds list query parameters.
type StockListRequest struct {
	PaginationRequest
	StoreID         string `form:"storeId" binding:"omitempty,uuid"`
	MaterialTypeID  string `form:"materialTypeId" binding:"omitempty,uuid"`
	LowStockOnly    bool   `form:"lowStock"`
	IncludeInactive bool   `form:"includeInactive"`
}

// ToFilter converts query parameters to the store stock filter.
func (r StockListRequest) ToFilter() (storestock.ListFilter, error) {
	f := storestock.ListFilter{ListFilter: r.ToListFilter(), LowStockOnly: r.LowStockOnly}
	f.IncludeInactive = r.IncludeInactive
	var err error
	if f.StoreID, err = ParseOptionalID("storeId", r.StoreID); err != nil {
		return f, err
	}
	if f.MaterialTypeID, err = ParseOptionalID("materialTypeId", r.MaterialTypeID); err != nil {
		return f, err
	}
	return f, nil
}

// StoreStockQuery addresses a stock row by store and material.
type StoreStockQuery struct {
	StoreID        string `form:"storeId" binding:"required,uuid"`
	MaterialTypeID string `form:"materialTypeId" binding:"required,uuid"`
}
