package dto

import (
	"time"

	"explostock/internal/core/types"
	"explostock/internal/domain/transactions"
)

// MovementRequest holds the fields shared by every stock movement.
type MovementRequest struct {
	StoreID         string `json:"storeId" binding:"required,uuid"`
	MaterialTypeID  string `json:"materialTypeId" binding:"required,uuid"`
	ReferenceNumber string `json:"referenceNumber" binding:"max=100"`
	Notes           string `json:"notes" binding:"max=2000"`
}

func (r MovementRequest) toMovement(userID string) (transactions.Movement, error) {
	storeID, err := ParseID("storeId", r.StoreID)
	if err != nil {
		return transactions.Movement{}, err
	}
	materialID, err := ParseID("materialTypeId", r.MaterialTypeID)
	if err != nil {
		return transactions.Movement{}, err
	}
	return transactions.Movement{
		StoreID:         storeID,
		MaterialTypeID:  materialID,
		ReferenceNumber: optional(r.ReferenceNumber),
		Notes:           optional(r.Notes),
		ProcessedBy:     optional(userID),
	}, nil
}

// StockInRequest receives material into a store.
type StockInRequest struct {
	MovementRequest
	Quantity    types.Quantity `json:"quantity"`
	Unit        string         `json:"unit" binding:"max=16"`
	BatchNumber string         `json:"batchNumber" binding:"max=64"`
	Supplier    string         `json:"supplier" binding:"max=200"`
	ExpiresAt   *time.Time     `json:"expiresAt"`
}

// ToCommand converts the request for the transactions service.
func (r StockInRequest) ToCommand(userID string) (transactions.StockInCommand, error) {
	m, err := r.toMovement(userID)
	if err != nil {
		return transactions.StockInCommand{}, err
	}
	return transactions.StockInCommand{
		Movement:    m,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		BatchNumber: optional(r.BatchNumber),
		Supplier:    optional(r.Supplier),
		ExpiresAt:   r.ExpiresAt,
	}, nil
}

// StockOutRequest issues material from a store.
type StockOutRequest struct {
	MovementRequest
	Quantity types.Quantity `json:"quantity"`
}

// ToCommand converts the request for the transactions service.
func (r StockOutRequest) ToCommand(userID string) (transactions.StockOutCommand, error) {
	m, err := r.toMovement(userID)
	if err != nil {
		return transactions.StockOutCommand{}, err
	}
	return transactions.StockOutCommand{Movement: m, Quantity: r.Quantity}, nil
}

// StoreTransferRequest moves material between two stores.
type StoreTransferRequest struct {
	MovementRequest
	ToStoreID string         `json:"toStoreId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity"`
}

// ToCommand converts the request for the transactions service.
func (r StoreTransferRequest) ToCommand(userID string) (transactions.TransferCommand, error) {
	m, err := r.toMovement(userID)
	if err != nil {
		return transactions.TransferCommand{}, err
	}
	to, err := ParseID("toStoreId", r.ToStoreID)
	if err != nil {
		return transactions.TransferCommand{}, err
	}
	return transactions.TransferCommand{Movement: m, ToStoreID: to, Quantity: r.Quantity}, nil
}

// AdjustmentRequest applies a signed delta.
type AdjustmentRequest struct {
	MovementRequest
	Delta types.Quantity `json:"delta"`
}

// ToCommand converts the request for the transactions service.
func (r AdjustmentRequest) ToCommand(userID string) (transactions.AdjustmentCommand, error) {
	m, err := r.toMovement(userID)
	if err != nil {
		return transactions.AdjustmentCommand{}, err
	}
	return transactions.AdjustmentCommand{Movement: m, Delta: r.Delta}, nil
}

// CorrectionRequest sets the counted quantity.
type CorrectionRequest struct {
	MovementRequest
	NewQuantity types.Quantity `json:"newQuantity"`
}

// ToCommand converts the request for the transactions service.
func (r CorrectionRequest) ToCommand(userID string) (transactions.CorrectionCommand, error) {
	m, err := r.toMovement(userID)
	if err != nil {
		return transactions.CorrectionCommand{}, err
	}
	return transactions.CorrectionCommand{Movement: m, NewQuantity: r.NewQuantity}, nil
}
