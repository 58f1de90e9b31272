package dto

import (
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/types"
	"explostock/internal/domain/transfer"
)

// CreateTransferRequest asks for material from a batch to a store.
type CreateTransferRequest struct {
	BatchID            string         `json:"batchId" binding:"required,uuid"`
	DestinationStoreID string         `json:"destinationStoreId" binding:"required,uuid"`
	Quantity           types.Quantity `json:"quantity"`
	RequiredBy         *time.Time     `json:"requiredBy"`
	Notes              string         `json:"notes" binding:"max=2000"`
}

// ToCommand converts the request for the transfer service.
func (r CreateTransferRequest) ToCommand(userID string) (transfer.CreateCommand, error) {
	batchID, err := ParseID("batchId", r.BatchID)
	if err != nil {
		return transfer.CreateCommand{}, err
	}
	storeID, err := ParseID("destinationStoreId", r.DestinationStoreID)
	if err != nil {
		return transfer.CreateCommand{}, err
	}
	return transfer.CreateCommand{
		BatchID:            batchID,
		DestinationStoreID: storeID,
		Quantity:           r.Quantity,
		RequiredBy:         r.RequiredBy,
		Notes:              optional(r.Notes),
		UserID:             userID,
	}, nil
}

// ApproveTransferRequest approves a pending request. A missing quantity
// approves the requested quantity.
type ApproveTransferRequest struct {
	ApprovedQuantity *types.Quantity `json:"approvedQuantity"`
	Notes            string          `json:"notes" binding:"max=2000"`
}

// ReasonRequest carries a rejection or cancellation reason.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// DispatchTransferRequest records truck and driver details.
type DispatchTransferRequest struct {
	TruckNumber   string `json:"truckNumber" binding:"required,truck_number"`
	DriverName    string `json:"driverName" binding:"required,max=200"`
	DriverContact string `json:"driverContact" binding:"max=100"`
	Notes         string `json:"notes" binding:"max=2000"`
}

// TransferListRequest holds list query parameters.
type TransferListRequest struct {
	PaginationRequest
	PeriodRequest
	Status             []string `form:"status"`
	DestinationStoreID string   `form:"destinationStoreId" binding:"omitempty,uuid"`
	BatchID            string   `form:"batchId" binding:"omitempty,uuid"`
	MaterialTypeID     string   `form:"materialTypeId" binding:"omitempty,uuid"`
}

// ToFilter converts query parameters to the transfer filter.
func (r TransferListRequest) ToFilter() (transfer.ListFilter, error) {
	f := transfer.ListFilter{ListFilter: r.ToListFilter()}
	var err error
	if f.DestinationStoreID, err = ParseOptionalID("destinationStoreId", r.DestinationStoreID); err != nil {
		return f, err
	}
	if f.BatchID, err = ParseOptionalID("batchId", r.BatchID); err != nil {
		return f, err
	}
	if f.MaterialTypeID, err = ParseOptionalID("materialTypeId", r.MaterialTypeID); err != nil {
		return f, err
	}
	for _, s := range r.Status {
		st := transfer.Status(s)
		if !st.IsValid() {
			return f, apperror.NewValidation("unknown transfer status").WithDetail("status", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	if f.Requested, err = r.ToDateRange(); err != nil {
		return f, err
	}
	return f, nil
}
