package dto

import (
	"explostock/internal/core/apperror"
	"explostock/internal/domain/ledger"
)

// LedgerListRequest holds ledger query parameters.
type LedgerListRequest struct {
	PaginationRequest
	PeriodRequest
	StoreID           string `form:"storeId" binding:"omitempty,uuid"`
	MaterialTypeID    string `form:"materialTypeId" binding:"omitempty,uuid"`
	Type              string `form:"type"`
	TransferRequestID string `form:"transferRequestId" binding:"omitempty,uuid"`
}

// ToFilter converts query parameters to the ledger filter.
func (r LedgerListRequest) ToFilter() (ledger.ListFilter, error) {
	f := ledger.ListFilter{ListFilter: r.ToListFilter()}
	var err error
	if f.StoreID, err = ParseOptionalID("storeId", r.StoreID); err != nil {
		return f, err
	}
	if f.MaterialTypeID, err = ParseOptionalID("materialTypeId", r.MaterialTypeID); err != nil {
		return f, err
	}
	if f.TransferRequestID, err = ParseOptionalID("transferRequestId", r.TransferRequestID); err != nil {
		return f, err
	}
	if r.Type != "" {
		t := ledger.TransactionType(r.Type)
		if !t.IsValid() {
			return f, apperror.NewValidation("unknown transaction type").WithDetail("type", r.Type)
		}
		f.Type = &t
	}
	if f.Period, err = r.ToDateRange(); err != nil {
		return f, err
	}
	return f, nil
}
