package dto

import (
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/types"
	"explostock/internal/domain/warehouse"
)

// ReceiveBatchRequest registers a new warehouse batch.
type ReceiveBatchRequest struct {
	Code            string         `json:"code" binding:"required,batch_code"`
	MaterialTypeID  string         `json:"materialTypeId" binding:"required,uuid"`
	Unit            string         `json:"unit" binding:"required,max=16"`
	Quantity        types.Quantity `json:"quantity"`
	ManufacturedAt  time.Time      `json:"manufacturedAt" binding:"required"`
	ExpiresAt       time.Time      `json:"expiresAt" binding:"required"`
	Supplier        string         `json:"supplier" binding:"max=200"`
	StorageLocation string         `json:"storageLocation" binding:"max=100"`
	Notes           string         `json:"notes" binding:"max=2000"`
}

// ToCommand converts the request for the warehouse service.
func (r ReceiveBatchRequest) ToCommand(userID string) (warehouse.ReceiveCommand, error) {
	materialID, err := ParseID("materialTypeId", r.MaterialTypeID)
	if err != nil {
		return warehouse.ReceiveCommand{}, err
	}
	return warehouse.ReceiveCommand{
		Code:            r.Code,
		MaterialTypeID:  materialID,
		Unit:            r.Unit,
		Quantity:        r.Quantity,
		ManufacturedAt:  r.ManufacturedAt,
		ExpiresAt:       r.ExpiresAt,
		Supplier:        optional(r.Supplier),
		StorageLocation: optional(r.StorageLocation),
		Notes:           optional(r.Notes),
		UserID:          userID,
	}, nil
}

// QuantityRequest carries a single quantity (allocate, release, consume,
// correct, reserve).
type QuantityRequest struct {
	Quantity types.Quantity `json:"quantity"`
}

// QuarantineRequest carries the quarantine reason.
type QuarantineRequest struct {
	Reason string `json:"reason" binding:"required,max=2000"`
}

// BatchListRequest holds list query parameters.
type BatchListRequest struct {
	PaginationRequest
	PeriodRequest
	MaterialTypeID string     `form:"materialTypeId" binding:"omitempty,uuid"`
	Status         []string   `form:"status"`
	ExpiresBefore  *time.Time `form:"expiresBefore" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToFilter converts query parameters to the warehouse filter.
func (r BatchListRequest) ToFilter() (warehouse.ListFilter, error) {
	f := warehouse.ListFilter{
		ListFilter:    r.ToListFilter(),
		ExpiresBefore: r.ExpiresBefore,
	}
	var err error
	if f.MaterialTypeID, err = ParseOptionalID("materialTypeId", r.MaterialTypeID); err != nil {
		return f, err
	}
	for _, s := range r.Status {
		st := warehouse.Status(s)
		if !st.IsValid() {
			return f, apperror.NewValidation("unknown batch status").WithDetail("status", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	if f.Received, err = r.ToDateRange(); err != nil {
		return f, err
	}
	return f, nil
}

// ExpiringRequest holds the look-ahead window in days.
type ExpiringRequest struct {
	Days int `form:"days" binding:"omitempty,min=0,max=3650"`
}
