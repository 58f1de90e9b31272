// Package transfer provides the TransferRequest document and the workflow
// that moves material from a warehouse batch to a store.
package transfer

import (
	"context"
	"slices"
	"strings"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
)

// EntityName is used in error details and events.
const EntityName = "TransferRequest"

// UrgentWindow is how close RequiredBy must be for a pending request to be urgent.
const UrgentWindow = 7 * 24 * time.Hour

// Status of a transfer request.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusApproved   Status = "Approved"
	StatusRejected   Status = "Rejected"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Request is a warehouse to store transfer request.
type Request struct {
	entity.BaseDocument

	// Number is unique and generated on creation (TR-YYYYMMDD-NNNNN).
	Number string `db:"number" json:"number"`

	BatchID            id.ID `db:"batch_id" json:"batchId"`
	DestinationStoreID id.ID `db:"destination_store_id" json:"destinationStoreId"`
	entity.MaterialAware

	RequestedQuantity types.Quantity  `db:"requested_quantity" json:"requestedQuantity"`
	ApprovedQuantity  *types.Quantity `db:"approved_quantity" json:"approvedQuantity,omitempty"`

	Status Status `db:"status" json:"status"`

	// Who
	RequestedBy  string  `db:"requested_by" json:"requestedBy"`
	ApprovedBy   *string `db:"approved_by" json:"approvedBy,omitempty"`
	RejectedBy   *string `db:"rejected_by" json:"rejectedBy,omitempty"`
	DispatchedBy *string `db:"dispatched_by" json:"dispatchedBy,omitempty"`
	ProcessedBy  *string `db:"processed_by" json:"processedBy,omitempty"`
	CancelledBy  *string `db:"cancelled_by" json:"cancelledBy,omitempty"`

	// When
	RequestedAt         time.Time  `db:"requested_at" json:"requestedAt"`
	RequiredBy          *time.Time `db:"required_by" json:"requiredBy,omitempty"`
	ApprovedAt          *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedAt          *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	DispatchedAt        *time.Time `db:"dispatched_at" json:"dispatchedAt,omitempty"`
	DeliveryConfirmedAt *time.Time `db:"delivery_confirmed_at" json:"deliveryConfirmedAt,omitempty"`
	CompletedAt         *time.Time `db:"completed_at" json:"completedAt,omitempty"`
	CancelledAt         *time.Time `db:"cancelled_at" json:"cancelledAt,omitempty"`

	// Dispatch metadata, set only by Dispatch.
	TruckNumber   *string `db:"truck_number" json:"truckNumber,omitempty"`
	DriverName    *string `db:"driver_name" json:"driverName,omitempty"`
	DriverContact *string `db:"driver_contact" json:"driverContact,omitempty"`
	DispatchNotes *string `db:"dispatch_notes" json:"dispatchNotes,omitempty"`

	Notes              *string `db:"notes" json:"notes,omitempty"`
	ApprovalNotes      *string `db:"approval_notes" json:"approvalNotes,omitempty"`
	RejectionReason    *string `db:"rejection_reason" json:"rejectionReason,omitempty"`
	CancellationReason *string `db:"cancellation_reason" json:"cancellationReason,omitempty"`

	// LedgerEntryID is the ledger entry written on completion.
	LedgerEntryID *id.ID `db:"ledger_entry_id" json:"ledgerEntryId,omitempty"`
}

// DispatchInfo carries the logistics metadata of a dispatch.
type DispatchInfo struct {
	DispatcherID  string
	TruckNumber   string
	DriverName    string
	DriverContact *string
	Notes         *string
}

// NewRequest creates a Pending request. Number is assigned by the service.
func NewRequest(batchID, destinationStoreID, materialTypeID id.ID, unit string, qty types.Quantity, requestedBy string, now time.Time) *Request {
	return &Request{
		BaseDocument:       entity.NewBaseDocument(now, requestedBy),
		BatchID:            batchID,
		DestinationStoreID: destinationStoreID,
		MaterialAware: entity.MaterialAware{
			MaterialTypeID: materialTypeID,
			Unit:           unit,
		},
		RequestedQuantity: qty,
		Status:            StatusPending,
		RequestedBy:       requestedBy,
		RequestedAt:       now,
	}
}

// Validate implements entity.Validatable.
func (r *Request) Validate(ctx context.Context) error {
	if id.IsNil(r.BatchID) {
		return apperror.NewRequired("batchId")
	}
	if id.IsNil(r.DestinationStoreID) {
		return apperror.NewRequired("destinationStoreId")
	}
	if err := r.ValidateMaterial(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(r.RequestedBy) == "" {
		return apperror.NewRequired("requestedBy")
	}
	if !r.RequestedQuantity.IsPositive() {
		return apperror.NewNonPositiveQuantity("requestedQuantity", r.RequestedQuantity)
	}
	if r.ApprovedQuantity != nil && (!r.ApprovedQuantity.IsPositive() || *r.ApprovedQuantity > r.RequestedQuantity) {
		return apperror.NewValidation("approved quantity must be positive and not exceed requested quantity").
			WithDetail("field", "approvedQuantity")
	}
	if !r.Status.IsValid() {
		return apperror.NewValidation("unknown status").WithDetail("field", "status")
	}
	return nil
}

// FinalQuantity is the quantity allocated, consumed and delivered:
// the approved quantity when set, otherwise the requested one.
func (r *Request) FinalQuantity() types.Quantity {
	if r.ApprovedQuantity != nil {
		return *r.ApprovedQuantity
	}
	return r.RequestedQuantity
}

// IsTerminal reports whether the request can no longer change.
func (r *Request) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// HoldsAllocation reports whether a batch allocation exists for this request.
func (r *Request) HoldsAllocation() bool {
	return r.Status == StatusApproved || r.Status == StatusInProgress
}

// IsOverdue reports a passed RequiredBy date on a request that was neither
// completed nor cancelled.
func (r *Request) IsOverdue(now time.Time) bool {
	if r.RequiredBy == nil || r.Status == StatusCompleted || r.Status == StatusCancelled {
		return false
	}
	return now.After(*r.RequiredBy)
}

// IsUrgent reports a pending request needed within UrgentWindow.
func (r *Request) IsUrgent(now time.Time) bool {
	if r.RequiredBy == nil || r.Status != StatusPending {
		return false
	}
	return !r.RequiredBy.After(now.Add(UrgentWindow))
}

// Approve moves Pending to Approved. A nil qty approves the requested quantity.
func (r *Request) Approve(approverID string, qty *types.Quantity, notes *string, now time.Time) error {
	if err := r.requireStatus("approve", StatusPending); err != nil {
		return err
	}
	approver, err := requireText("approverId", approverID)
	if err != nil {
		return err
	}
	approved := r.RequestedQuantity
	if qty != nil {
		approved = *qty
	}
	if !approved.IsPositive() {
		return apperror.NewNonPositiveQuantity("approvedQuantity", approved)
	}
	if approved > r.RequestedQuantity {
		return apperror.NewValidation("approved quantity cannot exceed requested quantity").
			WithDetail("field", "approvedQuantity").
			WithDetail("requested", approved).
			WithDetail("current", r.RequestedQuantity)
	}

	r.ApprovedQuantity = &approved
	r.ApprovedBy = &approver
	r.ApprovedAt = &now
	r.ApprovalNotes = notes
	r.Status = StatusApproved
	return nil
}

// Reject moves Pending to Rejected.
func (r *Request) Reject(rejecterID, reason string, now time.Time) error {
	if err := r.requireStatus("reject", StatusPending); err != nil {
		return err
	}
	rejecter, err := requireText("rejecterId", rejecterID)
	if err != nil {
		return err
	}
	reason, err = requireText("reason", reason)
	if err != nil {
		return err
	}

	r.RejectedBy = &rejecter
	r.RejectedAt = &now
	r.RejectionReason = &reason
	r.Status = StatusRejected
	return nil
}

// Dispatch moves Approved to InProgress and records logistics metadata.
func (r *Request) Dispatch(info DispatchInfo, now time.Time) error {
	if err := r.requireStatus("dispatch", StatusApproved); err != nil {
		return err
	}
	dispatcher, err := requireText("dispatcherId", info.DispatcherID)
	if err != nil {
		return err
	}
	truck, err := requireText("truckNumber", info.TruckNumber)
	if err != nil {
		return err
	}
	driver, err := requireText("driverName", info.DriverName)
	if err != nil {
		return err
	}

	r.DispatchedBy = &dispatcher
	r.DispatchedAt = &now
	r.TruckNumber = &truck
	r.DriverName = &driver
	r.DriverContact = info.DriverContact
	r.DispatchNotes = info.Notes
	r.Status = StatusInProgress
	return nil
}

// MarkInProgress enters InProgress without dispatch metadata.
func (r *Request) MarkInProgress(processorID string) error {
	if err := r.requireStatus("mark in progress", StatusApproved, StatusInProgress); err != nil {
		return err
	}
	processor, err := requireText("processorId", processorID)
	if err != nil {
		return err
	}
	r.ProcessedBy = &processor
	r.Status = StatusInProgress
	return nil
}

// ConfirmDelivery records the delivery of a dispatched request.
// The status does not change.
func (r *Request) ConfirmDelivery(now time.Time) error {
	if err := r.requireStatus("confirm delivery", StatusInProgress); err != nil {
		return err
	}
	if r.DispatchedAt == nil {
		return apperror.NewInvalidState(EntityName, r.ID, "confirm delivery", "not dispatched")
	}
	r.DeliveryConfirmedAt = &now
	return nil
}

// Complete moves Approved or InProgress to Completed, referencing the
// ledger entry that recorded the stock movement.
func (r *Request) Complete(processorID string, ledgerEntryID id.ID, now time.Time) error {
	if err := r.requireStatus("complete", StatusApproved, StatusInProgress); err != nil {
		return err
	}
	processor, err := requireText("processorId", processorID)
	if err != nil {
		return err
	}
	if id.IsNil(ledgerEntryID) {
		return apperror.NewRequired("ledgerEntryId")
	}

	r.ProcessedBy = &processor
	r.CompletedAt = &now
	r.LedgerEntryID = &ledgerEntryID
	r.Status = StatusCompleted
	return nil
}

// Cancel moves any non-terminal request to Cancelled.
func (r *Request) Cancel(cancelledBy, reason string, now time.Time) error {
	if r.IsTerminal() {
		return apperror.NewInvalidState(EntityName, r.ID, "cancel", r.Status)
	}
	user, err := requireText("cancelledBy", cancelledBy)
	if err != nil {
		return err
	}
	reason, err = requireText("reason", reason)
	if err != nil {
		return err
	}

	r.CancelledBy = &user
	r.CancelledAt = &now
	r.CancellationReason = &reason
	r.Status = StatusCancelled
	return nil
}

func (r *Request) requireStatus(operation string, allowed ...Status) error {
	if slices.Contains(allowed, r.Status) {
		return nil
	}
	return apperror.NewInvalidState(EntityName, r.ID, operation, r.Status)
}

func requireText(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperror.NewRequired(field)
	}
	return v, nil
}
