package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/core/numerator"
	"explostock/internal/core/types"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/warehouse"
	"explostock/pkg/logger"
)

// Service runs the transfer workflow. Every transition that has an
// inventory effect performs it in the same transaction as the status change.
type Service struct {
	repo      Repository
	batches   *warehouse.Service
	stocks    *storestock.Service
	ledger    *ledger.Service
	numerator numerator.Generator
	deps      domain.ServiceDeps
	hooks     *domain.HookRegistry[*Request]
}

// NewService creates a new transfer workflow service.
func NewService(
	repo Repository,
	batches *warehouse.Service,
	stocks *storestock.Service,
	ledgerSvc *ledger.Service,
	numerator numerator.Generator,
	deps domain.ServiceDeps,
) *Service {
	return &Service{
		repo:      repo,
		batches:   batches,
		stocks:    stocks,
		ledger:    ledgerSvc,
		numerator: numerator,
		deps:      deps.WithDefaults(),
		hooks:     domain.NewHookRegistry[*Request](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Request] {
	return s.hooks
}

// CreateCommand opens a transfer request against a warehouse batch.
type CreateCommand struct {
	BatchID            id.ID
	DestinationStoreID id.ID
	Quantity           types.Quantity
	RequiredBy         *time.Time
	Notes              *string
	UserID             string
}

// ApproveCommand approves a pending request. A nil ApprovedQuantity approves
// the requested quantity.
type ApproveCommand struct {
	RequestID        id.ID
	ApprovedQuantity *types.Quantity
	Notes            *string
	UserID           string
}

// ReasonCommand carries a mandatory reason (reject, cancel).
type ReasonCommand struct {
	RequestID id.ID
	Reason    string
	UserID    string
}

// DispatchCommand dispatches an approved request.
type DispatchCommand struct {
	RequestID     id.ID
	TruckNumber   string
	DriverName    string
	DriverContact *string
	Notes         *string
	UserID        string
}

// ProcessCommand identifies a request and the acting user.
type ProcessCommand struct {
	RequestID id.ID
	UserID    string
}

// Create opens a Pending request and assigns its number.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewNonPositiveQuantity("requestedQuantity", cmd.Quantity)
	}
	if id.IsNil(cmd.DestinationStoreID) {
		return nil, apperror.NewRequired("destinationStoreId")
	}
	if strings.TrimSpace(cmd.UserID) == "" {
		return nil, apperror.NewRequired("requestedBy")
	}

	now := s.deps.Now()
	var out *Request
	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		b, err := s.batches.GetByID(ctx, cmd.BatchID)
		if err != nil {
			return err
		}
		if b.Status == warehouse.StatusExpired || b.Status == warehouse.StatusDepleted {
			return apperror.NewInvalidState(warehouse.EntityName, b.ID, "accept transfer requests", b.Status)
		}

		r := NewRequest(b.ID, cmd.DestinationStoreID, b.MaterialTypeID, b.Unit, cmd.Quantity, cmd.UserID, now)
		r.RequiredBy = cmd.RequiredBy
		r.Notes = cmd.Notes

		if err := s.hooks.RunBeforeCreate(ctx, r); err != nil {
			return err
		}
		if err := r.Validate(ctx); err != nil {
			return err
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix),
			&numerator.Options{Strategy: NumeratorStrategy}, now)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		r.Number = number

		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create transfer request: %w", err)
		}
		if err := s.hooks.RunAfterCreate(ctx, r); err != nil {
			return err
		}
		if err := s.deps.Emit(ctx, events.AggregateTransferRequest, r.ID, "TransferRequestCreated", r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer request created",
		"id", out.ID,
		"number", out.Number,
		"batch_id", out.BatchID,
		"quantity", out.RequestedQuantity.String())
	return out, nil
}

// Approve approves a pending request and allocates the final quantity on
// the source batch.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestApproved",
		func(ctx context.Context, r *Request, now time.Time) error {
			if err := r.Approve(cmd.UserID, cmd.ApprovedQuantity, cmd.Notes, now); err != nil {
				return err
			}
			b, err := s.batches.GetByID(ctx, r.BatchID)
			if err != nil {
				return err
			}
			if err := b.Allocate(r.FinalQuantity()); err != nil {
				return err
			}
			return s.batches.Save(ctx, b, cmd.UserID, "WarehouseBatchAllocated")
		})
}

// Reject rejects a pending request. Nothing was allocated yet.
func (s *Service) Reject(ctx context.Context, cmd ReasonCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestRejected",
		func(_ context.Context, r *Request, now time.Time) error {
			return r.Reject(cmd.UserID, cmd.Reason, now)
		})
}

// Dispatch records logistics metadata and moves the request to InProgress.
func (s *Service) Dispatch(ctx context.Context, cmd DispatchCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestDispatched",
		func(_ context.Context, r *Request, now time.Time) error {
			return r.Dispatch(DispatchInfo{
				DispatcherID:  cmd.UserID,
				TruckNumber:   cmd.TruckNumber,
				DriverName:    cmd.DriverName,
				DriverContact: cmd.DriverContact,
				Notes:         cmd.Notes,
			}, now)
		})
}

// MarkInProgress moves the request to InProgress without dispatch tracking.
func (s *Service) MarkInProgress(ctx context.Context, cmd ProcessCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestInProgress",
		func(_ context.Context, r *Request, _ time.Time) error {
			return r.MarkInProgress(cmd.UserID)
		})
}

// ConfirmDelivery records the delivery of a dispatched request.
func (s *Service) ConfirmDelivery(ctx context.Context, cmd ProcessCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestDeliveryConfirmed",
		func(_ context.Context, r *Request, now time.Time) error {
			return r.ConfirmDelivery(now)
		})
}

// Complete finishes the transfer: the batch allocation is consumed, the
// destination store stock is credited (its row is created on first
// receipt) and one Transfer ledger entry is written, all atomically.
func (s *Service) Complete(ctx context.Context, cmd ProcessCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestCompleted",
		func(ctx context.Context, r *Request, now time.Time) error {
			qty := r.FinalQuantity()
			entry := ledger.NewEntry(r.DestinationStoreID, r.MaterialTypeID, r.Unit,
				ledger.TypeTransfer, ledger.DirectionIn, qty, now)

			if err := r.Complete(cmd.UserID, entry.ID, now); err != nil {
				return err
			}

			b, err := s.batches.GetByID(ctx, r.BatchID)
			if err != nil {
				return err
			}
			if err := b.ConsumeAllocation(qty); err != nil {
				return err
			}
			if err := s.batches.Save(ctx, b, cmd.UserID, "WarehouseBatchAllocationConsumed"); err != nil {
				return err
			}

			st, err := s.stocks.GetOrCreate(ctx, r.DestinationStoreID, r.MaterialTypeID, r.Unit, cmd.UserID)
			if err != nil {
				return err
			}
			code, expires := b.Code, b.ExpiresAt
			info := storestock.RestockInfo{BatchNumber: &code, Supplier: b.Supplier, ExpiresAt: &expires}
			if err := st.AddStock(qty, info, now); err != nil {
				return err
			}
			if err := s.stocks.Save(ctx, st, cmd.UserID, "StoreStockReceived"); err != nil {
				return err
			}

			number, processor := r.Number, *r.ProcessedBy
			entry.StoreStockID = &st.ID
			entry.TransferRequestID = &r.ID
			entry.ReferenceNumber = &number
			entry.ProcessedBy = &processor
			return s.ledger.Record(ctx, entry)
		})
}

// Cancel cancels a non-terminal request and releases its batch allocation
// when it held one.
func (s *Service) Cancel(ctx context.Context, cmd ReasonCommand) (*Request, error) {
	return s.transition(ctx, cmd.RequestID, cmd.UserID, "TransferRequestCancelled",
		func(ctx context.Context, r *Request, now time.Time) error {
			held := r.HoldsAllocation()
			if err := r.Cancel(cmd.UserID, cmd.Reason, now); err != nil {
				return err
			}
			if !held {
				return nil
			}
			b, err := s.batches.GetByID(ctx, r.BatchID)
			if err != nil {
				return err
			}
			if err := b.ReleaseAllocation(r.FinalQuantity()); err != nil {
				return err
			}
			return s.batches.Save(ctx, b, cmd.UserID, "WarehouseBatchAllocationReleased")
		})
}

// GetByID returns a request.
func (s *Service) GetByID(ctx context.Context, requestID id.ID) (*Request, error) {
	r, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, requestID)
	}
	return r, nil
}

// GetByNumber returns a request by its number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Request, error) {
	r, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, number)
	}
	return r, nil
}

// List returns requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Request], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListOverdue returns requests whose required-by date has passed.
func (s *Service) ListOverdue(ctx context.Context) ([]*Request, error) {
	now := s.deps.Now()
	return s.listAll(ctx, ListFilter{OverdueAt: &now})
}

// ListUrgent returns pending requests needed within UrgentWindow.
func (s *Service) ListUrgent(ctx context.Context) ([]*Request, error) {
	now := s.deps.Now()
	return s.listAll(ctx, ListFilter{Statuses: []Status{StatusPending}, UrgentAt: &now})
}

func (s *Service) listAll(ctx context.Context, filter ListFilter) ([]*Request, error) {
	return domain.ListAll(ctx, domain.ListFilter{OrderBy: "required_by"},
		func(ctx context.Context, page domain.ListFilter) (domain.ListResult[*Request], error) {
			filter.ListFilter = page
			return s.repo.List(ctx, filter)
		})
}

type transitionFunc func(ctx context.Context, r *Request, now time.Time) error

func (s *Service) transition(ctx context.Context, requestID id.ID, userID, eventType string, fn transitionFunc) (*Request, error) {
	var out *Request
	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		r, err := s.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		now := s.deps.Now()
		if err := fn(ctx, r, now); err != nil {
			return err
		}

		r.Touch(now, userID)
		if err := s.repo.Update(ctx, r); err != nil {
			return fmt.Errorf("update transfer request: %w", err)
		}
		if err := s.hooks.RunAfterUpdate(ctx, r); err != nil {
			return err
		}
		if err := s.deps.Emit(ctx, events.AggregateTransferRequest, r.ID, eventType, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transfer request updated",
		"id", out.ID,
		"number", out.Number,
		"event", eventType,
		"status", out.Status)
	return out, nil
}
