package warehouse

import (
	"context"
	"fmt"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain"
	"explostock/pkg/logger"
)

// Service provides business operations for warehouse batches.
type Service struct {
	repo  Repository
	deps  domain.ServiceDeps
	hooks *domain.HookRegistry[*Batch]
}

// NewService creates a new warehouse batch service.
func NewService(repo Repository, deps domain.ServiceDeps) *Service {
	return &Service{
		repo:  repo,
		deps:  deps.WithDefaults(),
		hooks: domain.NewHookRegistry[*Batch](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Batch] {
	return s.hooks
}

// ReceiveCommand registers a new batch on warehouse receipt.
type ReceiveCommand struct {
	Code            string
	MaterialTypeID  id.ID
	Unit            string
	Quantity        types.Quantity
	ManufacturedAt  time.Time
	ExpiresAt       time.Time
	Supplier        *string
	StorageLocation *string
	Notes           *string
	UserID          string
}

// QuantityCommand targets one batch with a quantity.
type QuantityCommand struct {
	BatchID  id.ID
	Quantity types.Quantity
	UserID   string
}

// QuarantineCommand quarantines a batch.
type QuarantineCommand struct {
	BatchID id.ID
	Reason  string
	UserID  string
}

// Receive creates a batch.
func (s *Service) Receive(ctx context.Context, cmd ReceiveCommand) (*Batch, error) {
	now := s.deps.Now()
	b := NewBatch(cmd.Code, cmd.MaterialTypeID, cmd.Unit, cmd.Quantity, cmd.ManufacturedAt, cmd.ExpiresAt, now, cmd.UserID)
	b.Supplier = cmd.Supplier
	b.StorageLocation = cmd.StorageLocation
	b.Notes = cmd.Notes

	if !b.Quantity.IsPositive() {
		return nil, apperror.NewNonPositiveQuantity("quantity", b.Quantity)
	}
	if err := s.hooks.RunBeforeCreate(ctx, b); err != nil {
		return nil, err
	}
	if err := b.Validate(ctx); err != nil {
		return nil, err
	}
	if b.IsExpired(now) {
		return nil, apperror.NewValidation("batch is already expired").
			WithDetail("field", "expiresAt")
	}

	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByCode(ctx, b.Code); err == nil {
			return apperror.NewDuplicate(EntityName, "code", b.Code)
		} else if !apperror.IsNotFound(err) {
			return err
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create batch: %w", err)
		}
		if err := s.hooks.RunAfterCreate(ctx, b); err != nil {
			return err
		}
		return s.deps.Emit(ctx, events.AggregateWarehouseBatch, b.ID, "WarehouseBatchReceived", b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse batch received",
		"id", b.ID,
		"code", b.Code,
		"quantity", b.Quantity.String())
	return b, nil
}

// GetByID returns a batch.
func (s *Service) GetByID(ctx context.Context, batchID id.ID) (*Batch, error) {
	b, err := s.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, batchID)
	}
	return b, nil
}

// GetByCode returns a batch by its code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Batch, error) {
	b, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, code)
	}
	return b, nil
}

// List returns batches matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Batch], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListExpiringWithin returns usable batches whose expiry falls within days
// calendar days from today, including those already past it.
func (s *Service) ListExpiringWithin(ctx context.Context, days int) ([]*Batch, error) {
	if days < 0 {
		return nil, apperror.NewValidation("days cannot be negative").WithDetail("field", "days")
	}
	before := truncateDay(s.deps.Now()).AddDate(0, 0, days+1)
	return s.listAll(ctx, ListFilter{
		Statuses:      []Status{StatusAvailable, StatusAllocated, StatusQuarantined},
		ExpiresBefore: &before,
	})
}

func (s *Service) listAll(ctx context.Context, filter ListFilter) ([]*Batch, error) {
	return domain.ListAll(ctx, domain.ListFilter{OrderBy: "expires_at"},
		func(ctx context.Context, page domain.ListFilter) (domain.ListResult[*Batch], error) {
			filter.ListFilter = page
			return s.repo.List(ctx, filter)
		})
}

// Allocate commits quantity to an in-flight transfer.
func (s *Service) Allocate(ctx context.Context, cmd QuantityCommand) (*Batch, error) {
	return s.mutate(ctx, cmd.BatchID, cmd.UserID, "WarehouseBatchAllocated", func(b *Batch) error {
		return b.Allocate(cmd.Quantity)
	})
}

// ReleaseAllocation returns allocated quantity to available.
func (s *Service) ReleaseAllocation(ctx context.Context, cmd QuantityCommand) (*Batch, error) {
	return s.mutate(ctx, cmd.BatchID, cmd.UserID, "WarehouseBatchAllocationReleased", func(b *Batch) error {
		return b.ReleaseAllocation(cmd.Quantity)
	})
}

// ConsumeAllocation removes allocated quantity from the batch.
func (s *Service) ConsumeAllocation(ctx context.Context, cmd QuantityCommand) (*Batch, error) {
	return s.mutate(ctx, cmd.BatchID, cmd.UserID, "WarehouseBatchAllocationConsumed", func(b *Batch) error {
		return b.ConsumeAllocation(cmd.Quantity)
	})
}

// UpdateQuantity corrects the on-hand quantity of a batch.
func (s *Service) UpdateQuantity(ctx context.Context, cmd QuantityCommand) (*Batch, error) {
	return s.mutate(ctx, cmd.BatchID, cmd.UserID, "WarehouseBatchQuantityCorrected", func(b *Batch) error {
		return b.UpdateQuantity(cmd.Quantity)
	})
}

// Quarantine blocks a batch from allocation.
func (s *Service) Quarantine(ctx context.Context, cmd QuarantineCommand) (*Batch, error) {
	return s.mutate(ctx, cmd.BatchID, cmd.UserID, "WarehouseBatchQuarantined", func(b *Batch) error {
		return b.Quarantine(cmd.Reason)
	})
}

// ReleaseFromQuarantine lifts a quarantine.
func (s *Service) ReleaseFromQuarantine(ctx context.Context, batchID id.ID, userID string) (*Batch, error) {
	now := s.deps.Now()
	return s.mutate(ctx, batchID, userID, "WarehouseBatchQuarantineReleased", func(b *Batch) error {
		return b.ReleaseFromQuarantine(now)
	})
}

// MarkExpired forces a batch into the Expired status.
func (s *Service) MarkExpired(ctx context.Context, batchID id.ID, userID string) (*Batch, error) {
	return s.mutate(ctx, batchID, userID, "WarehouseBatchExpired", (*Batch).MarkExpired)
}

// ExpireDue marks every Available or Allocated batch past its expiry date
// as Expired, one transaction per batch. Conflicting batches are skipped
// and picked up by the next sweep.
func (s *Service) ExpireDue(ctx context.Context, userID string) (int, error) {
	now := s.deps.Now()
	// Collected up front: expiring a batch removes it from the filter.
	due, err := s.listAll(ctx, ListFilter{
		Statuses:      []Status{StatusAvailable, StatusAllocated},
		ExpiresBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("list due batches: %w", err)
	}

	expired := 0
	for _, b := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		if _, err := s.MarkExpired(ctx, b.ID, userID); err != nil {
			if apperror.IsConcurrentModification(err) || apperror.IsInvalidState(err) {
				logger.Warn(ctx, "expiry sweep skipped batch", "id", b.ID, "error", err)
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// Save persists a mutated batch, stamping it and publishing eventType.
// Must run inside a transaction; used by the transfer workflow.
func (s *Service) Save(ctx context.Context, b *Batch, userID, eventType string) error {
	b.Touch(s.deps.Now(), userID)
	if err := s.repo.Update(ctx, b); err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if err := s.hooks.RunAfterUpdate(ctx, b); err != nil {
		return err
	}
	return s.deps.Emit(ctx, events.AggregateWarehouseBatch, b.ID, eventType, b)
}

func (s *Service) mutate(ctx context.Context, batchID id.ID, userID, eventType string, fn func(*Batch) error) (*Batch, error) {
	var out *Batch
	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		b, err := s.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		if err := s.Save(ctx, b, userID, eventType); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "warehouse batch updated",
		"id", out.ID,
		"event", eventType,
		"status", out.Status,
		"quantity", out.Quantity.String(),
		"allocated", out.Allocated.String())
	return out, nil
}
