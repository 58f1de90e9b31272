package ledger

import (
	"context"
	"fmt"

	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/pkg/logger"
)

// Service records and queries ledger entries.
// Record does not open a transaction: callers write the entry together with
// the stock change it describes.
type Service struct {
	repo Repository
	deps domain.ServiceDeps
}

// NewService creates a new ledger service.
func NewService(repo Repository, deps domain.ServiceDeps) *Service {
	return &Service{
		repo: repo,
		deps: deps.WithDefaults(),
	}
}

// Record validates and appends an entry. Must run inside the caller's transaction.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}

	if err := s.deps.Emit(ctx, events.AggregateLedgerEntry, e.ID, "StockLedgerEntryRecorded", e); err != nil {
		return fmt.Errorf("publish ledger event: %w", err)
	}

	logger.Debug(ctx, "ledger entry recorded",
		"id", e.ID,
		"store_id", e.StoreID,
		"type", e.Type,
		"direction", e.Direction,
		"quantity", e.Quantity.String(),
	)
	return nil
}

// GetByID returns a single entry.
func (s *Service) GetByID(ctx context.Context, entryID id.ID) (*Entry, error) {
	e, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, entryID)
	}
	return e, nil
}

// List returns entries matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Entry], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListByStore returns the movement history of one store.
func (s *Service) ListByStore(ctx context.Context, storeID id.ID, filter ListFilter) (domain.ListResult[*Entry], error) {
	filter.StoreID = &storeID
	return s.List(ctx, filter)
}

// ListByTransferRequest returns entries written by a transfer request.
func (s *Service) ListByTransferRequest(ctx context.Context, requestID id.ID) ([]*Entry, error) {
	filter := ListFilter{TransferRequestID: &requestID}
	return domain.ListAll(ctx, domain.ListFilter{},
		func(ctx context.Context, page domain.ListFilter) (domain.ListResult[*Entry], error) {
			filter.ListFilter = page
			return s.repo.List(ctx, filter)
		})
}
