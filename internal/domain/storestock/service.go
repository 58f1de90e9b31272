package storestock

import (
	"context"
	"fmt"

	"explostock/internal/core/apperror"
	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain"
	"explostock/pkg/logger"
)

// Service provides reservation, policy and lifecycle commands for store stock.
// Quantity-changing movements (stock in/out, transfers) go through the
// transactions package so that each one is ledgered.
type Service struct {
	repo  Repository
	deps  domain.ServiceDeps
	hooks *domain.HookRegistry[*Stock]
}

// NewService creates a new store stock service.
func NewService(repo Repository, deps domain.ServiceDeps) *Service {
	return &Service{
		repo:  repo,
		deps:  deps.WithDefaults(),
		hooks: domain.NewHookRegistry[*Stock](),
	}
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Stock] {
	return s.hooks
}

// CreateCommand registers a (store, material) pair.
type CreateCommand struct {
	StoreID        id.ID
	MaterialTypeID id.ID
	Unit           string
	MinimumLevel   *types.Quantity
	MaximumLevel   *types.Quantity
	UserID         string
}

// QuantityCommand targets one stock row with a positive quantity.
type QuantityCommand struct {
	StockID  id.ID
	Quantity types.Quantity
	UserID   string
}

// LevelsCommand replaces the stocking policy of a row.
type LevelsCommand struct {
	StockID      id.ID
	MinimumLevel *types.Quantity
	MaximumLevel *types.Quantity
	UserID       string
}

// Create registers an empty stock row for a store and material type.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Stock, error) {
	st := NewStock(cmd.StoreID, cmd.MaterialTypeID, cmd.Unit, s.deps.Now(), cmd.UserID)
	if err := st.SetLevels(cmd.MinimumLevel, cmd.MaximumLevel); err != nil {
		return nil, err
	}
	if err := st.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
		if err == nil {
			return apperror.NewDuplicate(EntityName, "storeId+materialTypeId",
				fmt.Sprintf("%s/%s", existing.StoreID, existing.MaterialTypeID))
		}
		if !apperror.IsNotFound(err) {
			return err
		}
		return s.insert(ctx, st)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "store stock created",
		"id", st.ID,
		"store_id", st.StoreID,
		"material_type_id", st.MaterialTypeID)
	return st, nil
}

// GetOrCreate returns the row for (store, material), creating an empty one
// on first receipt. Must run inside a transaction.
func (s *Service) GetOrCreate(ctx context.Context, storeID, materialTypeID id.ID, unit, userID string) (*Stock, error) {
	st, err := s.repo.GetByStoreAndMaterial(ctx, storeID, materialTypeID)
	if err == nil {
		return st, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	st = NewStock(storeID, materialTypeID, unit, s.deps.Now(), userID)
	if err := st.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.insert(ctx, st); err != nil {
		// A concurrent first receipt created the pair after our read.
		if apperror.IsDuplicate(err) {
			return nil, apperror.NewConcurrentModification(EntityName,
				fmt.Sprintf("%s/%s", storeID, materialTypeID)).WithCause(err)
		}
		return nil, err
	}
	return st, nil
}

func (s *Service) insert(ctx context.Context, st *Stock) error {
	if err := s.repo.Create(ctx, st); err != nil {
		return fmt.Errorf("create store stock: %w", err)
	}
	if err := s.hooks.RunAfterCreate(ctx, st); err != nil {
		return err
	}
	return s.deps.Emit(ctx, events.AggregateStoreStock, st.ID, "StoreStockCreated", st)
}

// Save persists a mutated row, stamping it and publishing eventType.
// Must run inside a transaction; used by the movement services.
func (s *Service) Save(ctx context.Context, st *Stock, userID, eventType string) error {
	st.Touch(s.deps.Now(), userID)
	if err := s.repo.Update(ctx, st); err != nil {
		return fmt.Errorf("update store stock: %w", err)
	}
	if err := s.hooks.RunAfterUpdate(ctx, st); err != nil {
		return err
	}
	return s.deps.Emit(ctx, events.AggregateStoreStock, st.ID, eventType, st)
}

// GetByID returns a stock row.
func (s *Service) GetByID(ctx context.Context, stockID id.ID) (*Stock, error) {
	st, err := s.repo.GetByID(ctx, stockID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, stockID)
	}
	return st, nil
}

// GetByStoreAndMaterial returns the row for a (store, material) pair.
func (s *Service) GetByStoreAndMaterial(ctx context.Context, storeID, materialTypeID id.ID) (*Stock, error) {
	st, err := s.repo.GetByStoreAndMaterial(ctx, storeID, materialTypeID)
	if err != nil {
		return nil, domain.NormalizeGetErr(err, EntityName, fmt.Sprintf("%s/%s", storeID, materialTypeID))
	}
	return st, nil
}

// List returns stock rows matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Stock], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListLowStock returns active rows at or below their minimum level,
// optionally limited to one store.
func (s *Service) ListLowStock(ctx context.Context, storeID *id.ID) ([]*Stock, error) {
	filter := ListFilter{StoreID: storeID, LowStockOnly: true}
	return domain.ListAll(ctx, domain.ListFilter{},
		func(ctx context.Context, page domain.ListFilter) (domain.ListResult[*Stock], error) {
			filter.ListFilter = page
			return s.repo.List(ctx, filter)
		})
}

// Reserve earmarks available stock.
func (s *Service) Reserve(ctx context.Context, cmd QuantityCommand) (*Stock, error) {
	return s.mutate(ctx, cmd.StockID, cmd.UserID, "StoreStockReserved", func(st *Stock) error {
		return st.ReserveStock(cmd.Quantity)
	})
}

// ReleaseReserved returns reserved stock to available.
func (s *Service) ReleaseReserved(ctx context.Context, cmd QuantityCommand) (*Stock, error) {
	return s.mutate(ctx, cmd.StockID, cmd.UserID, "StoreStockReservationReleased", func(st *Stock) error {
		return st.ReleaseReservedStock(cmd.Quantity)
	})
}

// SetLevels replaces minimum/maximum levels.
func (s *Service) SetLevels(ctx context.Context, cmd LevelsCommand) (*Stock, error) {
	return s.mutate(ctx, cmd.StockID, cmd.UserID, "StoreStockLevelsChanged", func(st *Stock) error {
		return st.SetLevels(cmd.MinimumLevel, cmd.MaximumLevel)
	})
}

// Deactivate soft-retires an empty row.
func (s *Service) Deactivate(ctx context.Context, stockID id.ID, userID string) (*Stock, error) {
	return s.mutate(ctx, stockID, userID, "StoreStockDeactivated", (*Stock).Deactivate)
}

// Activate restores a deactivated row.
func (s *Service) Activate(ctx context.Context, stockID id.ID, userID string) (*Stock, error) {
	return s.mutate(ctx, stockID, userID, "StoreStockActivated", (*Stock).Activate)
}

func (s *Service) mutate(ctx context.Context, stockID id.ID, userID, eventType string, fn func(*Stock) error) (*Stock, error) {
	var out *Stock
	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		st, err := s.repo.GetByID(ctx, stockID)
		if err != nil {
			return domain.NormalizeGetErr(err, EntityName, stockID)
		}
		if err := fn(st); err != nil {
			return err
		}
		if err := s.Save(ctx, st, userID, eventType); err != nil {
			return err
		}
		out = st
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "store stock updated",
		"id", out.ID,
		"event", eventType,
		"quantity", out.Quantity.String(),
		"reserved", out.Reserved.String())
	return out, nil
}
