package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/domain/storestock"
	"explostock/internal/infrastructure/storage/postgres"
)

const (
	storeStocksTable = "st_store_stocks"

	// storeMaterialConstraint is the unique (store_id, material_type_id) index.
	storeMaterialConstraint = "st_store_stocks_store_material_key"
)

// StoreStockRepo implements storestock.Repository.
type StoreStockRepo struct {
	*BaseRepo[*storestock.Stock]
}

var _ storestock.Repository = (*StoreStockRepo)(nil)

// NewStoreStockRepo creates a new store stock repository.
func NewStoreStockRepo(txManager *postgres.TxManager) *StoreStockRepo {
	return &StoreStockRepo{
		BaseRepo: NewBaseRepo(
			txManager,
			storeStocksTable,
			storestock.EntityName,
			postgres.ExtractDBColumns[storestock.Stock](),
			[]string{"created_at", "quantity"},
			"-created_at",
			func() *storestock.Stock { return &storestock.Stock{} },
		),
	}
}

// Create inserts a stock row. A second row for the same pair is a duplicate.
func (r *StoreStockRepo) Create(ctx context.Context, st *storestock.Stock) error {
	err := r.BaseRepo.Create(ctx, st)
	if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodeDuplicate &&
		appErr.Details["field"] == storeMaterialConstraint {
		return apperror.NewDuplicate(storestock.EntityName, "storeId+materialTypeId",
			st.StoreID.String()+"/"+st.MaterialTypeID.String()).WithCause(appErr)
	}
	return err
}

// GetByID returns the stock row with stockID.
func (r *StoreStockRepo) GetByID(ctx context.Context, stockID id.ID) (*storestock.Stock, error) {
	return r.BaseRepo.GetByID(ctx, stockID)
}

// GetByStoreAndMaterial returns the row of the (store, material) pair.
func (r *StoreStockRepo) GetByStoreAndMaterial(ctx context.Context, storeID, materialTypeID id.ID) (*storestock.Stock, error) {
	return r.GetOne(ctx,
		squirrel.Eq{"store_id": storeID, "material_type_id": materialTypeID},
		storeID.String()+"/"+materialTypeID.String())
}

// List returns stock rows matching filter.
func (r *StoreStockRepo) List(ctx context.Context, filter storestock.ListFilter) (domain.ListResult[*storestock.Stock], error) {
	return r.BaseRepo.List(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if !filter.IncludeInactive {
			q = q.Where(squirrel.Eq{"lifecycle": entity.LifecycleActive})
		}
		if filter.StoreID != nil {
			q = q.Where(squirrel.Eq{"store_id": *filter.StoreID})
		}
		if filter.MaterialTypeID != nil {
			q = q.Where(squirrel.Eq{"material_type_id": *filter.MaterialTypeID})
		}
		if filter.LowStockOnly {
			// Mirrors storestock.Stock.IsLowStock.
			q = q.Where("minimum_level IS NOT NULL AND quantity <= minimum_level")
		}
		return q
	})
}
