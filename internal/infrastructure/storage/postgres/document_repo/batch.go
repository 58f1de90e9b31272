package document_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/storage/postgres"
)

const batchesTable = "wh_batches"

// BatchRepo implements warehouse.Repository.
type BatchRepo struct {
	*BaseRepo[*warehouse.Batch]
}

var _ warehouse.Repository = (*BatchRepo)(nil)

// NewBatchRepo creates a new warehouse batch repository.
func NewBatchRepo(txManager *postgres.TxManager) *BatchRepo {
	return &BatchRepo{
		BaseRepo: NewBaseRepo(
			txManager,
			batchesTable,
			warehouse.EntityName,
			postgres.ExtractDBColumns[warehouse.Batch](),
			[]string{"created_at", "expires_at", "code"},
			"-created_at",
			func() *warehouse.Batch { return &warehouse.Batch{} },
		),
	}
}

// GetByID returns the batch with batchID.
func (r *BatchRepo) GetByID(ctx context.Context, batchID id.ID) (*warehouse.Batch, error) {
	return r.BaseRepo.GetByID(ctx, batchID)
}

// GetByCode returns the batch with the given code.
func (r *BatchRepo) GetByCode(ctx context.Context, code string) (*warehouse.Batch, error) {
	return r.GetOne(ctx, squirrel.Eq{"code": code}, code)
}

// List returns batches matching filter.
func (r *BatchRepo) List(ctx context.Context, filter warehouse.ListFilter) (domain.ListResult[*warehouse.Batch], error) {
	return r.BaseRepo.List(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if filter.MaterialTypeID != nil {
			q = q.Where(squirrel.Eq{"material_type_id": *filter.MaterialTypeID})
		}
		if len(filter.Statuses) > 0 {
			q = q.Where(squirrel.Eq{"status": filter.Statuses})
		}
		if filter.ExpiresBefore != nil {
			q = q.Where(squirrel.Lt{"expires_at": *filter.ExpiresBefore})
		}
		return dateRange(q, "created_at", filter.Received)
	})
}
