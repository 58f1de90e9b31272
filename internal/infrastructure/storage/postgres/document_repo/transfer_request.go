package document_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/domain/transfer"
	"explostock/internal/infrastructure/storage/postgres"
)

const transferRequestsTable = "doc_transfer_requests"

// TransferRequestRepo implements transfer.Repository.
type TransferRequestRepo struct {
	*BaseRepo[*transfer.Request]
}

var _ transfer.Repository = (*TransferRequestRepo)(nil)

// NewTransferRequestRepo creates a new transfer request repository.
func NewTransferRequestRepo(txManager *postgres.TxManager) *TransferRequestRepo {
	return &TransferRequestRepo{
		BaseRepo: NewBaseRepo(
			txManager,
			transferRequestsTable,
			transfer.EntityName,
			postgres.ExtractDBColumns[transfer.Request](),
			[]string{"created_at", "requested_at", "required_by", "number"},
			"-created_at",
			func() *transfer.Request { return &transfer.Request{} },
		),
	}
}

// GetByID returns the request with requestID.
func (r *TransferRequestRepo) GetByID(ctx context.Context, requestID id.ID) (*transfer.Request, error) {
	return r.BaseRepo.GetByID(ctx, requestID)
}

// GetByNumber returns the request with the given number.
func (r *TransferRequestRepo) GetByNumber(ctx context.Context, number string) (*transfer.Request, error) {
	return r.GetOne(ctx, squirrel.Eq{"number": number}, number)
}

// List returns requests matching filter.
func (r *TransferRequestRepo) List(ctx context.Context, filter transfer.ListFilter) (domain.ListResult[*transfer.Request], error) {
	return r.BaseRepo.List(ctx, filter.ListFilter, func(q squirrel.SelectBuilder) squirrel.SelectBuilder {
		if len(filter.Statuses) > 0 {
			q = q.Where(squirrel.Eq{"status": filter.Statuses})
		}
		if filter.DestinationStoreID != nil {
			q = q.Where(squirrel.Eq{"destination_store_id": *filter.DestinationStoreID})
		}
		if filter.BatchID != nil {
			q = q.Where(squirrel.Eq{"batch_id": *filter.BatchID})
		}
		if filter.MaterialTypeID != nil {
			q = q.Where(squirrel.Eq{"material_type_id": *filter.MaterialTypeID})
		}
		if filter.OverdueAt != nil {
			q = whereOverdue(q, *filter.OverdueAt)
		}
		if filter.UrgentAt != nil {
			q = whereUrgent(q, *filter.UrgentAt)
		}
		return dateRange(q, "requested_at", filter.Requested)
	})
}

// whereOverdue mirrors transfer.Request.IsOverdue.
func whereOverdue(q squirrel.SelectBuilder, at time.Time) squirrel.SelectBuilder {
	return q.Where(squirrel.Lt{"required_by": at}).
		Where(squirrel.NotEq{"status": []transfer.Status{transfer.StatusCompleted, transfer.StatusCancelled}})
}

// whereUrgent mirrors transfer.Request.IsUrgent.
func whereUrgent(q squirrel.SelectBuilder, at time.Time) squirrel.SelectBuilder {
	return q.Where(squirrel.Eq{"status": transfer.StatusPending}).
		Where(squirrel.NotEq{"required_by": nil}).
		Where(squirrel.LtOrEq{"required_by": at.Add(transfer.UrgentWindow)})
}
