// Package register_repo provides the PostgreSQL implementation of the
// append-only stock ledger.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/infrastructure/storage/postgres"
)

// ledgerTable also carries a seq identity column, not mapped to the entity,
// that orders entries written within the same instant.
const ledgerTable = "reg_stock_ledger"

// LedgerRepo implements ledger.Repository. Entries are insert-only.
type LedgerRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
	columns   []string
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo(txManager *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		columns:   postgres.ExtractDBColumns[ledger.Entry](),
	}
}

// Create appends one entry.
func (r *LedgerRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	data := postgres.StructToMap(entry)

	sql, args, err := r.builder.Insert(ledgerTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert ledger entry", ledger.EntityName, err)
	}
	return nil
}

// GetByID returns one entry.
func (r *LedgerRepo) GetByID(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	sql, args, err := r.builder.Select(r.columns...).
		From(ledgerTable).
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entry ledger.Entry
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &entry, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(ledger.EntityName, entryID)
		}
		return nil, postgres.MapError("get ledger entry", ledger.EntityName, err)
	}
	return &entry, nil
}

// List returns entries newest first.
func (r *LedgerRepo) List(ctx context.Context, filter ledger.ListFilter) (domain.ListResult[*ledger.Entry], error) {
	lf := filter.ListFilter.Normalize()
	result := domain.ListResult[*ledger.Entry]{
		Items:  make([]*ledger.Entry, 0),
		Limit:  lf.Limit,
		Offset: lf.Offset,
	}

	q := r.builder.Select(r.columns...).From(ledgerTable)
	if len(lf.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": lf.IDs})
	}
	if filter.StoreID != nil {
		// Store-to-store transfers are one entry visible from both sides.
		q = q.Where(squirrel.Or{
			squirrel.Eq{"store_id": *filter.StoreID},
			squirrel.Eq{"related_store_id": *filter.StoreID},
		})
	}
	if filter.MaterialTypeID != nil {
		q = q.Where(squirrel.Eq{"material_type_id": *filter.MaterialTypeID})
	}
	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"transaction_type": *filter.Type})
	}
	if filter.TransferRequestID != nil {
		q = q.Where(squirrel.Eq{"transfer_request_id": *filter.TransferRequestID})
	}
	if filter.Period.From != nil {
		q = q.Where(squirrel.GtOrEq{"transaction_at": *filter.Period.From})
	}
	if filter.Period.To != nil {
		q = q.Where(squirrel.Lt{"transaction_at": *filter.Period.To})
	}

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError("count ledger entries", ledger.EntityName, err)
	}

	sql, args, err := q.OrderBy("transaction_at DESC", "seq DESC").
		Limit(uint64(lf.Limit)).
		Offset(uint64(lf.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError("list ledger entries", ledger.EntityName, err)
	}
	return result, nil
}
