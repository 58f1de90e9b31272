// Package document_repo provides PostgreSQL implementations of the
// versioned inventory repositories: warehouse batches, transfer requests and
// store stocks.
package document_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/infrastructure/storage/postgres"
)

// immutableCols are never rewritten by Update. version is bumped by SQL.
var immutableCols = []string{"id", "version", "created_at", "created_by"}

// BaseRepo provides common CRUD operations for versioned entities.
// Update uses optimistic locking: the row is rewritten only when its version
// still matches the entity's, and the version is bumped in the same
// statement.
type BaseRepo[T entity.Versioned] struct {
	txManager    *postgres.TxManager
	tableName    string
	entityName   string
	selectCols   []string
	orderCols    map[string]struct{}
	defaultOrder string
	newFn        func() T
}

// NewBaseRepo creates a new base repository. orderCols lists the columns
// callers may sort by; unknown sort keys fall back to defaultOrder.
func NewBaseRepo[T entity.Versioned](
	txManager *postgres.TxManager,
	tableName, entityName string,
	selectCols, orderCols []string,
	defaultOrder string,
	newFn func() T,
) *BaseRepo[T] {
	allowed := make(map[string]struct{}, len(orderCols))
	for _, c := range orderCols {
		allowed[c] = struct{}{}
	}
	return &BaseRepo[T]{
		txManager:    txManager,
		tableName:    tableName,
		entityName:   entityName,
		selectCols:   selectCols,
		orderCols:    allowed,
		defaultOrder: defaultOrder,
		newFn:        newFn,
	}
}

// Builder returns a new squirrel builder.
func (r *BaseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new row.
func (r *BaseRepo[T]) Create(ctx context.Context, e T) error {
	data := postgres.StructToMap(e)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in %s", r.entityName)
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.MapError("insert "+r.tableName, r.entityName, err)
	}
	return nil
}

// Update rewrites every mutable column and bumps the version.
func (r *BaseRepo[T]) Update(ctx context.Context, e T) error {
	data := postgres.Without(postgres.StructToMap(e), immutableCols...)
	version := e.GetVersion()

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": e.GetID(), "version": version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.MapError("update "+r.tableName, r.entityName, err)
	}

	if result.RowsAffected() == 0 {
		exists, err := r.exists(ctx, e.GetID())
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound(r.entityName, e.GetID())
		}
		return apperror.NewConcurrentModification(r.entityName, e.GetID()).
			WithDetail("version", version)
	}

	e.SetVersion(version + 1)
	return nil
}

func (r *BaseRepo[T]) exists(ctx context.Context, entityID id.ID) (bool, error) {
	var exists bool
	err := r.querier(ctx).QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+r.tableName+" WHERE id = $1)", entityID).Scan(&exists)
	if err != nil {
		return false, postgres.MapError("check "+r.tableName, r.entityName, err)
	}
	return exists, nil
}

// baseSelect creates a SELECT builder.
func (r *BaseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

// GetByID retrieves a row by ID.
func (r *BaseRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.GetOne(ctx, squirrel.Eq{"id": entityID}, entityID)
}

// GetOne retrieves the single row matching where. key is reported in the
// NotFound error.
func (r *BaseRepo[T]) GetOne(ctx context.Context, where squirrel.Sqlizer, key any) (T, error) {
	return r.getOne(ctx, r.baseSelect().Where(where), key)
}

func (r *BaseRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, key any) (T, error) {
	e := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(r.entityName, key)
		}
		return e, postgres.MapError("get "+r.tableName, r.entityName, err)
	}
	return e, nil
}

// List runs a filtered, counted and paginated query. apply adds the
// entity-specific predicates.
func (r *BaseRepo[T]) List(ctx context.Context, filter domain.ListFilter, apply func(squirrel.SelectBuilder) squirrel.SelectBuilder) (domain.ListResult[T], error) {
	filter = filter.Normalize()
	result := domain.ListResult[T]{
		Items:  make([]T, 0),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if len(filter.IDs) > 0 {
		q = q.Where(squirrel.Eq{"id": filter.IDs})
	}
	if apply != nil {
		q = apply(q)
	}

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, postgres.MapError("count "+r.tableName, r.entityName, err)
	}

	q = q.OrderBy(r.orderBy(filter.OrderBy), "id ASC").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, postgres.MapError("list "+r.tableName, r.entityName, err)
	}
	return result, nil
}

// orderBy turns "field" / "-field" into an ORDER BY term. Unknown fields
// fall back to the default order, matching the in-memory store.
func (r *BaseRepo[T]) orderBy(orderBy string) string {
	term := func(s string) (string, bool) {
		s = strings.TrimSpace(s)
		direction := "ASC"
		if strings.HasPrefix(s, "-") {
			direction = "DESC"
			s = s[1:]
		} else {
			s = strings.TrimPrefix(s, "+")
		}
		if _, ok := r.orderCols[s]; !ok {
			return "", false
		}
		// NULLs sort after every value in both directions.
		return s + " " + direction + " NULLS LAST", true
	}

	if t, ok := term(orderBy); ok {
		return t
	}
	t, _ := term(r.defaultOrder)
	return t
}

// dateRange adds [From, To) predicates on col.
func dateRange(q squirrel.SelectBuilder, col string, dr domain.DateRange) squirrel.SelectBuilder {
	if dr.From != nil {
		q = q.Where(squirrel.GtOrEq{col: *dr.From})
	}
	if dr.To != nil {
		q = q.Where(squirrel.Lt{col: *dr.To})
	}
	return q
}
