package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
)

// --- warehouse batches ---

type batchRepo struct{ s *Store }

var _ warehouse.Repository = batchRepo{}

func (r batchRepo) Create(ctx context.Context, b *warehouse.Batch) error {
	defer r.s.lockOutsideTx(ctx)()
	if _, ok := find(r.s, r.s.batches, func(x *warehouse.Batch) bool { return x.Code == b.Code }); ok {
		return apperror.NewDuplicate(warehouse.EntityName, "code", b.Code)
	}
	return insert(r.s, r.s.batches, b, warehouse.EntityName)
}

func (r batchRepo) GetByID(ctx context.Context, batchID id.ID) (*warehouse.Batch, error) {
	defer r.s.lockOutsideTx(ctx)()
	return get(r.s, r.s.batches, batchID, warehouse.EntityName)
}

func (r batchRepo) GetByCode(ctx context.Context, code string) (*warehouse.Batch, error) {
	defer r.s.lockOutsideTx(ctx)()
	b, ok := find(r.s, r.s.batches, func(x *warehouse.Batch) bool { return x.Code == code })
	if !ok {
		return nil, apperror.NewNotFound(warehouse.EntityName, code)
	}
	return b, nil
}

func (r batchRepo) Update(ctx context.Context, b *warehouse.Batch) error {
	defer r.s.lockOutsideTx(ctx)()
	return update(r.s, r.s.batches, b, warehouse.EntityName)
}

var batchOrder = map[string]func(a, b *warehouse.Batch) int{
	"created_at": func(a, b *warehouse.Batch) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"expires_at": func(a, b *warehouse.Batch) int { return a.ExpiresAt.Compare(b.ExpiresAt) },
	"code":       func(a, b *warehouse.Batch) int { return cmp.Compare(a.Code, b.Code) },
}

func (r batchRepo) List(ctx context.Context, f warehouse.ListFilter) (domain.ListResult[*warehouse.Batch], error) {
	defer r.s.lockOutsideTx(ctx)()
	order := ordering(f.OrderBy, batchOrder, "-created_at", func(a, b *warehouse.Batch) int { return compareIDs(a.ID, b.ID) })
	return list(r.s, r.s.batches, f.Matches, order, f.ListFilter), nil
}

// --- transfer requests ---

type requestRepo struct{ s *Store }

var _ transfer.Repository = requestRepo{}

func (r requestRepo) Create(ctx context.Context, req *transfer.Request) error {
	defer r.s.lockOutsideTx(ctx)()
	if _, ok := find(r.s, r.s.requests, func(x *transfer.Request) bool { return x.Number == req.Number }); ok {
		return apperror.NewDuplicate(transfer.EntityName, "number", req.Number)
	}
	return insert(r.s, r.s.requests, req, transfer.EntityName)
}

func (r requestRepo) GetByID(ctx context.Context, requestID id.ID) (*transfer.Request, error) {
	defer r.s.lockOutsideTx(ctx)()
	return get(r.s, r.s.requests, requestID, transfer.EntityName)
}

func (r requestRepo) GetByNumber(ctx context.Context, number string) (*transfer.Request, error) {
	defer r.s.lockOutsideTx(ctx)()
	req, ok := find(r.s, r.s.requests, func(x *transfer.Request) bool { return x.Number == number })
	if !ok {
		return nil, apperror.NewNotFound(transfer.EntityName, number)
	}
	return req, nil
}

func (r requestRepo) Update(ctx context.Context, req *transfer.Request) error {
	defer r.s.lockOutsideTx(ctx)()
	return update(r.s, r.s.requests, req, transfer.EntityName)
}

var requestOrder = map[string]func(a, b *transfer.Request) int{
	"created_at":   func(a, b *transfer.Request) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"requested_at": func(a, b *transfer.Request) int { return a.RequestedAt.Compare(b.RequestedAt) },
	"required_by":  func(a, b *transfer.Request) int { return compareOptionalTime(a.RequiredBy, b.RequiredBy) },
	"number":       func(a, b *transfer.Request) int { return cmp.Compare(a.Number, b.Number) },
}

func (r requestRepo) List(ctx context.Context, f transfer.ListFilter) (domain.ListResult[*transfer.Request], error) {
	defer r.s.lockOutsideTx(ctx)()
	order := ordering(f.OrderBy, requestOrder, "-created_at", func(a, b *transfer.Request) int { return compareIDs(a.ID, b.ID) })
	return list(r.s, r.s.requests, f.Matches, order, f.ListFilter), nil
}

// compareOptionalTime sorts nil after every set value.
func compareOptionalTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

// --- store stocks ---

type stockRepo struct{ s *Store }

var _ storestock.Repository = stockRepo{}

func (r stockRepo) Create(ctx context.Context, st *storestock.Stock) error {
	defer r.s.lockOutsideTx(ctx)()
	if _, ok := find(r.s, r.s.stocks, func(x *storestock.Stock) bool {
		return x.StoreID == st.StoreID && x.MaterialTypeID == st.MaterialTypeID
	}); ok {
		return apperror.NewDuplicate(storestock.EntityName, "storeId+materialTypeId", st.StoreID.String()+"/"+st.MaterialTypeID.String())
	}
	return insert(r.s, r.s.stocks, st, storestock.EntityName)
}

func (r stockRepo) GetByID(ctx context.Context, stockID id.ID) (*storestock.Stock, error) {
	defer r.s.lockOutsideTx(ctx)()
	return get(r.s, r.s.stocks, stockID, storestock.EntityName)
}

func (r stockRepo) GetByStoreAndMaterial(ctx context.Context, storeID, materialTypeID id.ID) (*storestock.Stock, error) {
	defer r.s.lockOutsideTx(ctx)()
	st, ok := find(r.s, r.s.stocks, func(x *storestock.Stock) bool {
		return x.StoreID == storeID && x.MaterialTypeID == materialTypeID
	})
	if !ok {
		return nil, apperror.NewNotFound(storestock.EntityName, storeID.String()+"/"+materialTypeID.String())
	}
	return st, nil
}

func (r stockRepo) Update(ctx context.Context, st *storestock.Stock) error {
	defer r.s.lockOutsideTx(ctx)()
	return update(r.s, r.s.stocks, st, storestock.EntityName)
}

var stockOrder = map[string]func(a, b *storestock.Stock) int{
	"created_at": func(a, b *storestock.Stock) int { return a.CreatedAt.Compare(b.CreatedAt) },
	"quantity":   func(a, b *storestock.Stock) int { return cmp.Compare(a.Quantity, b.Quantity) },
}

func (r stockRepo) List(ctx context.Context, f storestock.ListFilter) (domain.ListResult[*storestock.Stock], error) {
	defer r.s.lockOutsideTx(ctx)()
	order := ordering(f.OrderBy, stockOrder, "-created_at", func(a, b *storestock.Stock) int { return compareIDs(a.ID, b.ID) })
	return list(r.s, r.s.stocks, f.Matches, order, f.ListFilter), nil
}

// --- ledger ---

type ledgerRepo struct{ s *Store }

var _ ledger.Repository = ledgerRepo{}

func (r ledgerRepo) Create(ctx context.Context, e *ledger.Entry) error {
	defer r.s.lockOutsideTx(ctx)()
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if slices.ContainsFunc(r.s.entries, func(x ledger.Entry) bool { return x.ID == e.ID }) {
		return apperror.NewDuplicate(ledger.EntityName, "id", e.ID.String())
	}
	r.s.entries = append(r.s.entries, *e)
	return nil
}

func (r ledgerRepo) GetByID(ctx context.Context, entryID id.ID) (*ledger.Entry, error) {
	defer r.s.lockOutsideTx(ctx)()
	r.s.dataMu.RLock()
	defer r.s.dataMu.RUnlock()
	for _, e := range r.s.entries {
		if e.ID == entryID {
			return &e, nil
		}
	}
	return nil, apperror.NewNotFound(ledger.EntityName, entryID)
}

func (r ledgerRepo) List(ctx context.Context, f ledger.ListFilter) (domain.ListResult[*ledger.Entry], error) {
	defer r.s.lockOutsideTx(ctx)()
	r.s.dataMu.RLock()
	items := make([]*ledger.Entry, 0)
	for _, e := range r.s.entries {
		if f.Matches(&e) {
			items = append(items, &e)
		}
	}
	r.s.dataMu.RUnlock()

	// Newest first; append order breaks ties so entries written in one
	// transaction keep their sequence.
	slices.Reverse(items)
	slices.SortStableFunc(items, func(a, b *ledger.Entry) int {
		return b.TransactionAt.Compare(a.TransactionAt)
	})
	return domain.Page(items, f.ListFilter), nil
}
