// Package memory provides an in-process implementation of every repository,
// tx.Manager and events.Publisher. Transactions are serialized and rolled back
// by restoring a snapshot, which gives the same all-or-nothing behaviour as
// the postgres backend for tests and local development. Repository calls
// outside a transaction wait for the running one, so reads never see
// uncommitted rows.
package memory

import (
	"cmp"
	"context"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"explostock/internal/core/apperror"
	"explostock/internal/core/entity"
	"explostock/internal/core/events"
	"explostock/internal/core/id"
	"explostock/internal/core/tx"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/internal/domain/transfer"
	"explostock/internal/domain/warehouse"
)

// Store holds all rows. Committed rows are stored by value so that callers
// never share memory with the store.
type Store struct {
	// txMu serializes transactions; dataMu guards the maps themselves.
	txMu   sync.Mutex
	dataMu sync.RWMutex

	batches  map[id.ID]warehouse.Batch
	requests map[id.ID]transfer.Request
	stocks   map[id.ID]storestock.Stock
	entries  []ledger.Entry
	outbox   []events.Event
}

// New creates an empty store.
func New() *Store {
	return &Store{
		batches:  make(map[id.ID]warehouse.Batch),
		requests: make(map[id.ID]transfer.Request),
		stocks:   make(map[id.ID]storestock.Stock),
	}
}

var (
	_ tx.Manager       = (*Store)(nil)
	_ events.Publisher = (*Store)(nil)
)

type txKey struct{}

// errNoTransaction is returned when Publish runs outside RunInTransaction.
var errNoTransaction = errors.New("memory: publish outside transaction")

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// lockOutsideTx serializes a repository call made outside a transaction
// with RunInTransaction, so it never observes rows that are later rolled
// back. Calls inside a transaction already hold txMu.
func (s *Store) lockOutsideTx(ctx context.Context) func() {
	if inTx(ctx) {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

type snapshot struct {
	batches  map[id.ID]warehouse.Batch
	requests map[id.ID]transfer.Request
	stocks   map[id.ID]storestock.Stock
	entries  []ledger.Entry
	outbox   []events.Event
}

func (s *Store) snapshot() snapshot {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return snapshot{
		batches:  maps.Clone(s.batches),
		requests: maps.Clone(s.requests),
		stocks:   maps.Clone(s.stocks),
		entries:  slices.Clone(s.entries),
		outbox:   slices.Clone(s.outbox),
	}
}

func (s *Store) restore(snap snapshot) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	// Map identities stay stable: repositories hold them without dataMu.
	clear(s.batches)
	maps.Copy(s.batches, snap.batches)
	clear(s.requests)
	maps.Copy(s.requests, snap.requests)
	clear(s.stocks)
	maps.Copy(s.stocks, snap.stocks)
	s.entries = snap.entries
	s.outbox = snap.outbox
}

// Publish implements events.Publisher. Events are kept in commit order.
func (s *Store) Publish(ctx context.Context, event events.Event) error {
	if !inTx(ctx) {
		return apperror.NewInternal(errNoTransaction)
	}
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.outbox = append(s.outbox, event)
	return nil
}

// Events returns a copy of every committed event.
func (s *Store) Events() []events.Event {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return slices.Clone(s.outbox)
}

// Batches returns the warehouse batch repository.
func (s *Store) Batches() warehouse.Repository { return batchRepo{s: s} }

// Requests returns the transfer request repository.
func (s *Store) Requests() transfer.Repository { return requestRepo{s: s} }

// Stocks returns the store stock repository.
func (s *Store) Stocks() storestock.Repository { return stockRepo{s: s} }

// Ledger returns the ledger repository.
func (s *Store) Ledger() ledger.Repository { return ledgerRepo{s: s} }

// --- generic helpers ---

type versioned[T any] interface {
	*T
	entity.Versioned
}

func insert[T any, P versioned[T]](s *Store, rows map[id.ID]T, v P, entityName string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	if _, ok := rows[v.GetID()]; ok {
		return apperror.NewDuplicate(entityName, "id", v.GetID().String())
	}
	rows[v.GetID()] = *v
	return nil
}

func get[T any](s *Store, rows map[id.ID]T, key id.ID, entityName string) (*T, error) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	v, ok := rows[key]
	if !ok {
		return nil, apperror.NewNotFound(entityName, key)
	}
	return &v, nil
}

func find[T any](s *Store, rows map[id.ID]T, match func(*T) bool) (*T, bool) {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	for _, v := range rows {
		if match(&v) {
			return &v, true
		}
	}
	return nil, false
}

// update stores v when its version matches the stored one and bumps it.
func update[T any, P versioned[T]](s *Store, rows map[id.ID]T, v P, entityName string) error {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	cur, ok := rows[v.GetID()]
	if !ok {
		return apperror.NewNotFound(entityName, v.GetID())
	}
	if P(&cur).GetVersion() != v.GetVersion() {
		return apperror.NewConcurrentModification(entityName, v.GetID())
	}
	v.SetVersion(v.GetVersion() + 1)
	rows[v.GetID()] = *v
	return nil
}

func list[T any](s *Store, rows map[id.ID]T, match func(*T) bool, order func(a, b *T) int, f domain.ListFilter) domain.ListResult[*T] {
	s.dataMu.RLock()
	items := make([]*T, 0, len(rows))
	for _, v := range rows {
		if match(&v) {
			items = append(items, &v)
		}
	}
	s.dataMu.RUnlock()

	slices.SortFunc(items, order)
	return domain.Page(items, f)
}

// ordering builds a comparator from an "OrderBy" string ("field" or
// "-field"). Unknown fields fall back to the default key.
func ordering[T any](orderBy string, keys map[string]func(a, b *T) int, fallback string, tie func(a, b *T) int) func(a, b *T) int {
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")
	cmpFn, ok := keys[field]
	if !ok {
		desc = strings.HasPrefix(fallback, "-")
		cmpFn = keys[strings.TrimPrefix(fallback, "-")]
	}
	return func(a, b *T) int {
		c := cmpFn(a, b)
		if desc {
			c = -c
		}
		if c == 0 {
			c = tie(a, b)
		}
		return c
	}
}

func compareIDs(a, b id.ID) int {
	return cmp.Compare(a.String(), b.String())
}
