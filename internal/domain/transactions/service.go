// Package transactions composes store stock mutations with ledger writes for
// movements that do not involve the central warehouse: stock in, stock out,
// store to store transfers, adjustments and corrections.
package transactions

import (
	"context"
	"strings"
	"time"

	"explostock/internal/core/apperror"
	"explostock/internal/core/id"
	"explostock/internal/core/types"
	"explostock/internal/domain"
	"explostock/internal/domain/ledger"
	"explostock/internal/domain/storestock"
	"explostock/pkg/logger"
)

// Service runs every movement as one transaction holding the stock change(s)
// and exactly one ledger entry.
type Service struct {
	stocks *storestock.Service
	ledger *ledger.Service
	deps   domain.ServiceDeps
}

// NewService creates a new transaction orchestrator.
func NewService(stocks *storestock.Service, ledgerSvc *ledger.Service, deps domain.ServiceDeps) *Service {
	return &Service{
		stocks: stocks,
		ledger: ledgerSvc,
		deps:   deps.WithDefaults(),
	}
}

// Movement holds the fields shared by all commands.
type Movement struct {
	StoreID         id.ID
	MaterialTypeID  id.ID
	ReferenceNumber *string
	Notes           *string

	// ProcessedBy is the acting user; nil records no user.
	ProcessedBy *string
}

// StockInCommand receives stock at a store.
type StockInCommand struct {
	Movement
	Quantity types.Quantity

	// Unit, when set, registers the (store, material) row on first receipt.
	// Without it a missing row is NotFound.
	Unit string

	BatchNumber *string
	Supplier    *string
	ExpiresAt   *time.Time
}

// StockOutCommand issues stock from a store.
type StockOutCommand struct {
	Movement
	Quantity types.Quantity
}

// TransferCommand moves stock between two stores.
type TransferCommand struct {
	Movement
	ToStoreID id.ID
	Quantity  types.Quantity
}

// AdjustmentCommand applies a signed, non-zero delta.
type AdjustmentCommand struct {
	Movement
	Delta types.Quantity
}

// CorrectionCommand sets the on-hand quantity to an absolute value.
type CorrectionCommand struct {
	Movement
	NewQuantity types.Quantity
}

// Result is the outcome of a movement.
type Result struct {
	Entry *ledger.Entry     `json:"entry"`
	Stock *storestock.Stock `json:"stock"`

	// Destination is set for transfers.
	Destination *storestock.Stock `json:"destination,omitempty"`
}

// StockIn credits a store.
func (s *Service) StockIn(ctx context.Context, cmd StockInCommand) (*Result, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewNonPositiveQuantity("quantity", cmd.Quantity)
	}

	return s.run(ctx, "stock in", func(ctx context.Context, now time.Time) (*Result, error) {
		st, err := s.loadForStockIn(ctx, cmd)
		if err != nil {
			return nil, err
		}
		info := storestock.RestockInfo{BatchNumber: cmd.BatchNumber, Supplier: cmd.Supplier, ExpiresAt: cmd.ExpiresAt}
		if err := st.AddStock(cmd.Quantity, info, now); err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, st, userOf(cmd.Movement), "StoreStockReceived"); err != nil {
			return nil, err
		}
		entry, err := s.record(ctx, cmd.Movement, st, ledger.TypeStockIn, ledger.DirectionIn, cmd.Quantity, now)
		if err != nil {
			return nil, err
		}
		return &Result{Entry: entry, Stock: st}, nil
	})
}

func (s *Service) loadForStockIn(ctx context.Context, cmd StockInCommand) (*storestock.Stock, error) {
	if strings.TrimSpace(cmd.Unit) == "" {
		return s.stocks.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
	}
	return s.stocks.GetOrCreate(ctx, cmd.StoreID, cmd.MaterialTypeID, cmd.Unit, userOf(cmd.Movement))
}

// StockOut debits a store. Reserved stock cannot be issued.
func (s *Service) StockOut(ctx context.Context, cmd StockOutCommand) (*Result, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewNonPositiveQuantity("quantity", cmd.Quantity)
	}

	return s.run(ctx, "stock out", func(ctx context.Context, now time.Time) (*Result, error) {
		st, err := s.stocks.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
		if err != nil {
			return nil, err
		}
		if err := st.ConsumeStock(cmd.Quantity); err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, st, userOf(cmd.Movement), "StoreStockIssued"); err != nil {
			return nil, err
		}
		entry, err := s.record(ctx, cmd.Movement, st, ledger.TypeStockOut, ledger.DirectionOut, cmd.Quantity, now)
		if err != nil {
			return nil, err
		}
		return &Result{Entry: entry, Stock: st}, nil
	})
}

// Transfer moves stock from StoreID to ToStoreID. The destination row must
// already exist. One Transfer entry is written against the source store
// with the destination as related store.
func (s *Service) Transfer(ctx context.Context, cmd TransferCommand) (*Result, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewNonPositiveQuantity("quantity", cmd.Quantity)
	}
	if id.IsNil(cmd.ToStoreID) {
		return nil, apperror.NewRequired("toStoreId")
	}
	if cmd.StoreID == cmd.ToStoreID {
		return nil, apperror.NewValidation("source and destination stores must differ").
			WithDetail("field", "toStoreId")
	}

	return s.run(ctx, "transfer", func(ctx context.Context, now time.Time) (*Result, error) {
		src, err := s.stocks.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
		if err != nil {
			return nil, err
		}
		dst, err := s.stocks.GetByStoreAndMaterial(ctx, cmd.ToStoreID, cmd.MaterialTypeID)
		if err != nil {
			return nil, err
		}
		user := userOf(cmd.Movement)

		if err := src.ConsumeStock(cmd.Quantity); err != nil {
			return nil, err
		}
		info := storestock.RestockInfo{BatchNumber: src.BatchNumber, Supplier: src.Supplier, ExpiresAt: src.ExpiresAt}
		if err := dst.AddStock(cmd.Quantity, info, now); err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, src, user, "StoreStockTransferredOut"); err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, dst, user, "StoreStockTransferredIn"); err != nil {
			return nil, err
		}

		entry := s.newEntry(cmd.Movement, src, ledger.TypeTransfer, ledger.DirectionOut, cmd.Quantity, now)
		entry.RelatedStoreID = &dst.StoreID
		if err := s.ledger.Record(ctx, entry); err != nil {
			return nil, err
		}
		return &Result{Entry: entry, Stock: src, Destination: dst}, nil
	})
}

// Adjustment applies a signed delta: positive adds stock, negative consumes
// it and requires enough available stock.
func (s *Service) Adjustment(ctx context.Context, cmd AdjustmentCommand) (*Result, error) {
	if cmd.Delta.IsZero() {
		return nil, apperror.NewValidation("adjustment cannot be zero").WithDetail("field", "delta")
	}

	return s.run(ctx, "adjustment", func(ctx context.Context, now time.Time) (*Result, error) {
		st, err := s.stocks.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
		if err != nil {
			return nil, err
		}
		dir := ledger.DirectionIn
		if cmd.Delta.IsPositive() {
			err = st.AddStock(cmd.Delta, storestock.RestockInfo{}, now)
		} else {
			dir = ledger.DirectionOut
			err = st.ConsumeStock(cmd.Delta.Abs())
		}
		if err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, st, userOf(cmd.Movement), "StoreStockAdjusted"); err != nil {
			return nil, err
		}
		entry, err := s.record(ctx, cmd.Movement, st, ledger.TypeAdjustment, dir, cmd.Delta.Abs(), now)
		if err != nil {
			return nil, err
		}
		return &Result{Entry: entry, Stock: st}, nil
	})
}

// Correction sets the on-hand quantity after a physical count. The
// difference is ledgered as an Adjustment.
func (s *Service) Correction(ctx context.Context, cmd CorrectionCommand) (*Result, error) {
	if cmd.NewQuantity.IsNegative() {
		return nil, apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "newQuantity").
			WithDetail("requested", cmd.NewQuantity)
	}

	return s.run(ctx, "correction", func(ctx context.Context, now time.Time) (*Result, error) {
		st, err := s.stocks.GetByStoreAndMaterial(ctx, cmd.StoreID, cmd.MaterialTypeID)
		if err != nil {
			return nil, err
		}
		delta := cmd.NewQuantity - st.Quantity
		if delta.IsZero() {
			return nil, apperror.NewValidation("quantity is unchanged").
				WithDetail("field", "newQuantity").
				WithDetail("current", st.Quantity)
		}
		if err := st.UpdateQuantity(cmd.NewQuantity); err != nil {
			return nil, err
		}
		if err := s.stocks.Save(ctx, st, userOf(cmd.Movement), "StoreStockCorrected"); err != nil {
			return nil, err
		}
		dir := ledger.DirectionIn
		if delta.IsNegative() {
			dir = ledger.DirectionOut
		}
		entry, err := s.record(ctx, cmd.Movement, st, ledger.TypeAdjustment, dir, delta.Abs(), now)
		if err != nil {
			return nil, err
		}
		return &Result{Entry: entry, Stock: st}, nil
	})
}

func (s *Service) newEntry(m Movement, st *storestock.Stock, typ ledger.TransactionType, dir ledger.Direction, qty types.Quantity, now time.Time) *ledger.Entry {
	e := ledger.NewEntry(st.StoreID, st.MaterialTypeID, st.Unit, typ, dir, qty, now)
	e.StoreStockID = &st.ID
	e.ReferenceNumber = m.ReferenceNumber
	e.Notes = m.Notes
	e.ProcessedBy = m.ProcessedBy
	return e
}

func (s *Service) record(ctx context.Context, m Movement, st *storestock.Stock, typ ledger.TransactionType, dir ledger.Direction, qty types.Quantity, now time.Time) (*ledger.Entry, error) {
	e := s.newEntry(m, st, typ, dir, qty, now)
	if err := s.ledger.Record(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) run(ctx context.Context, operation string, fn func(ctx context.Context, now time.Time) (*Result, error)) (*Result, error) {
	var res *Result
	err := s.deps.InTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx, s.deps.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock movement recorded",
		"operation", operation,
		"entry_id", res.Entry.ID,
		"store_id", res.Entry.StoreID,
		"quantity", res.Entry.Quantity.String(),
		"direction", res.Entry.Direction)
	return res, nil
}

func userOf(m Movement) string {
	if m.ProcessedBy == nil {
		return ""
	}
	return *m.ProcessedBy
}
