package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"explostock/internal/domain/transactions"
	"explostock/internal/infrastructure/http/v1/dto"
)

// TransactionHandler handles store stock movements. Every movement writes
// exactly one ledger entry in the same transaction as the stock change.
type TransactionHandler struct {
	*BaseHandler
	service *transactions.Service
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(base *BaseHandler, service *transactions.Service) *TransactionHandler {
	return &TransactionHandler{BaseHandler: base, service: service}
}

// StockIn handles POST /transactions/stock-in
func (h *TransactionHandler) StockIn(c *gin.Context) {
	var req dto.StockInRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.movement(c, "transaction.stock_in", func(ctx context.Context) (*transactions.Result, error) {
		return h.service.StockIn(ctx, cmd)
	})
}

// StockOut handles POST /transactions/stock-out
func (h *TransactionHandler) StockOut(c *gin.Context) {
	var req dto.StockOutRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.movement(c, "transaction.stock_out", func(ctx context.Context) (*transactions.Result, error) {
		return h.service.StockOut(ctx, cmd)
	})
}

// Transfer handles POST /transactions/transfer
func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req dto.StoreTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.movement(c, "transaction.transfer", func(ctx context.Context) (*transactions.Result, error) {
		return h.service.Transfer(ctx, cmd)
	})
}

// Adjustment handles POST /transactions/adjustment
func (h *TransactionHandler) Adjustment(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.movement(c, "transaction.adjustment", func(ctx context.Context) (*transactions.Result, error) {
		return h.service.Adjustment(ctx, cmd)
	})
}

// Correction handles POST /transactions/correction
func (h *TransactionHandler) Correction(c *gin.Context) {
	var req dto.CorrectionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.movement(c, "transaction.correction", func(ctx context.Context) (*transactions.Result, error) {
		return h.service.Correction(ctx, cmd)
	})
}

func (h *TransactionHandler) movement(c *gin.Context, operation string, fn func(ctx context.Context) (*transactions.Result, error)) {
	res, ok := runCommand(h.BaseHandler, c, operation, fn)
	if !ok {
		return
	}
	h.Created(c, res)
}
