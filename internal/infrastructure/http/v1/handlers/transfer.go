package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"explostock/internal/domain/ledger"
	"explostock/internal/domain/transfer"
	"explostock/internal/infrastructure/http/v1/dto"
)

// TransferHandler handles transfer request endpoints.
type TransferHandler struct {
	*BaseHandler
	service *transfer.Service
	ledger  *ledger.Service
}

// NewTransferHandler creates a new transfer handler.
func NewTransferHandler(base *BaseHandler, service *transfer.Service, ledgerService *ledger.Service) *TransferHandler {
	return &TransferHandler{BaseHandler: base, service: service, ledger: ledgerService}
}

// Create handles POST /transfers
func (h *TransferHandler) Create(c *gin.Context) {
	var req dto.CreateTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	r, ok := runCommand(h.BaseHandler, c, "transfer.create", func(ctx context.Context) (*transfer.Request, error) {
		return h.service.Create(ctx, cmd)
	})
	if !ok {
		return
	}
	h.Created(c, r)
}

// Get handles GET /transfers/:id
func (h *TransferHandler) Get(c *gin.Context) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.GetByID(c.Request.Context(), requestID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// GetByNumber handles GET /transfers/by-number/:number
func (h *TransferHandler) GetByNumber(c *gin.Context) {
	r, err := h.service.GetByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, r)
}

// List handles GET /transfers
func (h *TransferHandler) List(c *gin.Context) {
	var req dto.TransferListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Overdue handles GET /transfers/overdue
func (h *TransferHandler) Overdue(c *gin.Context) {
	items, err := h.service.ListOverdue(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Urgent handles GET /transfers/urgent
func (h *TransferHandler) Urgent(c *gin.Context) {
	items, err := h.service.ListUrgent(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Ledger handles GET /transfers/:id/ledger
func (h *TransferHandler) Ledger(c *gin.Context) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	entries, err := h.ledger.ListByTransferRequest(c.Request.Context(), requestID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(entries))
}

// Approve handles POST /transfers/:id/approve
func (h *TransferHandler) Approve(c *gin.Context) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ApproveTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := transfer.ApproveCommand{
		RequestID:        requestID,
		ApprovedQuantity: req.ApprovedQuantity,
		Notes:            optionalString(req.Notes),
		UserID:           h.GetUserID(c),
	}
	h.transition(c, "transfer.approve", func(ctx context.Context) (*transfer.Request, error) {
		return h.service.Approve(ctx, cmd)
	})
}

// Reject handles POST /transfers/:id/reject
func (h *TransferHandler) Reject(c *gin.Context) {
	h.reasonCommand(c, "transfer.reject", h.service.Reject)
}

// Cancel handles POST /transfers/:id/cancel
func (h *TransferHandler) Cancel(c *gin.Context) {
	h.reasonCommand(c, "transfer.cancel", h.service.Cancel)
}

func (h *TransferHandler) reasonCommand(c *gin.Context, operation string, fn func(context.Context, transfer.ReasonCommand) (*transfer.Request, error)) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := transfer.ReasonCommand{RequestID: requestID, Reason: req.Reason, UserID: h.GetUserID(c)}
	h.transition(c, operation, func(ctx context.Context) (*transfer.Request, error) {
		return fn(ctx, cmd)
	})
}

// Dispatch handles POST /transfers/:id/dispatch
func (h *TransferHandler) Dispatch(c *gin.Context) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.DispatchTransferRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := transfer.DispatchCommand{
		RequestID:     requestID,
		TruckNumber:   req.TruckNumber,
		DriverName:    req.DriverName,
		DriverContact: optionalString(req.DriverContact),
		Notes:         optionalString(req.Notes),
		UserID:        h.GetUserID(c),
	}
	h.transition(c, "transfer.dispatch", func(ctx context.Context) (*transfer.Request, error) {
		return h.service.Dispatch(ctx, cmd)
	})
}

// MarkInProgress handles POST /transfers/:id/in-progress
func (h *TransferHandler) MarkInProgress(c *gin.Context) {
	h.processCommand(c, "transfer.mark_in_progress", h.service.MarkInProgress)
}

// ConfirmDelivery handles POST /transfers/:id/confirm-delivery
func (h *TransferHandler) ConfirmDelivery(c *gin.Context) {
	h.processCommand(c, "transfer.confirm_delivery", h.service.ConfirmDelivery)
}

// Complete handles POST /transfers/:id/complete
func (h *TransferHandler) Complete(c *gin.Context) {
	h.processCommand(c, "transfer.complete", h.service.Complete)
}

func (h *TransferHandler) processCommand(c *gin.Context, operation string, fn func(context.Context, transfer.ProcessCommand) (*transfer.Request, error)) {
	requestID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	cmd := transfer.ProcessCommand{RequestID: requestID, UserID: h.GetUserID(c)}
	h.transition(c, operation, func(ctx context.Context) (*transfer.Request, error) {
		return fn(ctx, cmd)
	})
}

func (h *TransferHandler) transition(c *gin.Context, operation string, fn func(ctx context.Context) (*transfer.Request, error)) {
	r, ok := runCommand(h.BaseHandler, c, operation, fn)
	if !ok {
		return
	}
	h.OK(c, r)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
