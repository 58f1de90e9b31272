package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"explostock/internal/core/id"
	"explostock/internal/domain/warehouse"
	"explostock/internal/infrastructure/http/v1/dto"
)

// DefaultExpiringDays is the look-ahead of GET /warehouse/batches/expiring.
const DefaultExpiringDays = 30

// BatchHandler handles warehouse batch endpoints.
type BatchHandler struct {
	*BaseHandler
	service *warehouse.Service
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(base *BaseHandler, service *warehouse.Service) *BatchHandler {
	return &BatchHandler{BaseHandler: base, service: service}
}

// Receive handles POST /warehouse/batches
func (h *BatchHandler) Receive(c *gin.Context) {
	var req dto.ReceiveBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	batch, ok := runCommand(h.BaseHandler, c, "batch.receive", func(ctx context.Context) (*warehouse.Batch, error) {
		return h.service.Receive(ctx, cmd)
	})
	if !ok {
		return
	}
	h.Created(c, batch)
}

// Get handles GET /warehouse/batches/:id
func (h *BatchHandler) Get(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	batch, err := h.service.GetByID(c.Request.Context(), batchID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// GetByCode handles GET /warehouse/batches/by-code/:code
func (h *BatchHandler) GetByCode(c *gin.Context) {
	batch, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, batch)
}

// List handles GET /warehouse/batches
func (h *BatchHandler) List(c *gin.Context) {
	var req dto.BatchListRequest
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

// Expiring handles GET /warehouse/batches/expiring?days=N
func (h *BatchHandler) Expiring(c *gin.Context) {
	req := dto.ExpiringRequest{Days: DefaultExpiringDays}
	if !h.BindQuery(c, &req) {
		return
	}
	batches, err := h.service.ListExpiringWithin(c.Request.Context(), req.Days)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(batches))
}

// Allocate handles POST /warehouse/batches/:id/allocate
func (h *BatchHandler) Allocate(c *gin.Context) {
	h.quantityCommand(c, "batch.allocate", h.service.Allocate)
}

// ReleaseAllocation handles POST /warehouse/batches/:id/release-allocation
func (h *BatchHandler) ReleaseAllocation(c *gin.Context) {
	h.quantityCommand(c, "batch.release_allocation", h.service.ReleaseAllocation)
}

// ConsumeAllocation handles POST /warehouse/batches/:id/consume
func (h *BatchHandler) ConsumeAllocation(c *gin.Context) {
	h.quantityCommand(c, "batch.consume_allocation", h.service.ConsumeAllocation)
}

// UpdateQuantity handles PUT /warehouse/batches/:id/quantity
func (h *BatchHandler) UpdateQuantity(c *gin.Context) {
	h.quantityCommand(c, "batch.update_quantity", h.service.UpdateQuantity)
}

func (h *BatchHandler) quantityCommand(c *gin.Context, operation string, fn func(context.Context, warehouse.QuantityCommand) (*warehouse.Batch, error)) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.QuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := warehouse.QuantityCommand{BatchID: batchID, Quantity: req.Quantity, UserID: h.GetUserID(c)}

	batch, ok := runCommand(h.BaseHandler, c, operation, func(ctx context.Context) (*warehouse.Batch, error) {
		return fn(ctx, cmd)
	})
	if !ok {
		return
	}
	h.OK(c, batch)
}

// Quarantine handles POST /warehouse/batches/:id/quarantine
func (h *BatchHandler) Quarantine(c *gin.Context) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.QuarantineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := warehouse.QuarantineCommand{BatchID: batchID, Reason: req.Reason, UserID: h.GetUserID(c)}

	batch, ok := runCommand(h.BaseHandler, c, "batch.quarantine", func(ctx context.Context) (*warehouse.Batch, error) {
		return h.service.Quarantine(ctx, cmd)
	})
	if !ok {
		return
	}
	h.OK(c, batch)
}

// ReleaseFromQuarantine handles POST /warehouse/batches/:id/release-quarantine
func (h *BatchHandler) ReleaseFromQuarantine(c *gin.Context) {
	h.idCommand(c, "batch.release_quarantine", h.service.ReleaseFromQuarantine)
}

// MarkExpired handles POST /warehouse/batches/:id/expire
func (h *BatchHandler) MarkExpired(c *gin.Context) {
	h.idCommand(c, "batch.mark_expired", h.service.MarkExpired)
}

func (h *BatchHandler) idCommand(c *gin.Context, operation string, fn func(ctx context.Context, batchID id.ID, userID string) (*warehouse.Batch, error)) {
	batchID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID := h.GetUserID(c)

	batch, ok := runCommand(h.BaseHandler, c, operation, func(ctx context.Context) (*warehouse.Batch, error) {
		return fn(ctx, batchID, userID)
	})
	if !ok {
		return
	}
	h.OK(c, batch)
}

// ExpireDue handles POST /warehouse/batches/expire-due
func (h *BatchHandler) ExpireDue(c *gin.Context) {
	userID := h.GetUserID(c)
	n, ok := runCommand(h.BaseHandler, c, "batch.expire_due", func(ctx context.Context) (int, error) {
		return h.service.ExpireDue(ctx, userID)
	})
	if !ok {
		return
	}
	h.OK(c, gin.H{"expired": n})
}
