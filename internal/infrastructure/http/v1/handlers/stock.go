package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"explostock/internal/core/id"
	"explostock/internal/domain/storestock"
	"explostock/internal/infrastructure/http/v1/dto"
)

// StockHandler handles store stock endpoints.
type StockHandler struct {
	*BaseHandler
	service *storestock.Service
}

// NewStockHandler creates a new store stock handler.
func NewStockHandler(base *BaseHandler, service *storestock.Service) *StockHandler {
	return &StockHandler{BaseHandler: base, service: service}
}

// Create handles POST /stores/stocks
func (h *StockHandler) Create(c *gin.Context) {
	var req dto.CreateStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd, err := req.ToCommand(h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	st, ok := runCommand(h.BaseHandler, c, "stock.create", func(ctx context.Context) (*storestock.Stock, error) {
		return h.service.Create(ctx, cmd)
	})
	if !ok {
		return
	}
	h.Created(c, st)
}

// Get handles GET /stores/stocks/:id
func (h *StockHandler) Get(c *gin.Context) {
	stockID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	st, err := h.service.GetByID(c.Request.Context(), stockID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// Lookup handles GET /stores/stocks/lookup?storeId=&materialTypeId=
func (h *StockHandler) Lookup(c *gin.Context) {
	var req dto.StoreStockQuery
	if !h.BindQuery(c, &req) {
		return
	}
	storeID, err := dto.ParseID("storeId", req.StoreID)
	if err != nil {
		h.Error(c, err)
		return
	}
	materialID, err := dto.ParseID("materialTypeId", req.MaterialTypeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	st, err := h.service.GetByStoreAndMaterial(c.Request.Context(), storeID, materialID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, st)
}

// List handles GET /stores/stocks
func (h *StockHandler) List(c *gin.Context) {
	var req dto.StockListRequest
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

// LowStock handles GET /stores/stocks/low?storeId=
func (h *StockHandler) LowStock(c *gin.Context) {
	storeID, err := dto.ParseOptionalID("storeId", c.Query("storeId"))
	if err != nil {
		h.Error(c, err)
		return
	}
	items, err := h.service.ListLowStock(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewItemsResponse(items))
}

// Reserve handles POST /stores/stocks/:id/reserve
func (h *StockHandler) Reserve(c *gin.Context) {
	h.quantityCommand(c, "stock.reserve", h.service.Reserve)
}

// ReleaseReserved handles POST /stores/stocks/:id/release
func (h *StockHandler) ReleaseReserved(c *gin.Context) {
	h.quantityCommand(c, "stock.release_reserved", h.service.ReleaseReserved)
}

func (h *StockHandler) quantityCommand(c *gin.Context, operation string, fn func(context.Context, storestock.QuantityCommand) (*storestock.Stock, error)) {
	stockID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.QuantityRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := storestock.QuantityCommand{StockID: stockID, Quantity: req.Quantity, UserID: h.GetUserID(c)}

	st, ok := runCommand(h.BaseHandler, c, operation, func(ctx context.Context) (*storestock.Stock, error) {
		return fn(ctx, cmd)
	})
	if !ok {
		return
	}
	h.OK(c, st)
}

// SetLevels handles PUT /stores/stocks/:id/levels
func (h *StockHandler) SetLevels(c *gin.Context) {
	stockID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.LevelsRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cmd := storestock.LevelsCommand{
		StockID:      stockID,
		MinimumLevel: req.MinimumLevel,
		MaximumLevel: req.MaximumLevel,
		UserID:       h.GetUserID(c),
	}

	st, ok := runCommand(h.BaseHandler, c, "stock.set_levels", func(ctx context.Context) (*storestock.Stock, error) {
		return h.service.SetLevels(ctx, cmd)
	})
	if !ok {
		return
	}
	h.OK(c, st)
}

// Activate handles POST /stores/stocks/:id/activate
func (h *StockHandler) Activate(c *gin.Context) {
	h.lifecycleCommand(c, "stock.activate", h.service.Activate)
}

// Deactivate handles POST /stores/stocks/:id/deactivate
func (h *StockHandler) Deactivate(c *gin.Context) {
	h.lifecycleCommand(c, "stock.deactivate", h.service.Deactivate)
}

func (h *StockHandler) lifecycleCommand(c *gin.Context, operation string, fn func(ctx context.Context, stockID id.ID, userID string) (*storestock.Stock, error)) {
	stockID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID := h.GetUserID(c)

	st, ok := runCommand(h.BaseHandler, c, operation, func(ctx context.Context) (*storestock.Stock, error) {
		return fn(ctx, stockID, userID)
	})
	if !ok {
		return
	}
	h.OK(c, st)
}
