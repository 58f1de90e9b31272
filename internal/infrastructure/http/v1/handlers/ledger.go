package handlers

import (
	"github.com/gin-gonic/gin"

	"explostock/internal/domain/ledger"
	"explostock/internal/infrastructure/http/v1/dto"
)

// LedgerHandler serves the append-only stock ledger.
type LedgerHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(base *BaseHandler, service *ledger.Service) *LedgerHandler {
	return &LedgerHandler{BaseHandler: base, service: service}
}

// List handles GET /ledger
func (h *LedgerHandler) List(c *gin.Context) {
	var req dto.LedgerListRequest
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

// ByStore handles GET /stores/:storeId/ledger
func (h *LedgerHandler) ByStore(c *gin.Context) {
	storeID, ok := h.ParamID(c, "storeId")
	if !ok {
		return
	}
	var req dto.LedgerListRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}
	result, err := h.service.ListByStore(c.Request.Context(), storeID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromListResult(result))
}

// Get handles GET /ledger/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	entryID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	e, err := h.service.GetByID(c.Request.Context(), entryID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, e)
}
