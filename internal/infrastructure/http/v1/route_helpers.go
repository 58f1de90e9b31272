// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"explostock/internal/infrastructure/http/v1/handlers"
)

// RegisterBatchRoutes registers warehouse batch routes.
//
// Static segments (expiring, expire-due, by-code) are registered next to
// /:id; gin resolves static segments first.
func RegisterBatchRoutes(group *gin.RouterGroup, h *handlers.BatchHandler) {
	group.POST("", h.Receive)
	group.GET("", h.List)
	group.GET("/expiring", h.Expiring)
	group.POST("/expire-due", h.ExpireDue)
	group.GET("/by-code/:code", h.GetByCode)
	group.GET("/:id", h.Get)
	group.POST("/:id/allocate", h.Allocate)
	group.POST("/:id/release-allocation", h.ReleaseAllocation)
	group.POST("/:id/consume", h.ConsumeAllocation)
	group.PUT("/:id/quantity", h.UpdateQuantity)
	group.POST("/:id/quarantine", h.Quarantine)
	group.POST("/:id/release-quarantine", h.ReleaseFromQuarantine)
	group.POST("/:id/expire", h.MarkExpired)
}

// RegisterTransferRoutes registers the transfer request workflow routes.
func RegisterTransferRoutes(group *gin.RouterGroup, h *handlers.TransferHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/overdue", h.Overdue)
	group.GET("/urgent", h.Urgent)
	group.GET("/by-number/:number", h.GetByNumber)
	group.GET("/:id", h.Get)
	group.GET("/:id/ledger", h.Ledger)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/reject", h.Reject)
	group.POST("/:id/dispatch", h.Dispatch)
	group.POST("/:id/in-progress", h.MarkInProgress)
	group.POST("/:id/confirm-delivery", h.ConfirmDelivery)
	group.POST("/:id/complete", h.Complete)
	group.POST("/:id/cancel", h.Cancel)
}

// RegisterStockRoutes registers store stock routes.
func RegisterStockRoutes(group *gin.RouterGroup, h *handlers.StockHandler) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/low", h.LowStock)
	group.GET("/lookup", h.Lookup)
	group.GET("/:id", h.Get)
	group.POST("/:id/reserve", h.Reserve)
	group.POST("/:id/release", h.ReleaseReserved)
	group.PUT("/:id/levels", h.SetLevels)
	group.POST("/:id/activate", h.Activate)
	group.POST("/:id/deactivate", h.Deactivate)
}

// RegisterTransactionRoutes registers store stock movement routes.
func RegisterTransactionRoutes(group *gin.RouterGroup, h *handlers.TransactionHandler) {
	group.POST("/stock-in", h.StockIn)
	group.POST("/stock-out", h.StockOut)
	group.POST("/transfer", h.Transfer)
	group.POST("/adjustment", h.Adjustment)
	group.POST("/correction", h.Correction)
}

// RegisterLedgerRoutes registers read-only ledger routes.
func RegisterLedgerRoutes(group *gin.RouterGroup, h *handlers.LedgerHandler) {
	group.GET("", h.List)
	group.GET("/:id", h.Get)
}
