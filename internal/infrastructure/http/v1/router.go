package v1

import (
	"github.com/gin-gonic/gin"

	"explostock/internal/infrastructure/http/v1/handlers"
	"explostock/internal/infrastructure/http/v1/middleware"
	"explostock/internal/infrastructure/metrics"
	"explostock/internal/infrastructure/storage"
	"explostock/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Backend provides the domain services and the readiness check
	Backend *storage.Backend

	// Logger for request logging
	Logger *logger.Logger

	// Metrics records HTTP and command metrics and serves /metrics. Optional.
	Metrics *metrics.Metrics

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthEnabled requires a valid bearer token on /api/v1. When false a
	// token is still honored and X-User-ID names the acting user.
	AuthEnabled bool

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// Debug switches gin to debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	middleware.InitValidator()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Backend, cfg.Backend.Driver, cfg.Backend.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		if cfg.AuthEnabled {
			protected.Use(middleware.Auth(cfg.JWTValidator)) // 1. Validate JWT
		} else {
			protected.Use(middleware.OptionalAuth(cfg.JWTValidator))
		}
		protected.Use(middleware.UserContext(!cfg.AuthEnabled)) // 2. Acting user

		// Apply idempotency middleware for mutating operations
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		registerInventoryRoutes(protected, cfg)
	}

	return router
}

// registerInventoryRoutes registers warehouse, transfer, store and ledger endpoints.
func registerInventoryRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	svc := cfg.Backend.Services
	baseHandler := handlers.NewBaseHandler(cfg.Metrics)

	RegisterBatchRoutes(rg.Group("/warehouse/batches"), handlers.NewBatchHandler(baseHandler, svc.Batches))
	RegisterTransferRoutes(rg.Group("/transfers"), handlers.NewTransferHandler(baseHandler, svc.Transfers, svc.Ledger))

	stores := rg.Group("/stores")
	RegisterStockRoutes(stores.Group("/stocks"), handlers.NewStockHandler(baseHandler, svc.Stocks))

	ledgerHandler := handlers.NewLedgerHandler(baseHandler, svc.Ledger)
	stores.GET("/:storeId/ledger", ledgerHandler.ByStore)
	RegisterLedgerRoutes(rg.Group("/ledger"), ledgerHandler)

	RegisterTransactionRoutes(rg.Group("/transactions"), handlers.NewTransactionHandler(baseHandler, svc.Transactions))
}
