package main

import (
	"github.com/gin-gonic/gin"

	"github.com/textile-backoffice/roll-inventory/internal/application"
	"github.com/textile-backoffice/roll-inventory/internal/config"
	pkgapi "github.com/textile-backoffice/roll-inventory/pkg/api"
	"github.com/textile-backoffice/roll-inventory/pkg/idempotency"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/middleware"
)

// services are the application services the HTTP surface delegates to
type services struct {
	receipt     *application.ReceiptService
	allocation  *application.AllocationService
	fulfillment *application.FulfillmentService
	landedCost  *application.LandedCostService
	resolver    *application.ResolverService
	queries     *application.RollQueryService
}

// newIdempotencyConfig binds Idempotency-Key handling to the storage backend's key repository
func newIdempotencyConfig(cfg config.IdempotencyConfig, keys idempotency.KeyRepository, m *metrics.Metrics, logger *logging.Logger) *idempotency.Config {
	idem := idempotency.DefaultConfig(config.ServiceName, keys)
	idem.RequireKey = cfg.RequireKey
	idem.RetentionPeriod = cfg.Retention
	idem.LockTimeout = cfg.LockTimeout
	idem.ActorExtractor = pkgapi.Actor
	idem.Metrics = idempotency.NewMetrics(m.Registry())
	idem.Logger = logger.Logger
	return idem
}

func newRouter(svc *services, idem *idempotency.Config, m *metrics.Metrics, logger *logging.Logger, ready func() error) *gin.Engine {
	router := gin.New()

	middleware.Setup(router, middleware.DefaultConfig(config.ServiceName, logger.Logger))
	router.Use(middleware.MetricsMiddleware(m))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(config.ServiceName)))

	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, ready))
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	api := router.Group("/api/v1")
	api.Use(idempotency.Middleware(idem))
	{
		api.POST("/batches", createBatchHandler(svc.receipt, logger))
		api.PATCH("/batches/:batchId/notes", updateBatchNotesHandler(svc.receipt, logger))

		api.POST("/rolls", createRollsHandler(svc.receipt, logger))
		api.GET("/rolls", listRollsHandler(svc.queries, logger))
		api.GET("/rolls/:rollId", getRollHandler(svc.queries, logger))
		api.GET("/rolls/:rollId/lineage", getLineageHandler(svc.queries, logger))
		api.POST("/rolls/:rollId/return", returnRollHandler(svc.fulfillment, logger))
		api.POST("/rolls/:rollId/scrap", scrapHandler(svc.fulfillment, logger))
		api.GET("/barcodes/:barcode", getRollByBarcodeHandler(svc.queries, logger))

		api.POST("/unmapped/resolve", resolveUnmappedHandler(svc.resolver, logger))

		api.POST("/allocations", allocateHandler(svc.allocation, logger))
		api.POST("/allocations/release", deallocateHandler(svc.allocation, logger))
		api.POST("/dispatches", dispatchHandler(svc.fulfillment, logger))

		api.POST("/landed-costs", allocateLandedCostsHandler(svc.landedCost, logger))
	}

	return router
}
