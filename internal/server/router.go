// Package server wires handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "aktieskat/internal/docs" // Import swagger docs
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/handlers"
	"aktieskat/internal/middleware"
	"aktieskat/internal/services"
	"aktieskat/internal/validator"
)

// Services are the dependencies the API is built on.
type Services struct {
	Rates     services.ExchangeRateServicer
	Ledger    services.LotLedgerServicer
	CostBasis services.CostBasisServicer
	Gains     services.CapitalGainsServicer
	Dividends services.DividendTaxServicer
	Tax       services.TaxServicer
	Audit     services.AuditServicer
}

// Options configure authentication.
type Options struct {
	JWTSecret      []byte
	PipelineAPIKey string
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(svc Services, opts Options) *gin.Engine {
	validator.Register()

	reportHandler := handlers.NewReportHandler(svc.Gains, svc.Dividends)
	ledgerHandler := handlers.NewLedgerHandler(svc.Ledger, svc.Audit)
	rateHandler := handlers.NewRateHandler(svc.Rates, svc.Audit)
	settingsHandler := handlers.NewSettingsHandler(svc.CostBasis, svc.Audit)
	taxHandler := handlers.NewTaxHandler(svc.Tax)
	auditHandler := handlers.NewAuditHandler(svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/lots", ledgerHandler.CreateLot)
	pipeline.POST("/transactions", ledgerHandler.CreateTransaction)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(opts.JWTSecret))

	reports := protected.Group("/reports")
	reports.GET("/capital-gains/:year", reportHandler.GetCapitalGains)
	reports.GET("/dividends/:year", reportHandler.GetDividends)
	protected.GET("/portfolio/positions", reportHandler.GetPositions)

	protected.POST("/lots", ledgerHandler.CreateLot)
	protected.GET("/lots/:ticker", ledgerHandler.GetOpenLots)
	protected.POST("/disposals", ledgerHandler.CreateDisposal)

	rates := protected.Group("/rates")
	rates.GET("", rateHandler.ListRates)
	rates.POST("/prefetch", rateHandler.Prefetch)
	rates.GET("/:date", rateHandler.GetRate)
	rates.PUT("/:date", rateHandler.SetRate)

	settings := protected.Group("/settings")
	settings.GET("/cost-basis", settingsHandler.GetCostBasis)
	settings.PUT("/cost-basis/:ticker", settingsHandler.SetCostBasis)

	tax := protected.Group("/tax")
	tax.POST("/calculate", taxHandler.Calculate)
	tax.POST("/:year", taxHandler.ComputeForYear)

	protected.GET("/audit", auditHandler.ListAudit)

	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(apperrors.WithMessage(apperrors.ErrNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path))
	})

	return router
}
