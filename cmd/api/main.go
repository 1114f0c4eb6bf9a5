package main

import (
	"fmt"
	"net/http"
	"os"

	"aktieskat/internal/config"
	"aktieskat/internal/database"
	"aktieskat/internal/fxrate"
	"aktieskat/internal/logger"
	"aktieskat/internal/server"
)

// @title           Aktieskat API
// @version         1.0
// @description     Danish tax reporting for US-listed equity compensation: capital gains, dividends and income tax with the §7P reduction.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer dbManager.Close()

	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Initialize services
	provider := fxrate.NewFrankfurterProvider(&http.Client{Timeout: appConfig.FXRequestTimeout}, appConfig.FXBaseURL)
	router := server.NewRouter(server.NewServices(dbManager.DB(), appConfig, provider), server.Options{
		JWTSecret:      []byte(appConfig.JWTSecret),
		PipelineAPIKey: appConfig.PipelineAPIKey,
	})

	log.Infow("Starting aktieskat API",
		"port", appConfig.Port,
		"db_driver", dbConfig.Driver,
		"fx_provider", provider.Name(),
	)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
