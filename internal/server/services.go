package server

import (
	"gorm.io/gorm"

	"aktieskat/internal/config"
	"aktieskat/internal/fxrate"
	"aktieskat/internal/services"
)

// NewServices builds the service graph over db.
func NewServices(db *gorm.DB, cfg *config.Config, provider fxrate.Provider) Services {
	rates := services.NewExchangeRateService(db, provider, services.RateOptions{
		FallbackDays:     cfg.FXFallbackDays,
		FetchConcurrency: cfg.FXFetchConcurrency,
	})
	ledger := services.NewLotLedgerService(db, rates)

	return Services{
		Rates:     rates,
		Ledger:    ledger,
		CostBasis: services.NewCostBasisService(db, ledger),
		Gains:     services.NewCapitalGainsService(db, rates, cfg.MinReportYear),
		Dividends: services.NewDividendTaxService(db, rates, cfg.MinReportYear),
		Tax:       services.NewTaxService(db, rates, cfg.MinReportYear, cfg.DefaultMunicipalRate),
		Audit:     services.NewAuditService(db),
	}
}
