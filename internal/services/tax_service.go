package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"aktieskat/internal/danishtax"
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/models"
)

// taxService wraps the calculator with the holder's §7P grant data.
type taxService struct {
	db               *gorm.DB
	rates            ExchangeRateServicer
	minYear          int
	now              func() time.Time
	defaultMunicipal *decimal.Decimal
}

// NewTaxService creates a new TaxServicer. Grant totals accept the same
// years as the reports. defaultMunicipal, when set, replaces the year's
// average municipal rate unless a request overrides it.
func NewTaxService(db *gorm.DB, rates ExchangeRateServicer, minYear int, defaultMunicipal *decimal.Decimal) TaxServicer {
	return &taxService{db: db, rates: rates, minYear: minYear, now: time.Now, defaultMunicipal: defaultMunicipal}
}

// Calculate runs the calculator on in.
func (s *taxService) Calculate(in danishtax.Input) (*danishtax.Result, error) {
	if in.MunicipalRate == nil && s.defaultMunicipal != nil {
		rate := *s.defaultMunicipal
		in.MunicipalRate = &rate
	}
	return danishtax.Calculate(in)
}

// SevenPTotals sums the DKK value of employer-granted lots acquired in year.
func (s *taxService) SevenPTotals(ctx context.Context, year int) (*SevenPTotals, error) {
	if err := validateYear(year, s.minYear, s.now()); err != nil {
		return nil, err
	}
	start, end := yearBounds(year)

	var lots []models.Lot
	if err := s.db.WithContext(ctx).
		Where("source IN ? AND acquired_on >= ? AND acquired_on < ?",
			[]models.LotSource{models.LotSourceRSU, models.LotSourceESPP, models.LotSourceOption}, start, end).
		Order("acquired_on ASC, sequence ASC").
		Find(&lots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := &SevenPTotals{
		Year:          year,
		CoveredDKK:    decimal.Zero,
		NotCoveredDKK: decimal.Zero,
		Lots:          make([]SevenPLot, 0, len(lots)),
	}
	for _, l := range lots {
		value, err := s.rates.ToDKK(ctx, l.CostBasis, l.Currency, l.AcquiredOn)
		if err != nil {
			return nil, apperrors.Annotate(err, "%s grant on %s", l.Ticker, l.AcquiredOn.Format(time.DateOnly))
		}
		value = value.Round(2)
		if l.SevenP {
			totals.CoveredDKK = totals.CoveredDKK.Add(value)
		} else {
			totals.NotCoveredDKK = totals.NotCoveredDKK.Add(value)
		}
		totals.Lots = append(totals.Lots, SevenPLot{
			LotID:      l.ID,
			Ticker:     l.Ticker,
			AcquiredOn: dayOf(l.AcquiredOn),
			Source:     l.Source,
			SevenP:     l.SevenP,
			ValueDKK:   value,
		})
	}
	return totals, nil
}

// ComputeForYear computes the year's tax with the equity amounts taken
// from the recorded grants.
func (s *taxService) ComputeForYear(ctx context.Context, year int, salary, deductions decimal.Decimal, municipalRate *decimal.Decimal) (*TaxForYear, error) {
	totals, err := s.SevenPTotals(ctx, year)
	if err != nil {
		return nil, err
	}
	result, err := s.Calculate(danishtax.Input{
		Year:             year,
		Salary:           salary,
		Deductions:       deductions,
		SevenPCovered:    totals.CoveredDKK,
		SevenPNotCovered: totals.NotCoveredDKK,
		MunicipalRate:    municipalRate,
	})
	if err != nil {
		return nil, err
	}
	return &TaxForYear{Equity: *totals, Result: result}, nil
}
