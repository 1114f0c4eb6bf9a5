package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"aktieskat/internal/danishtax"
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/logger"
	"aktieskat/internal/models"
)

// dividendTaxService builds the yearly dividend report.
type dividendTaxService struct {
	db      *gorm.DB
	rates   ExchangeRateServicer
	minYear int
	now     func() time.Time
}

// NewDividendTaxService creates a new DividendTaxServicer.
func NewDividendTaxService(db *gorm.DB, rates ExchangeRateServicer, minYear int) DividendTaxServicer {
	return &dividendTaxService{db: db, rates: rates, minYear: minYear, now: time.Now}
}

// Generate sums the year's dividends and withholding in DKK, each at its own
// date's rate. Years are validated like the capital gains report. irsTaxPaid
// is in DKK; the foreign tax credit is only computed for non-US persons who
// supply it, and only for years with a tax table.
func (s *dividendTaxService) Generate(ctx context.Context, year int, isUSPerson bool, irsTaxPaid *decimal.Decimal) (*DividendTaxReport, error) {
	if err := validateYear(year, s.minYear, s.now()); err != nil {
		return nil, err
	}
	if irsTaxPaid != nil && irsTaxPaid.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "irs_tax_paid must not be negative")
	}

	start, end := yearBounds(year)
	var txns []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("type IN ? AND date >= ? AND date < ?",
			[]models.TransactionType{models.TransactionTypeDividend, models.TransactionTypeWithholding}, start, end).
		Order("date ASC, sequence ASC").
		Find(&txns).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	report := &DividendTaxReport{
		Year:              year,
		IsUSPerson:        isUSPerson,
		Lines:             make([]DividendLine, 0, len(txns)),
		GrossDividendsDKK: decimal.Zero,
		WithheldDKK:       decimal.Zero,
	}
	for _, t := range txns {
		amount, err := s.rates.ToDKK(ctx, t.Amount, t.Currency, t.Date)
		if err != nil {
			return nil, apperrors.Annotate(err, "%s %s on %s", t.Ticker, t.Type, t.Date.Format(time.DateOnly))
		}
		amount = amount.Round(2)
		report.Lines = append(report.Lines, DividendLine{
			TransactionID: t.ID,
			Type:          t.Type,
			Ticker:        t.Ticker,
			Date:          dayOf(t.Date),
			Amount:        t.Amount,
			Currency:      t.Currency,
			AmountDKK:     amount,
		})
		if t.Type == models.TransactionTypeDividend {
			report.GrossDividendsDKK = report.GrossDividendsDKK.Add(amount)
		} else {
			report.WithheldDKK = report.WithheldDKK.Add(amount)
		}
	}

	if !isUSPerson && irsTaxPaid != nil {
		paid := irsTaxPaid.Round(2)
		report.IRSTaxPaidDKK = &paid
	}

	if !danishtax.HasTable(year) {
		logger.Get().Infow("dividend tax report without Danish tax",
			"year", year,
			"reason", "no tax table",
		)
		return report, nil
	}
	danishTax, err := danishtax.ShareIncomeTax(year, report.GrossDividendsDKK)
	if err != nil {
		return nil, err
	}
	net := danishTax
	if report.IRSTaxPaidDKK != nil {
		credit := decimal.Min(danishTax, *report.IRSTaxPaidDKK)
		report.ForeignTaxCreditDKK = &credit
		net = danishTax.Sub(credit)
	}
	report.DanishTaxDKK = &danishTax
	report.NetDanishTaxDKK = &net

	logger.Get().Infow("dividend tax report generated",
		"year", year,
		"transactions", len(txns),
		"gross_dkk", report.GrossDividendsDKK.String(),
	)
	return report, nil
}
