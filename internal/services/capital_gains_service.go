package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"aktieskat/internal/costbasis"
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/logger"
	"aktieskat/internal/models"
)

const (
	// GainTypeBox454 tags gains on listed shares reported in rubrik 454.
	GainTypeBox454 = "box454"

	HoldingShort = "short"
	HoldingLong  = "long"
)

// capitalGainsService builds realized gains reports and position snapshots.
type capitalGainsService struct {
	db      *gorm.DB
	rates   ExchangeRateServicer
	minYear int
	now     func() time.Time
}

// NewCapitalGainsService creates a new CapitalGainsServicer. Years from
// minYear through the current year are accepted.
func NewCapitalGainsService(db *gorm.DB, rates ExchangeRateServicer, minYear int) CapitalGainsServicer {
	return &capitalGainsService{db: db, rates: rates, minYear: minYear, now: time.Now}
}

// holdingFor classifies a holding period. Danish share gains do not depend
// on it; it is reported for completeness.
func holdingFor(acquired, disposed time.Time) string {
	if disposed.Before(acquired.AddDate(1, 0, 0)) {
		return HoldingShort
	}
	return HoldingLong
}

// Generate returns one line item per consumed lot of every sale in year.
func (s *capitalGainsService) Generate(ctx context.Context, year int) (*CapitalGainsReport, error) {
	if err := validateYear(year, s.minYear, s.now()); err != nil {
		return nil, err
	}
	snap, err := takeSnapshot(ctx, s.db)
	if err != nil {
		return nil, err
	}
	start, end := yearBounds(year)

	report := &CapitalGainsReport{
		Year:             year,
		LineItems:        []CapitalGainsLineItem{},
		TotalGainDKK:     decimal.Zero,
		TotalLossDKK:     decimal.Zero,
		NetDKK:           decimal.Zero,
		TotalsByGainType: map[string]decimal.Decimal{},
	}

	type sale struct {
		txn  models.Transaction
		plan *costbasis.Plan
	}
	var sales []sale
	for _, ticker := range snap.tickers() {
		h := snap.histories[ticker]
		var inYear []models.Transaction
		for _, t := range h.sales {
			if !t.Date.Before(start) && t.Date.Before(end) {
				inYear = append(inYear, t)
			}
		}
		if len(inYear) == 0 {
			continue
		}

		acqs, err := dkkAcquisitions(ctx, s.rates, h.lots)
		if err != nil {
			return nil, err
		}
		plan, err := costbasis.Replay(ticker, acqs, toDisposals(h.sales), snap.methods.For(ticker))
		if err != nil {
			return nil, apperrors.Annotate(err, "capital gains %d", year)
		}
		for _, t := range inYear {
			sales = append(sales, sale{txn: t, plan: plan})
		}
	}
	sort.SliceStable(sales, func(i, j int) bool {
		if !sales[i].txn.Date.Equal(sales[j].txn.Date) {
			return sales[i].txn.Date.Before(sales[j].txn.Date)
		}
		return sales[i].txn.Sequence < sales[j].txn.Sequence
	})

	for _, sl := range sales {
		items, err := s.lineItems(ctx, sl.txn, sl.plan)
		if err != nil {
			return nil, err
		}
		report.LineItems = append(report.LineItems, items...)
	}

	for _, item := range report.LineItems {
		if item.GainDKK.IsNegative() {
			report.TotalLossDKK = report.TotalLossDKK.Add(item.GainDKK.Abs())
		} else {
			report.TotalGainDKK = report.TotalGainDKK.Add(item.GainDKK)
		}
		report.TotalsByGainType[item.GainType] = report.TotalsByGainType[item.GainType].Add(item.GainDKK)
	}
	report.NetDKK = report.TotalGainDKK.Sub(report.TotalLossDKK)

	logger.Get().Infow("capital gains report generated",
		"year", year,
		"disposals", len(sales),
		"line_items", len(report.LineItems),
		"net_dkk", report.NetDKK.String(),
	)
	return report, nil
}

// lineItems splits one sale into a line per consumed lot. Proceeds are
// allocated by quantity; the last line takes the rounding remainder.
func (s *capitalGainsService) lineItems(ctx context.Context, sale models.Transaction, plan *costbasis.Plan) ([]CapitalGainsLineItem, error) {
	match, ok := plan.MatchFor(sale.ID)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrComputation, nil,
			"sale of %s on %s missing from replay", sale.Ticker, sale.Date.Format(time.DateOnly))
	}
	if !match.Quantity.Equal(sale.Quantity) {
		return nil, apperrors.Wrapf(apperrors.ErrComputation, nil,
			"sale of %s on %s consumed %s of %s shares", sale.Ticker, sale.Date.Format(time.DateOnly), match.Quantity, sale.Quantity)
	}

	proceeds, err := s.rates.ToDKK(ctx, sale.Amount, sale.Currency, sale.Date)
	if err != nil {
		return nil, apperrors.Annotate(err, "proceeds of %s sale on %s", sale.Ticker, sale.Date.Format(time.DateOnly))
	}
	proceeds = proceeds.Round(2)

	items := make([]CapitalGainsLineItem, 0, len(match.Consumptions))
	allocated := decimal.Zero
	for i, c := range match.Consumptions {
		share := proceeds.Sub(allocated)
		if i < len(match.Consumptions)-1 {
			share = proceeds.Mul(c.Quantity).Div(sale.Quantity).Round(2)
		}
		allocated = allocated.Add(share)
		cost := c.Cost.Round(2)

		items = append(items, CapitalGainsLineItem{
			DisposalID:   sale.ID,
			LotID:        c.LotID,
			Ticker:       sale.Ticker,
			AcquiredOn:   c.AcquiredOn,
			DisposedOn:   dayOf(sale.Date),
			Quantity:     c.Quantity,
			ProceedsDKK:  share,
			CostBasisDKK: cost,
			GainDKK:      share.Sub(cost),
			Method:       plan.Method,
			Holding:      holdingFor(c.AcquiredOn, sale.Date),
			GainType:     GainTypeBox454,
		})
	}
	return items, nil
}

// GetPortfolioPositions returns the open holding of every ticker with the
// cost basis under its current method.
func (s *capitalGainsService) GetPortfolioPositions(ctx context.Context) ([]Position, error) {
	snap, err := takeSnapshot(ctx, s.db)
	if err != nil {
		return nil, err
	}

	positions := []Position{}
	for _, ticker := range snap.tickers() {
		h := snap.histories[ticker]
		acqs, err := dkkAcquisitions(ctx, s.rates, h.lots)
		if err != nil {
			return nil, err
		}
		method := snap.methods.For(ticker)
		plan, err := costbasis.Replay(ticker, acqs, toDisposals(h.sales), method)
		if err != nil {
			return nil, err
		}
		if plan.Quantity.IsZero() {
			continue
		}

		p := Position{
			Ticker:         ticker,
			Method:         method,
			Quantity:       plan.Quantity,
			CostBasisDKK:   plan.Cost.Round(2),
			AverageCostDKK: plan.AverageCostPerShare().Round(4),
			Lots:           make([]PositionLot, 0, len(plan.Open)),
		}
		for _, o := range plan.Open {
			p.Lots = append(p.Lots, PositionLot{
				LotID:        o.LotID,
				AcquiredOn:   o.AcquiredOn,
				Quantity:     o.Quantity,
				CostBasisDKK: o.Cost.Round(2),
			})
		}
		positions = append(positions, p)
	}
	return positions, nil
}
