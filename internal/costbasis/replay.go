package costbasis

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	apperrors "aktieskat/internal/errors"
)

// Acquisition is a lot as seen by the matcher. Cost is the lot's total cost
// basis in whatever currency the caller works in; the matcher never converts.
type Acquisition struct {
	LotID    string
	Sequence int64
	Date     time.Time
	Quantity decimal.Decimal
	Cost     decimal.Decimal
}

// Disposal is a sale to be matched.
type Disposal struct {
	ID       string
	Sequence int64
	Date     time.Time
	Quantity decimal.Decimal
}

// Consumption is the part of one lot used by one disposal.
type Consumption struct {
	LotID      string          `json:"lot_id"`
	AcquiredOn time.Time       `json:"acquired_on"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
}

// Match is the resolved consumption of a single disposal.
type Match struct {
	DisposalID   string          `json:"disposal_id"`
	Date         time.Time       `json:"date"`
	Quantity     decimal.Decimal `json:"quantity"`
	Cost         decimal.Decimal `json:"cost"`
	Consumptions []Consumption   `json:"consumptions"`
}

// OpenLot is a lot with quantity left after all disposals were replayed.
// Cost is the remaining cost basis under the method that produced the plan.
type OpenLot struct {
	LotID      string          `json:"lot_id"`
	Sequence   int64           `json:"sequence"`
	AcquiredOn time.Time       `json:"acquired_on"`
	Quantity   decimal.Decimal `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
}

// Plan is the outcome of replaying one ticker's history.
type Plan struct {
	Ticker   string          `json:"ticker"`
	Method   Method          `json:"method"`
	Matches  []Match         `json:"matches"`
	Open     []OpenLot       `json:"open"`
	Quantity decimal.Decimal `json:"quantity"`
	Cost     decimal.Decimal `json:"cost"`
}

// MatchFor returns the match of the given disposal.
func (p *Plan) MatchFor(disposalID string) (Match, bool) {
	for _, m := range p.Matches {
		if m.DisposalID == disposalID {
			return m, true
		}
	}
	return Match{}, false
}

// AverageCostPerShare returns the remaining cost per open share.
func (p *Plan) AverageCostPerShare() decimal.Decimal {
	if p.Quantity.IsZero() {
		return decimal.Zero
	}
	return p.Cost.Div(p.Quantity)
}

type lotState struct {
	acq      Acquisition
	quantity decimal.Decimal
	cost     decimal.Decimal
}

// SortAcquisitions orders acquisitions by date, then by insertion sequence.
func SortAcquisitions(acqs []Acquisition) {
	sort.SliceStable(acqs, func(i, j int) bool {
		if !acqs[i].Date.Equal(acqs[j].Date) {
			return acqs[i].Date.Before(acqs[j].Date)
		}
		return acqs[i].Sequence < acqs[j].Sequence
	})
}

// SortDisposals orders disposals by date, then by insertion sequence.
func SortDisposals(disps []Disposal) {
	sort.SliceStable(disps, func(i, j int) bool {
		if !disps[i].Date.Equal(disps[j].Date) {
			return disps[i].Date.Before(disps[j].Date)
		}
		return disps[i].Sequence < disps[j].Sequence
	})
}

// Replay matches every disposal of a ticker against its acquisitions using
// method. Lots acquired on a disposal's date are available to it. The
// inputs are not modified.
func Replay(ticker string, acquisitions []Acquisition, disposals []Disposal, method Method) (*Plan, error) {
	if !method.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidMethod, fmt.Sprintf("unknown cost-basis method %q for %s", method, ticker))
	}

	acqs := append([]Acquisition(nil), acquisitions...)
	disps := append([]Disposal(nil), disposals...)
	SortAcquisitions(acqs)
	SortDisposals(disps)

	plan := &Plan{Ticker: ticker, Method: method, Matches: make([]Match, 0, len(disps))}
	lots := make([]*lotState, 0, len(acqs))
	poolQty := decimal.Zero
	poolCost := decimal.Zero

	admit := func(a Acquisition) error {
		if !a.Quantity.IsPositive() || a.Cost.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("lot %s of %s has invalid quantity %s or cost %s", a.LotID, ticker, a.Quantity, a.Cost))
		}
		lots = append(lots, &lotState{acq: a, quantity: a.Quantity, cost: a.Cost})
		poolQty = poolQty.Add(a.Quantity)
		poolCost = poolCost.Add(a.Cost)
		return nil
	}

	next := 0
	for _, d := range disps {
		if !d.Quantity.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("disposal of %s on %s has non-positive quantity %s", ticker, d.Date.Format(time.DateOnly), d.Quantity))
		}
		for next < len(acqs) && !acqs[next].Date.After(d.Date) {
			if err := admit(acqs[next]); err != nil {
				return nil, err
			}
			next++
		}

		if d.Quantity.GreaterThan(poolQty) {
			return nil, apperrors.WithMessage(apperrors.ErrInsufficientShares,
				fmt.Sprintf("disposal of %s %s on %s exceeds the %s shares open on that date",
					d.Quantity, ticker, d.Date.Format(time.DateOnly), poolQty))
		}

		var match Match
		switch method {
		case AverageCost:
			match = consumeAverage(lots, d, poolQty, poolCost)
		default:
			match = consumeFIFO(lots, d)
		}
		poolQty = poolQty.Sub(match.Quantity)
		poolCost = poolCost.Sub(match.Cost)
		if poolQty.IsNegative() || poolCost.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrComputation,
				fmt.Sprintf("open position of %s went negative after disposal on %s", ticker, d.Date.Format(time.DateOnly)))
		}
		for _, l := range lots {
			if l.quantity.IsNegative() {
				return nil, apperrors.WithMessage(apperrors.ErrComputation,
					fmt.Sprintf("lot %s of %s has negative quantity %s", l.acq.LotID, ticker, l.quantity))
			}
		}
		plan.Matches = append(plan.Matches, match)
	}

	for ; next < len(acqs); next++ {
		if err := admit(acqs[next]); err != nil {
			return nil, err
		}
	}

	plan.Quantity = poolQty
	plan.Cost = poolCost
	plan.Open = openLots(lots, method, poolQty, poolCost)
	return plan, nil
}

// consumeFIFO takes the disposal quantity from the oldest lots first,
// splitting the last lot's cost proportionally.
func consumeFIFO(lots []*lotState, d Disposal) Match {
	match := Match{DisposalID: d.ID, Date: d.Date, Quantity: d.Quantity, Cost: decimal.Zero}
	remaining := d.Quantity
	for _, l := range lots {
		if remaining.IsZero() {
			break
		}
		if l.quantity.IsZero() {
			continue
		}
		take := decimal.Min(remaining, l.quantity)
		cost := l.cost
		if take.LessThan(l.quantity) {
			cost = l.cost.Mul(take).Div(l.quantity)
		}
		l.quantity = l.quantity.Sub(take)
		l.cost = l.cost.Sub(cost)
		remaining = remaining.Sub(take)

		match.Cost = match.Cost.Add(cost)
		match.Consumptions = append(match.Consumptions, Consumption{
			LotID:      l.acq.LotID,
			AcquiredOn: l.acq.Date,
			Quantity:   take,
			Cost:       cost,
		})
	}
	return match
}

// consumeAverage prices the disposal at the pool's average cost at the
// moment of disposal. Quantities are still drawn from the oldest lots so the
// audit trail shows which shares left the pool.
func consumeAverage(lots []*lotState, d Disposal, poolQty, poolCost decimal.Decimal) Match {
	total := poolCost
	if d.Quantity.LessThan(poolQty) {
		total = poolCost.Mul(d.Quantity).Div(poolQty)
	}
	match := Match{DisposalID: d.ID, Date: d.Date, Quantity: d.Quantity, Cost: total}

	remaining := d.Quantity
	allocated := decimal.Zero
	for _, l := range lots {
		if remaining.IsZero() {
			break
		}
		if l.quantity.IsZero() {
			continue
		}
		take := decimal.Min(remaining, l.quantity)
		l.quantity = l.quantity.Sub(take)
		remaining = remaining.Sub(take)

		cost := total.Sub(allocated)
		if remaining.IsPositive() {
			cost = total.Mul(take).Div(d.Quantity)
		}
		allocated = allocated.Add(cost)
		match.Consumptions = append(match.Consumptions, Consumption{
			LotID:      l.acq.LotID,
			AcquiredOn: l.acq.Date,
			Quantity:   take,
			Cost:       cost,
		})
	}
	return match
}

func openLots(lots []*lotState, method Method, poolQty, poolCost decimal.Decimal) []OpenLot {
	open := make([]OpenLot, 0, len(lots))
	for _, l := range lots {
		if l.quantity.IsZero() {
			continue
		}
		open = append(open, OpenLot{
			LotID:      l.acq.LotID,
			Sequence:   l.acq.Sequence,
			AcquiredOn: l.acq.Date,
			Quantity:   l.quantity,
			Cost:       l.cost,
		})
	}
	if method != AverageCost || len(open) == 0 {
		return open
	}

	// Under the average method every open share carries the pool average.
	allocated := decimal.Zero
	for i := range open {
		if i == len(open)-1 {
			open[i].Cost = poolCost.Sub(allocated)
			break
		}
		open[i].Cost = poolCost.Mul(open[i].Quantity).Div(poolQty)
		allocated = allocated.Add(open[i].Cost)
	}
	return open
}
