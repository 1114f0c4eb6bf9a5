package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"aktieskat/internal/costbasis"
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/models"
)

// tickerHistory is everything the matcher needs for one ticker.
type tickerHistory struct {
	lots  []models.Lot
	sales []models.Transaction
}

// snapshot is a point-in-time read of lots, sales and method settings.
type snapshot struct {
	histories map[string]*tickerHistory
	methods   costbasis.Methods
}

// tickers returns the snapshot's tickers in sorted order.
func (s *snapshot) tickers() []string {
	out := make([]string, 0, len(s.histories))
	for t := range s.histories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func normalizeCurrency(currency string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		c = "USD"
	}
	if c != "USD" && c != "DKK" {
		return "", apperrors.WithMessage(apperrors.ErrUnsupportedCurrency, "Unsupported currency "+currency)
	}
	return c, nil
}

// snapshotOptions returns read-only repeatable-read options on postgres.
// SQLite transactions are already serializable.
func snapshotOptions(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() == "postgres" {
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	}
	return nil
}

// takeSnapshot reads lots, sales and methods in one transaction so a sale
// inserted mid-report is never observed.
func takeSnapshot(ctx context.Context, db *gorm.DB) (*snapshot, error) {
	snap := &snapshot{histories: make(map[string]*tickerHistory)}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lots []models.Lot
		if err := tx.Order("acquired_on ASC, sequence ASC").Find(&lots).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		var sales []models.Transaction
		if err := tx.Where("type = ?", models.TransactionTypeSale).
			Order("date ASC, sequence ASC").Find(&sales).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		methods, err := loadMethods(tx)
		if err != nil {
			return err
		}
		snap.methods = methods

		for _, l := range lots {
			h := snap.history(l.Ticker)
			h.lots = append(h.lots, l)
		}
		for _, s := range sales {
			h := snap.history(s.Ticker)
			h.sales = append(h.sales, s)
		}
		return nil
	}, snapshotOptions(db)...)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *snapshot) history(ticker string) *tickerHistory {
	h, ok := s.histories[ticker]
	if !ok {
		h = &tickerHistory{}
		s.histories[ticker] = h
	}
	return h
}

// loadHistory reads one ticker's lots and sales.
func loadHistory(tx *gorm.DB, ticker string) (*tickerHistory, error) {
	h := &tickerHistory{}
	if err := tx.Where("ticker = ?", ticker).
		Order("acquired_on ASC, sequence ASC").Find(&h.lots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Where("ticker = ? AND type = ?", ticker, models.TransactionTypeSale).
		Order("date ASC, sequence ASC").Find(&h.sales).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return h, nil
}

// loadMethods reads the configured method of every ticker.
func loadMethods(tx *gorm.DB) (costbasis.Methods, error) {
	var settings []models.CostBasisSetting
	if err := tx.Find(&settings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	methods := make(costbasis.Methods, len(settings))
	for _, st := range settings {
		methods[st.Ticker] = costbasis.Method(st.Method)
	}
	return methods, nil
}

// loadMethod reads one ticker's method, falling back to the default.
func loadMethod(tx *gorm.DB, ticker string) (costbasis.Method, error) {
	var st models.CostBasisSetting
	err := tx.Where("ticker = ?", ticker).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return costbasis.DefaultMethod, nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return costbasis.Method(st.Method), nil
}

// nextSequence returns one past the highest sequence in model's table,
// soft-deleted rows included.
func nextSequence(tx *gorm.DB, model any) (int64, error) {
	var max int64
	if err := tx.Model(model).Unscoped().Select("COALESCE(MAX(sequence), 0)").Row().Scan(&max); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return max + 1, nil
}

func toDisposals(sales []models.Transaction) []costbasis.Disposal {
	out := make([]costbasis.Disposal, 0, len(sales))
	for _, s := range sales {
		out = append(out, costbasis.Disposal{ID: s.ID, Sequence: s.Sequence, Date: dayOf(s.Date), Quantity: s.Quantity})
	}
	return out
}

// nativeAcquisitions uses each lot's cost in its own currency. Only valid
// where costs are not compared across lots.
func nativeAcquisitions(lots []models.Lot) []costbasis.Acquisition {
	out := make([]costbasis.Acquisition, 0, len(lots))
	for _, l := range lots {
		out = append(out, costbasis.Acquisition{LotID: l.ID, Sequence: l.Sequence, Date: dayOf(l.AcquiredOn), Quantity: l.Quantity, Cost: l.CostBasis})
	}
	return out
}

// dkkAcquisitions converts each lot's cost at its own acquisition-date rate.
func dkkAcquisitions(ctx context.Context, rates ExchangeRateServicer, lots []models.Lot) ([]costbasis.Acquisition, error) {
	out := make([]costbasis.Acquisition, 0, len(lots))
	for _, l := range lots {
		cost, err := rates.ToDKK(ctx, l.CostBasis, l.Currency, l.AcquiredOn)
		if err != nil {
			return nil, apperrors.Annotate(err, "cost basis of %s lot acquired %s", l.Ticker, l.AcquiredOn.Format(time.DateOnly))
		}
		out = append(out, costbasis.Acquisition{LotID: l.ID, Sequence: l.Sequence, Date: dayOf(l.AcquiredOn), Quantity: l.Quantity, Cost: cost})
	}
	return out, nil
}

// validateYear accepts years from minYear through the current year.
func validateYear(year, minYear int, now time.Time) error {
	if year < minYear || year > now.Year() {
		return apperrors.Wrapf(apperrors.ErrInvalidYear, nil,
			"year %d is outside the supported range %d-%d", year, minYear, now.Year())
	}
	return nil
}

func yearBounds(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
