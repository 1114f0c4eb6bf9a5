package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/fxrate"
	"aktieskat/internal/logger"
	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
)

// RateOptions tunes the exchange rate service.
type RateOptions struct {
	// FallbackDays is how far back a stored rate may be used when the
	// upstream cannot answer. Zero disables the fallback.
	FallbackDays int
	// FetchConcurrency bounds parallel upstream requests in PrefetchRange.
	FetchConcurrency int
	// MaxPrefetchDays bounds the length of a prefetch range.
	MaxPrefetchDays int
}

func (o *RateOptions) defaults() {
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 4
	}
	if o.MaxPrefetchDays <= 0 {
		o.MaxPrefetchDays = 3660
	}
	if o.FallbackDays < 0 {
		o.FallbackDays = 0
	}
}

// exchangeRateService resolves DKK-per-USD rates from the store, an
// in-memory cache and the upstream provider.
type exchangeRateService struct {
	db       *gorm.DB
	provider fxrate.Provider
	opts     RateOptions

	mu      sync.RWMutex
	cache   map[string]models.ExchangeRate // keyed by YYYY-MM-DD
	aliases map[string]string              // requested day -> day the rate belongs to

	writeMu sync.Mutex
}

// NewExchangeRateService creates a new ExchangeRateServicer.
func NewExchangeRateService(db *gorm.DB, provider fxrate.Provider, opts RateOptions) ExchangeRateServicer {
	opts.defaults()
	return &exchangeRateService{
		db:       db,
		provider: provider,
		opts:     opts,
		cache:    make(map[string]models.ExchangeRate),
		aliases:  make(map[string]string),
	}
}

// dayOf truncates t to its calendar date in UTC.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string { return t.Format(time.DateOnly) }

func (s *exchangeRateService) cached(key string) (models.ExchangeRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.cache[key]; ok {
		return r, true
	}
	if alias, ok := s.aliases[key]; ok {
		r, ok := s.cache[alias]
		return r, ok
	}
	return models.ExchangeRate{}, false
}

func (s *exchangeRateService) remember(r models.ExchangeRate, requested string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dayKey(r.Date)
	s.cache[key] = r
	if requested != key {
		s.aliases[requested] = key
	}
}

func quoteFrom(requested time.Time, r models.ExchangeRate) *RateQuote {
	return &RateQuote{RequestedDate: requested, Date: dayOf(r.Date), Rate: r.Rate, Source: r.Source}
}

// loadStored returns the stored rate for day, or nil when none exists.
func (s *exchangeRateService) loadStored(ctx context.Context, day time.Time) (*models.ExchangeRate, error) {
	var r models.ExchangeRate
	err := s.db.WithContext(ctx).Where("date = ?", day).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &r, nil
}

// latestStored returns the most recent stored rate dated in [from, to].
func (s *exchangeRateService) latestStored(ctx context.Context, from, to time.Time) (*models.ExchangeRate, error) {
	var r models.ExchangeRate
	err := s.db.WithContext(ctx).
		Where("date >= ? AND date <= ?", from, to).
		Order("date DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &r, nil
}

// storeFetched persists a fetched quote unless the date already has an
// entry. It reports whether a row was inserted.
func (s *exchangeRateService) storeFetched(ctx context.Context, q fxrate.Quote) (bool, error) {
	row := &models.ExchangeRate{Date: dayOf(q.Date), Rate: q.Rate, Source: models.RateSourceFetched}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "date"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Lookup resolves the rate for date: an exact stored entry first, then the
// upstream, then the nearest preceding stored entry within FallbackDays.
func (s *exchangeRateService) Lookup(ctx context.Context, date time.Time) (*RateQuote, error) {
	day := dayOf(date)
	key := dayKey(day)

	if r, ok := s.cached(key); ok {
		return quoteFrom(day, r), nil
	}

	target := day
	s.mu.RLock()
	if alias, ok := s.aliases[key]; ok {
		if d, err := time.Parse(time.DateOnly, alias); err == nil {
			target = d
		}
	}
	s.mu.RUnlock()

	stored, err := s.loadStored(ctx, target)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		s.remember(*stored, key)
		return quoteFrom(day, *stored), nil
	}

	q, fetchErr := s.provider.FetchRate(ctx, day)
	if fetchErr == nil {
		if err := s.persistQuote(ctx, q); err != nil {
			return nil, err
		}
		// A manual entry between the quote's date and the requested day
		// is closer and takes precedence.
		resolved, err := s.latestStored(ctx, dayOf(q.Date), day)
		if err != nil {
			return nil, err
		}
		if resolved != nil {
			s.remember(*resolved, key)
			return quoteFrom(day, *resolved), nil
		}
		fetchErr = fmt.Errorf("quote for %s was not persisted", key)
	}

	logger.Get().Warnw("upstream exchange rate unavailable",
		"provider", s.provider.Name(),
		"date", key,
		"error", fetchErr,
	)

	if s.opts.FallbackDays > 0 {
		prior, err := s.latestStored(ctx, day.AddDate(0, 0, -s.opts.FallbackDays), day.AddDate(0, 0, -1))
		if err != nil {
			return nil, err
		}
		if prior != nil {
			logger.Get().Infow("using preceding exchange rate",
				"date", key,
				"rate_date", dayKey(prior.Date),
			)
			return quoteFrom(day, *prior), nil
		}
	}

	return nil, apperrors.Wrapf(apperrors.ErrRateUnavailable, fetchErr,
		"no USD/DKK exchange rate available for %s", key)
}

func (s *exchangeRateService) persistQuote(ctx context.Context, q fxrate.Quote) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.storeFetched(ctx, q)
	return err
}

// RateFor returns the DKK-per-USD rate applicable to date.
func (s *exchangeRateService) RateFor(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	q, err := s.Lookup(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Rate, nil
}

// ToDKK converts amount in currency to DKK at the rate for date.
func (s *exchangeRateService) ToDKK(ctx context.Context, amount decimal.Decimal, currency string, date time.Time) (decimal.Decimal, error) {
	switch strings.ToUpper(currency) {
	case "DKK":
		return amount, nil
	case "USD":
		rate, err := s.RateFor(ctx, date)
		if err != nil {
			return decimal.Zero, err
		}
		return amount.Mul(rate), nil
	default:
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrUnsupportedCurrency,
			fmt.Sprintf("cannot convert %s to DKK", currency))
	}
}

// SetManualRate stores rate for date as a manual entry, replacing any
// existing entry for that date.
func (s *exchangeRateService) SetManualRate(ctx context.Context, date time.Time, rate decimal.Decimal) (*models.ExchangeRate, error) {
	if !rate.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Rate must be positive")
	}
	day := dayOf(date)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	row := &models.ExchangeRate{Date: day, Rate: rate, Source: models.RateSourceManual}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"rate", "source", "updated_at"}),
		}).
		Create(row).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stored, err := s.loadStored(ctx, day)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternalServer, nil, "manual rate for %s was not persisted", dayKey(day))
	}

	s.mu.Lock()
	s.cache[dayKey(day)] = *stored
	// Aliases may now skip over the new entry.
	s.aliases = make(map[string]string)
	s.mu.Unlock()

	logger.Get().Infow("manual exchange rate set", "date", dayKey(day), "rate", rate.String())
	return stored, nil
}

// PrefetchRange fetches every date in [start, end] that has no stored entry
// and returns the number of rates newly stored. Failed dates are logged and
// skipped.
func (s *exchangeRateService) PrefetchRange(ctx context.Context, start, end time.Time) (int, error) {
	start, end = dayOf(start), dayOf(end)
	if end.Before(start) {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput, "start must not be after end")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.opts.MaxPrefetchDays {
		return 0, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("range of %d days exceeds the limit of %d", days, s.opts.MaxPrefetchDays))
	}

	var existing []time.Time
	if err := s.db.WithContext(ctx).Model(&models.ExchangeRate{}).
		Where("date >= ? AND date <= ?", start, end).
		Pluck("date", &existing).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[dayKey(d)] = true
	}

	var missing []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if !have[dayKey(d)] {
			missing = append(missing, d)
		}
	}

	quotes := make([]*fxrate.Quote, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchConcurrency)
	for i, d := range missing {
		i, d := i, d
		g.Go(func() error {
			q, err := s.provider.FetchRate(gctx, d)
			if err != nil {
				logger.Get().Warnw("skipping exchange rate",
					"provider", s.provider.Name(),
					"date", dayKey(d),
					"error", err,
				)
				return nil
			}
			quotes[i] = &q
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return 0, apperrors.Wrapf(apperrors.ErrInternalServer, err, "prefetch of %s to %s cancelled", dayKey(start), dayKey(end))
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	stored := 0
	for i, q := range quotes {
		if q == nil {
			continue
		}
		inserted, err := s.storeFetched(ctx, *q)
		if err != nil {
			return stored, err
		}
		if inserted {
			stored++
		}
		requested := dayKey(missing[i])
		if published := dayKey(q.Date); published != requested {
			s.mu.Lock()
			s.aliases[requested] = published
			s.mu.Unlock()
		}
	}

	logger.Get().Infow("exchange rate prefetch finished",
		"start", dayKey(start),
		"end", dayKey(end),
		"missing", len(missing),
		"stored", stored,
	)
	return stored, nil
}

// ListRates returns stored rates ordered by date, optionally bounded.
func (s *exchangeRateService) ListRates(ctx context.Context, page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.ExchangeRate], error) {
	page.Defaults()

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.ExchangeRate{})
		if from != nil {
			q = q.Where("date >= ?", dayOf(*from))
		}
		if to != nil {
			q = q.Where("date <= ?", dayOf(*to))
		}
		return q
	}

	var totalItems int64
	if err := query().Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rates []models.ExchangeRate
	if err := query().Order("date ASC").Scopes(pagination.Paginate(page)).Find(&rates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(rates, page.Page, page.PageSize, totalItems)
	return &result, nil
}
