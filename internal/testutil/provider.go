package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"aktieskat/internal/fxrate"

	"github.com/shopspring/decimal"
)

// FakeRateProvider serves rates from a fixed table. A request for a date
// without a rate rolls back to the closest earlier date within a week, the
// way the ECB feed handles weekends and holidays.
type FakeRateProvider struct {
	mu    sync.Mutex
	rates map[string]decimal.Decimal
	fail  map[string]error
	down  bool
	calls atomic.Int64
}

// NewFakeRateProvider creates a provider from YYYY-MM-DD -> rate strings.
func NewFakeRateProvider(rates map[string]string) *FakeRateProvider {
	p := &FakeRateProvider{rates: make(map[string]decimal.Decimal), fail: make(map[string]error)}
	for d, r := range rates {
		p.rates[d] = decimal.RequireFromString(r)
	}
	return p
}

// Name returns the provider's display name.
func (p *FakeRateProvider) Name() string { return "fake" }

// Calls returns the number of FetchRate calls made.
func (p *FakeRateProvider) Calls() int { return int(p.calls.Load()) }

// SetRate adds or changes the rate for date.
func (p *FakeRateProvider) SetRate(date, rate string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rates[date] = decimal.RequireFromString(rate)
}

// FailOn makes requests for date fail with err.
func (p *FakeRateProvider) FailOn(date string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[date] = err
}

// SetDown makes every request fail.
func (p *FakeRateProvider) SetDown(down bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.down = down
}

// FetchRate implements fxrate.Provider.
func (p *FakeRateProvider) FetchRate(_ context.Context, date time.Time) (fxrate.Quote, error) {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()

	key := date.Format(time.DateOnly)
	if p.down {
		return fxrate.Quote{}, errors.New("upstream unavailable")
	}
	if err, ok := p.fail[key]; ok {
		return fxrate.Quote{}, err
	}
	for back := 0; back < 7; back++ {
		d := date.AddDate(0, 0, -back)
		if r, ok := p.rates[d.Format(time.DateOnly)]; ok {
			return fxrate.Quote{Date: d, Rate: r}, nil
		}
	}
	return fxrate.Quote{}, fmt.Errorf("%w: %s", fxrate.ErrNoRate, key)
}
