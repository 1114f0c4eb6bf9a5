// Package fxrate fetches historical USD to DKK exchange rates from upstream
// sources.
package fxrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// ErrNoRate is returned when the upstream has no rate for the requested date,
// e.g. a date before the series starts.
var ErrNoRate = errors.New("fxrate: no rate published for date")

// Quote is one published rate. Date is the date the rate was published for,
// which is on or before the requested date when the upstream rolls weekends
// and holidays back to the previous trading day.
type Quote struct {
	Date time.Time
	Rate decimal.Decimal
}

// Provider fetches the DKK-per-USD rate for a date.
type Provider interface {
	// Name returns the provider's display name.
	Name() string

	// FetchRate returns the quote applicable to date.
	FetchRate(ctx context.Context, date time.Time) (Quote, error)
}

// FrankfurterProvider reads ECB reference rates from the Frankfurter API.
type FrankfurterProvider struct {
	httpClient *http.Client
	baseURL    string // overridable for tests
}

// NewFrankfurterProvider creates a provider against baseURL. An empty baseURL
// selects the public Frankfurter endpoint.
func NewFrankfurterProvider(httpClient *http.Client, baseURL string) *FrankfurterProvider {
	if baseURL == "" {
		baseURL = frankfurterBaseURL
	}
	return &FrankfurterProvider{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the provider's display name.
func (p *FrankfurterProvider) Name() string { return "Frankfurter" }

type frankfurterResponse struct {
	Amount decimal.Decimal            `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// FetchRate queries GET {base}/{YYYY-MM-DD}?from=USD&to=DKK.
func (p *FrankfurterProvider) FetchRate(ctx context.Context, date time.Time) (Quote, error) {
	day := date.Format(time.DateOnly)
	url := fmt.Sprintf("%s/%s?from=USD&to=DKK", p.baseURL, day)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("building fx request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("fx http request for %s: %w", day, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoRate, day)
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("fx request for %s: unexpected status %d", day, resp.StatusCode)
	}

	var body frankfurterResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("decoding fx response for %s: %w", day, err)
	}

	rate, ok := body.Rates["DKK"]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s (DKK missing from response)", ErrNoRate, day)
	}
	if !rate.IsPositive() {
		return Quote{}, fmt.Errorf("invalid fx rate for %s: %s", day, rate)
	}
	// The API quotes per Amount units of the base currency.
	if body.Amount.IsPositive() && !body.Amount.Equal(decimal.NewFromInt(1)) {
		rate = rate.Div(body.Amount)
	}

	published, err := time.Parse(time.DateOnly, body.Date)
	if err != nil {
		return Quote{}, fmt.Errorf("parsing fx date %q for %s: %w", body.Date, day, err)
	}
	requested, _ := time.Parse(time.DateOnly, day)
	if published.After(requested) {
		return Quote{}, fmt.Errorf("fx quote for %s is dated %s, after the requested date", day, body.Date)
	}

	return Quote{Date: published, Rate: rate}, nil
}
