package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"aktieskat/internal/costbasis"
	"aktieskat/internal/danishtax"
	"aktieskat/internal/logger"
	"aktieskat/internal/middleware"
	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
	"aktieskat/internal/services"
	"aktieskat/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init(logger.EnvTest)
	validator.Register()
}

// --- mock services ---

type mockRateService struct {
	lookupFn        func(date time.Time) (*services.RateQuote, error)
	setManualRateFn func(date time.Time, rate decimal.Decimal) (*models.ExchangeRate, error)
	prefetchFn      func(start, end time.Time) (int, error)
	listRatesFn     func(page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.ExchangeRate], error)
}

func (m *mockRateService) Lookup(_ context.Context, date time.Time) (*services.RateQuote, error) {
	if m.lookupFn != nil {
		return m.lookupFn(date)
	}
	return &services.RateQuote{RequestedDate: date, Date: date, Rate: decimal.NewFromInt(7)}, nil
}

func (m *mockRateService) RateFor(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	q, err := m.Lookup(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Rate, nil
}

func (m *mockRateService) ToDKK(ctx context.Context, amount decimal.Decimal, _ string, date time.Time) (decimal.Decimal, error) {
	rate, err := m.RateFor(ctx, date)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

func (m *mockRateService) SetManualRate(_ context.Context, date time.Time, rate decimal.Decimal) (*models.ExchangeRate, error) {
	if m.setManualRateFn != nil {
		return m.setManualRateFn(date, rate)
	}
	return &models.ExchangeRate{Date: date, Rate: rate, Source: models.RateSourceManual}, nil
}

func (m *mockRateService) PrefetchRange(_ context.Context, start, end time.Time) (int, error) {
	if m.prefetchFn != nil {
		return m.prefetchFn(start, end)
	}
	return 0, nil
}

func (m *mockRateService) ListRates(_ context.Context, page pagination.PageRequest, from, to *time.Time) (*pagination.PageResponse[models.ExchangeRate], error) {
	if m.listRatesFn != nil {
		return m.listRatesFn(page, from, to)
	}
	resp := pagination.NewPageResponse([]models.ExchangeRate{}, 1, 20, 0)
	return &resp, nil
}

var _ services.ExchangeRateServicer = (*mockRateService)(nil)

type mockLedgerService struct {
	recordAcquisitionFn func(in services.LotInput) (*models.Lot, error)
	openLotsFn          func(ticker string) ([]services.OpenLot, error)
	recordDisposalFn    func(in services.DisposalInput) (*services.DisposalResult, error)
	recordTransactionFn func(in services.TransactionInput) (*models.Transaction, error)
}

func (m *mockLedgerService) RecordAcquisition(_ context.Context, in services.LotInput) (*models.Lot, error) {
	if m.recordAcquisitionFn != nil {
		return m.recordAcquisitionFn(in)
	}
	return &models.Lot{Ticker: in.Ticker, Quantity: in.Quantity}, nil
}

func (m *mockLedgerService) OpenLots(_ context.Context, ticker string) ([]services.OpenLot, error) {
	if m.openLotsFn != nil {
		return m.openLotsFn(ticker)
	}
	return []services.OpenLot{}, nil
}

func (m *mockLedgerService) RecordDisposal(_ context.Context, in services.DisposalInput) (*services.DisposalResult, error) {
	if m.recordDisposalFn != nil {
		return m.recordDisposalFn(in)
	}
	return &services.DisposalResult{Sale: models.Transaction{Ticker: in.Ticker, Quantity: in.Quantity}}, nil
}

func (m *mockLedgerService) RecordTransaction(_ context.Context, in services.TransactionInput) (*models.Transaction, error) {
	if m.recordTransactionFn != nil {
		return m.recordTransactionFn(in)
	}
	return &models.Transaction{Type: in.Type, Ticker: in.Ticker, Amount: in.Amount}, nil
}

func (m *mockLedgerService) ReplayTicker(_ context.Context, ticker string) (*costbasis.Plan, error) {
	return &costbasis.Plan{Ticker: ticker}, nil
}

func (m *mockLedgerService) ApplyMethod(_ context.Context, ticker string, method costbasis.Method) (*costbasis.Plan, error) {
	return &costbasis.Plan{Ticker: ticker, Method: method}, nil
}

var _ services.LotLedgerServicer = (*mockLedgerService)(nil)

type mockCostBasisService struct {
	methodsFn   func() (costbasis.Methods, error)
	setMethodFn func(ticker, method string) (*costbasis.Plan, error)
}

func (m *mockCostBasisService) Methods(context.Context) (costbasis.Methods, error) {
	if m.methodsFn != nil {
		return m.methodsFn()
	}
	return costbasis.Methods{}, nil
}

func (m *mockCostBasisService) MethodFor(_ context.Context, ticker string) (costbasis.Method, error) {
	all, err := m.Methods(context.Background())
	if err != nil {
		return "", err
	}
	return all.For(ticker), nil
}

func (m *mockCostBasisService) SetMethod(_ context.Context, ticker, method string) (*costbasis.Plan, error) {
	if m.setMethodFn != nil {
		return m.setMethodFn(ticker, method)
	}
	parsed, err := costbasis.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	return &costbasis.Plan{Ticker: ticker, Method: parsed}, nil
}

var _ services.CostBasisServicer = (*mockCostBasisService)(nil)

type mockGainsService struct {
	generateFn  func(year int) (*services.CapitalGainsReport, error)
	positionsFn func() ([]services.Position, error)
}

func (m *mockGainsService) Generate(_ context.Context, year int) (*services.CapitalGainsReport, error) {
	if m.generateFn != nil {
		return m.generateFn(year)
	}
	return &services.CapitalGainsReport{Year: year}, nil
}

func (m *mockGainsService) GetPortfolioPositions(context.Context) ([]services.Position, error) {
	if m.positionsFn != nil {
		return m.positionsFn()
	}
	return []services.Position{}, nil
}

var _ services.CapitalGainsServicer = (*mockGainsService)(nil)

type mockDividendService struct {
	generateFn func(year int, isUSPerson bool, irsTaxPaid *decimal.Decimal) (*services.DividendTaxReport, error)
}

func (m *mockDividendService) Generate(_ context.Context, year int, isUSPerson bool, irsTaxPaid *decimal.Decimal) (*services.DividendTaxReport, error) {
	if m.generateFn != nil {
		return m.generateFn(year, isUSPerson, irsTaxPaid)
	}
	return &services.DividendTaxReport{Year: year, IsUSPerson: isUSPerson}, nil
}

var _ services.DividendTaxServicer = (*mockDividendService)(nil)

type mockTaxService struct {
	calculateFn      func(in danishtax.Input) (*danishtax.Result, error)
	computeForYearFn func(year int, salary, deductions decimal.Decimal, municipalRate *decimal.Decimal) (*services.TaxForYear, error)
}

func (m *mockTaxService) Calculate(in danishtax.Input) (*danishtax.Result, error) {
	if m.calculateFn != nil {
		return m.calculateFn(in)
	}
	return &danishtax.Result{Year: in.Year}, nil
}

func (m *mockTaxService) SevenPTotals(_ context.Context, year int) (*services.SevenPTotals, error) {
	return &services.SevenPTotals{Year: year}, nil
}

func (m *mockTaxService) ComputeForYear(_ context.Context, year int, salary, deductions decimal.Decimal, municipalRate *decimal.Decimal) (*services.TaxForYear, error) {
	if m.computeForYearFn != nil {
		return m.computeForYearFn(year, salary, deductions, municipalRate)
	}
	return &services.TaxForYear{Equity: services.SevenPTotals{Year: year}, Result: &danishtax.Result{Year: year}}, nil
}

var _ services.TaxServicer = (*mockTaxService)(nil)

type auditEntry struct {
	actor, action, resourceType, resourceID string
	changes                                 map[string]interface{}
}

type mockAuditService struct {
	mu      sync.Mutex
	entries []auditEntry
	listFn  func(page pagination.PageRequest, filter services.AuditFilter) (*pagination.PageResponse[models.AuditLog], error)
}

func (m *mockAuditService) Log(actor, action, resourceType, resourceID, _ string, changes map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, auditEntry{actor, action, resourceType, resourceID, changes})
}

func (m *mockAuditService) List(_ context.Context, page pagination.PageRequest, filter services.AuditFilter) (*pagination.PageResponse[models.AuditLog], error) {
	if m.listFn != nil {
		return m.listFn(page, filter)
	}
	resp := pagination.NewPageResponse([]models.AuditLog{}, 1, 20, 0)
	return &resp, nil
}

func (m *mockAuditService) last(t *testing.T) auditEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		t.Fatal("expected an audit entry")
	}
	return m.entries[len(m.entries)-1]
}

var _ services.AuditServicer = (*mockAuditService)(nil)

// --- helpers ---

func injectActor(actor string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ActorKey, actor)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error object in response, got: %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %q, got %q", code, errObj["code"])
	}
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}
