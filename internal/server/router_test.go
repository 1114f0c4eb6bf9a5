package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"aktieskat/internal/config"
	"aktieskat/internal/logger"
	"aktieskat/internal/middleware"
	"aktieskat/internal/testutil"
)

const (
	testPipelineKey = "pipeline-key"
)

var testSecret = []byte("router-test-secret")

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init(logger.EnvTest)
}

// testApp holds the full application stack over an isolated database.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
	token  string
}

func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.TeardownTestDB(t, db) })

	provider := testutil.NewFakeRateProvider(map[string]string{
		"2023-01-10": "6.5",
		"2024-01-10": "6.8",
		"2024-03-14": "6.9",
		"2024-03-15": "7.0",
	})
	cfg := &config.Config{MinReportYear: 2015, FXFallbackDays: 5, FXFetchConcurrency: 2}

	router := NewRouter(NewServices(db, cfg, provider), Options{JWTSecret: testSecret, PipelineAPIKey: testPipelineKey})

	token, err := middleware.GenerateAccessToken(testSecret, "holder", time.Hour)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return &testApp{DB: db, Router: router, token: token}
}

func (a *testApp) request(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) authed(method, path, body string) *httptest.ResponseRecorder {
	return a.request(method, path, body, map[string]string{"Authorization": "Bearer " + a.token})
}

func (a *testApp) pipeline(path, body string) *httptest.ResponseRecorder {
	return a.request(http.MethodPost, path, body, map[string]string{"X-API-Key": testPipelineKey})
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestHealthAndAuth(t *testing.T) {
	app := setupApp(t)

	expectStatus(t, app.request(http.MethodGet, "/api/health", "", nil), http.StatusOK)
	expectStatus(t, app.request(http.MethodGet, "/api/v1/reports/capital-gains/2024", "", nil), http.StatusUnauthorized)
	expectStatus(t, app.request(http.MethodPost, "/api/v1/pipeline/lots", `{}`, map[string]string{"X-API-Key": "wrong"}), http.StatusUnauthorized)
	expectStatus(t, app.request(http.MethodGet, "/swagger/doc.json", "", nil), http.StatusOK)

	rec := app.request(http.MethodGet, "/api/v2/nothing", "", nil)
	expectStatus(t, rec, http.StatusNotFound)
	if code := parseJSON(t, rec)["error"].(map[string]interface{})["code"]; code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", code)
	}
}

func TestCapitalGainsFlow(t *testing.T) {
	app := setupApp(t)

	// Step 1: Import two lots through the pipeline
	expectStatus(t, app.pipeline("/api/v1/pipeline/lots",
		`{"ticker":"MSFT","acquired_on":"2023-01-10","quantity":"100","cost_basis":"1000"}`), http.StatusCreated)
	expectStatus(t, app.pipeline("/api/v1/pipeline/lots",
		`{"ticker":"MSFT","acquired_on":"2024-01-10","quantity":"100","cost_basis":"2000"}`), http.StatusCreated)

	// Step 2: Sell 150 shares; FIFO consumes all of lot 1 and half of lot 2
	rec := app.authed(http.MethodPost, "/api/v1/disposals",
		`{"ticker":"MSFT","date":"2024-03-15","quantity":"150","proceeds":"4500"}`)
	expectStatus(t, rec, http.StatusCreated)
	if got := parseJSON(t, rec)["cost_basis_dkk"]; got != "13300" {
		t.Errorf("expected cost basis 13300, got %v", got)
	}

	// Step 3: Overselling is rejected
	rec = app.authed(http.MethodPost, "/api/v1/disposals",
		`{"ticker":"MSFT","date":"2024-03-15","quantity":"51","proceeds":"10"}`)
	expectStatus(t, rec, http.StatusUnprocessableEntity)

	// Step 4: The report matches the lot-based figures
	rec = app.authed(http.MethodGet, "/api/v1/reports/capital-gains/2024", "")
	expectStatus(t, rec, http.StatusOK)
	report := parseJSON(t, rec)
	if report["net_dkk"] != "18200" {
		t.Errorf("expected net 18200, got %v", report["net_dkk"])
	}
	if items := report["line_items"].([]interface{}); len(items) != 2 {
		t.Errorf("expected 2 line items, got %d", len(items))
	}

	// Step 5: Switching to average cost replays the sale
	expectStatus(t, app.authed(http.MethodPut, "/api/v1/settings/cost-basis/MSFT", `{"method":"average-cost"}`), http.StatusOK)
	rec = app.authed(http.MethodGet, "/api/v1/reports/capital-gains/2024", "")
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["net_dkk"]; got != "16425" {
		t.Errorf("expected net 16425 under average cost, got %v", got)
	}

	// Step 6: Remaining position
	rec = app.authed(http.MethodGet, "/api/v1/portfolio/positions", "")
	expectStatus(t, rec, http.StatusOK)
	positions := parseJSON(t, rec)["positions"].([]interface{})
	msft := positions[0].(map[string]interface{})
	if msft["quantity"] != "50" || msft["cost_basis_dkk"] != "5025" {
		t.Errorf("unexpected position %v", msft)
	}

	// Step 7: The method change was audited under the token subject
	rec = app.authed(http.MethodGet, "/api/v1/audit?action=SET_COST_BASIS_METHOD", "")
	expectStatus(t, rec, http.StatusOK)
	entries := parseJSON(t, rec)["data"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0].(map[string]interface{})
	if entry["actor"] != "holder" || entry["resource_id"] != "MSFT" {
		t.Errorf("unexpected audit entry %v", entry)
	}
}

func TestDividendFlow(t *testing.T) {
	app := setupApp(t)

	expectStatus(t, app.pipeline("/api/v1/pipeline/transactions",
		`{"type":"dividend","ticker":"AAPL","date":"2024-03-14","amount":"100"}`), http.StatusCreated)
	expectStatus(t, app.pipeline("/api/v1/pipeline/transactions",
		`{"type":"withholding","ticker":"AAPL","date":"2024-03-14","amount":"15"}`), http.StatusCreated)

	rec := app.authed(http.MethodGet, "/api/v1/audit?actor=pipeline", "")
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["total_items"]; got != float64(2) {
		t.Errorf("expected 2 pipeline audit entries, got %v", got)
	}

	rec = app.authed(http.MethodGet, "/api/v1/reports/dividends/2024?irs_tax_paid=50", "")
	expectStatus(t, rec, http.StatusOK)
	report := parseJSON(t, rec)
	// 690 DKK gross at 27%.
	if report["gross_dividends_dkk"] != "690" || report["danish_tax_dkk"] != "186.3" {
		t.Errorf("unexpected totals %v", report)
	}
	if report["foreign_tax_credit_dkk"] != "50" || report["net_danish_tax_dkk"] != "136.3" {
		t.Errorf("unexpected credit %v", report)
	}
}

func TestRateFlow(t *testing.T) {
	app := setupApp(t)

	// Sunday resolves to the Friday rate
	rec := app.authed(http.MethodGet, "/api/v1/rates/2024-03-17", "")
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["rate"]; got != "7" {
		t.Errorf("expected Friday rate 7, got %v", got)
	}

	// A manual weekend rate takes precedence afterwards
	expectStatus(t, app.authed(http.MethodPut, "/api/v1/rates/2024-03-17", `{"rate":"7.05"}`), http.StatusOK)
	rec = app.authed(http.MethodGet, "/api/v1/rates/2024-03-17", "")
	expectStatus(t, rec, http.StatusOK)
	quote := parseJSON(t, rec)
	if quote["rate"] != "7.05" || quote["source"] != "manual" {
		t.Errorf("expected manual rate, got %v", quote)
	}

	rec = app.authed(http.MethodGet, "/api/v1/rates?from=2024-03-01", "")
	expectStatus(t, rec, http.StatusOK)
	if got := parseJSON(t, rec)["total_items"]; got != float64(2) {
		t.Errorf("expected 2 stored rates, got %v", got)
	}
}

func TestTaxFlow(t *testing.T) {
	app := setupApp(t)

	expectStatus(t, app.pipeline("/api/v1/pipeline/lots",
		`{"ticker":"NOVO","acquired_on":"2024-03-15","quantity":"10","cost_basis":"10000","source":"rsu","seven_p":true}`), http.StatusCreated)

	rec := app.authed(http.MethodPost, "/api/v1/tax/2024", `{"salary":"800000","deductions":"0"}`)
	expectStatus(t, rec, http.StatusOK)
	equity := parseJSON(t, rec)["equity"].(map[string]interface{})
	if equity["covered_dkk"] != "70000" {
		t.Errorf("expected 70000 covered, got %v", equity["covered_dkk"])
	}
}
