package testutil

import (
	"sync/atomic"
	"testing"
	"time"

	"aktieskat/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Date parses a YYYY-MM-DD date in UTC and fails the test on error.
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

// Dec parses a decimal and fails the test on error.
func Dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func nextSequence(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var max int64
	if err := db.Model(model).Unscoped().Select("COALESCE(MAX(sequence), 0)").Row().Scan(&max); err != nil {
		t.Fatalf("failed to read sequence: %v", err)
	}
	return max + 1
}

// CreateTestLot creates a USD purchase lot.
func CreateTestLot(t *testing.T, db *gorm.DB, ticker, acquiredOn, quantity, cost string) *models.Lot {
	t.Helper()
	return CreateTestGrant(t, db, ticker, acquiredOn, quantity, cost, models.LotSourcePurchase, false)
}

// CreateTestGrant creates a USD lot with the given source and §7P flag.
func CreateTestGrant(t *testing.T, db *gorm.DB, ticker, acquiredOn, quantity, cost string, source models.LotSource, sevenP bool) *models.Lot {
	t.Helper()

	lot := &models.Lot{
		Ticker:     ticker,
		AcquiredOn: Date(t, acquiredOn),
		Quantity:   Dec(t, quantity),
		CostBasis:  Dec(t, cost),
		Currency:   "USD",
		Source:     source,
		SevenP:     sevenP,
		Sequence:   nextSequence(t, db, &models.Lot{}),
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("failed to create test lot: %v", err)
	}
	return lot
}

func createTestTransaction(t *testing.T, db *gorm.DB, txType models.TransactionType, ticker, date, quantity, amount string) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		Type:     txType,
		Date:     Date(t, date),
		Ticker:   ticker,
		Quantity: Dec(t, quantity),
		Amount:   Dec(t, amount),
		Currency: "USD",
		Sequence: nextSequence(t, db, &models.Transaction{}),
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create test %s: %v", txType, err)
	}
	return txn
}

// CreateTestSale creates a USD sale without touching the consumption trail.
func CreateTestSale(t *testing.T, db *gorm.DB, ticker, date, quantity, proceeds string) *models.Transaction {
	t.Helper()
	return createTestTransaction(t, db, models.TransactionTypeSale, ticker, date, quantity, proceeds)
}

// CreateTestDividend creates a USD dividend payment.
func CreateTestDividend(t *testing.T, db *gorm.DB, ticker, date, amount string) *models.Transaction {
	t.Helper()
	return createTestTransaction(t, db, models.TransactionTypeDividend, ticker, date, "0", amount)
}

// CreateTestWithholding creates USD tax withheld at source.
func CreateTestWithholding(t *testing.T, db *gorm.DB, ticker, date, amount string) *models.Transaction {
	t.Helper()
	return createTestTransaction(t, db, models.TransactionTypeWithholding, ticker, date, "0", amount)
}

// CreateTestRate stores an exchange rate for date.
func CreateTestRate(t *testing.T, db *gorm.DB, date, rate string, source models.RateSource) *models.ExchangeRate {
	t.Helper()

	r := &models.ExchangeRate{Date: Date(t, date), Rate: Dec(t, rate), Source: source}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("failed to create test rate: %v", err)
	}
	return r
}

// CreateTestMethod stores a cost-basis method for ticker.
func CreateTestMethod(t *testing.T, db *gorm.DB, ticker, method string) {
	t.Helper()

	if err := db.Create(&models.CostBasisSetting{Ticker: ticker, Method: method}).Error; err != nil {
		t.Fatalf("failed to create test method: %v", err)
	}
}
