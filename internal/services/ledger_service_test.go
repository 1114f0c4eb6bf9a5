package services

import (
	"context"
	"testing"

	"aktieskat/internal/costbasis"
	"aktieskat/internal/models"
	"aktieskat/internal/testutil"
)

func recordDKKLot(t *testing.T, f *fixture, ticker, date, qty, cost string) *models.Lot {
	t.Helper()
	lot, err := f.ledger.RecordAcquisition(context.Background(), LotInput{
		Ticker:     ticker,
		AcquiredOn: testutil.Date(t, date),
		Quantity:   testutil.Dec(t, qty),
		CostBasis:  testutil.Dec(t, cost),
		Currency:   "DKK",
	})
	testutil.AssertNoError(t, err)
	return lot
}

func sell(f *fixture, t *testing.T, ticker, date, qty string) (*DisposalResult, error) {
	t.Helper()
	return f.ledger.RecordDisposal(context.Background(), DisposalInput{
		Ticker:   ticker,
		Date:     testutil.Date(t, date),
		Quantity: testutil.Dec(t, qty),
		Proceeds: testutil.Dec(t, "1000"),
		Currency: "DKK",
	})
}

func countRows(t *testing.T, f *fixture, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestRecordAcquisition(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		f := newFixture(t, nil)
		lot, err := f.ledger.RecordAcquisition(ctx, LotInput{
			Ticker:     " novo ",
			AcquiredOn: testutil.Date(t, "2024-02-01"),
			Quantity:   testutil.Dec(t, "12.5"),
			CostBasis:  testutil.Dec(t, "1250"),
			Source:     models.LotSourceRSU,
			SevenP:     true,
		})
		testutil.AssertNoError(t, err)

		if lot.Ticker != "NOVO" {
			t.Errorf("expected normalized ticker NOVO, got %q", lot.Ticker)
		}
		if lot.Currency != "USD" {
			t.Errorf("expected default currency USD, got %s", lot.Currency)
		}
		if lot.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", lot.Sequence)
		}
	})

	tests := []struct {
		name     string
		in       LotInput
		wantCode string
	}{
		{"missing_ticker", LotInput{Quantity: testutil.Dec(t, "1")}, "INVALID_INPUT"},
		{"zero_quantity", LotInput{Ticker: "A", Quantity: testutil.Dec(t, "0")}, "INVALID_INPUT"},
		{"negative_cost", LotInput{Ticker: "A", Quantity: testutil.Dec(t, "1"), CostBasis: testutil.Dec(t, "-1")}, "INVALID_INPUT"},
		{"euro_lot", LotInput{Ticker: "A", Quantity: testutil.Dec(t, "1"), Currency: "EUR"}, "UNSUPPORTED_CURRENCY"},
		{"unknown_source", LotInput{Ticker: "A", Quantity: testutil.Dec(t, "1"), Source: "gift"}, "INVALID_INPUT"},
		{"seven_p_on_purchase", LotInput{Ticker: "A", Quantity: testutil.Dec(t, "1"), SevenP: true}, "INVALID_INPUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			_, err := f.ledger.RecordAcquisition(ctx, tc.in)
			testutil.AssertAppError(t, err, tc.wantCode)
		})
	}
}

func TestRecordDisposal(t *testing.T) {
	t.Run("lot_based_spans_two_lots", func(t *testing.T) {
		f := newFixture(t, nil)
		first := recordDKKLot(t, f, "NOVO", "2024-01-10", "100", "1000")
		second := recordDKKLot(t, f, "NOVO", "2024-02-10", "100", "2000")

		res, err := sell(f, t, "NOVO", "2024-03-01", "150")
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "cost basis", testutil.Dec(t, "2000"), res.CostBasisDKK)
		if res.Method != costbasis.LotBased {
			t.Errorf("expected lot-based, got %s", res.Method)
		}
		if len(res.Consumptions) != 2 {
			t.Fatalf("expected 2 consumptions, got %d", len(res.Consumptions))
		}
		if res.Consumptions[0].LotID != first.ID || res.Consumptions[1].LotID != second.ID {
			t.Error("consumptions not in lot order")
		}
		testutil.AssertDecimal(t, "first lot qty", testutil.Dec(t, "100"), res.Consumptions[0].Quantity)
		testutil.AssertDecimal(t, "second lot qty", testutil.Dec(t, "50"), res.Consumptions[1].Quantity)
		testutil.AssertDecimal(t, "second lot cost", testutil.Dec(t, "1000"), res.Consumptions[1].CostBasisDKK)

		if n := countRows(t, f, &models.LotConsumption{}); n != 2 {
			t.Errorf("expected 2 persisted consumptions, got %d", n)
		}
	})

	t.Run("average_cost", func(t *testing.T) {
		f := newFixture(t, nil)
		testutil.CreateTestMethod(t, f.db, "NOVO", "average-cost")
		recordDKKLot(t, f, "NOVO", "2024-01-10", "100", "1000")
		recordDKKLot(t, f, "NOVO", "2024-02-10", "100", "2000")

		res, err := sell(f, t, "NOVO", "2024-03-01", "50")
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "cost basis", testutil.Dec(t, "750"), res.CostBasisDKK)
		if res.Method != costbasis.AverageCost {
			t.Errorf("expected average-cost, got %s", res.Method)
		}
	})

	t.Run("usd_lot_converted_at_acquisition_rate", func(t *testing.T) {
		f := newFixture(t, map[string]string{"2024-01-10": "6.5"})
		_, err := f.ledger.RecordAcquisition(context.Background(), LotInput{
			Ticker: "AAPL", AcquiredOn: testutil.Date(t, "2024-01-10"),
			Quantity: testutil.Dec(t, "10"), CostBasis: testutil.Dec(t, "100"), Currency: "USD",
		})
		testutil.AssertNoError(t, err)

		res, err := sell(f, t, "AAPL", "2024-05-01", "5")
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "cost basis", testutil.Dec(t, "325"), res.CostBasisDKK)
	})

	t.Run("no_open_lots", func(t *testing.T) {
		f := newFixture(t, nil)

		_, err := sell(f, t, "NOVO", "2024-03-01", "10")
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")
		if n := countRows(t, f, &models.Transaction{}); n != 0 {
			t.Errorf("failed disposal must not be stored, found %d transactions", n)
		}
	})

	t.Run("lot_acquired_after_sale_is_unavailable", func(t *testing.T) {
		f := newFixture(t, nil)
		recordDKKLot(t, f, "NOVO", "2024-01-10", "100", "1000")
		recordDKKLot(t, f, "NOVO", "2024-04-10", "100", "2000")

		_, err := sell(f, t, "NOVO", "2024-03-01", "150")
		testutil.AssertAppError(t, err, "INSUFFICIENT_SHARES")
	})

	t.Run("rate_unavailable_writes_nothing", func(t *testing.T) {
		f := newFixture(t, nil)
		f.provider.SetDown(true)
		_, err := f.ledger.RecordAcquisition(context.Background(), LotInput{
			Ticker: "AAPL", AcquiredOn: testutil.Date(t, "2024-01-10"),
			Quantity: testutil.Dec(t, "10"), CostBasis: testutil.Dec(t, "100"),
		})
		testutil.AssertNoError(t, err)

		_, err = sell(f, t, "AAPL", "2024-05-01", "5")
		testutil.AssertAppError(t, err, "RATE_UNAVAILABLE")
		if n := countRows(t, f, &models.Transaction{}); n != 0 {
			t.Errorf("expected no stored sale, found %d", n)
		}
	})

	t.Run("invalid_input", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := sell(f, t, "NOVO", "2024-03-01", "0")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestBackdatedLotRebuildsTrail(t *testing.T) {
	f := newFixture(t, nil)
	recordDKKLot(t, f, "NOVO", "2024-03-01", "100", "1000")
	_, err := sell(f, t, "NOVO", "2024-04-01", "50")
	testutil.AssertNoError(t, err)

	older := recordDKKLot(t, f, "NOVO", "2024-01-01", "100", "500")

	var rows []models.LotConsumption
	if err := f.db.Find(&rows).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 consumption, got %d", len(rows))
	}
	if rows[0].LotID != older.ID {
		t.Errorf("expected the backdated lot to be consumed first")
	}
	testutil.AssertDecimal(t, "cost", testutil.Dec(t, "250"), rows[0].CostBasisDKK)
}

func TestBackdatedLot_ReplayFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]string{"2024-03-01": "6.9"})
	first, err := f.ledger.RecordAcquisition(ctx, LotInput{
		Ticker: "AAPL", AcquiredOn: testutil.Date(t, "2024-03-01"),
		Quantity: testutil.Dec(t, "100"), CostBasis: testutil.Dec(t, "1000"), Currency: "USD",
	})
	testutil.AssertNoError(t, err)
	_, err = sell(f, t, "AAPL", "2024-04-01", "50")
	testutil.AssertNoError(t, err)

	f.provider.SetDown(true)
	_, err = f.ledger.RecordAcquisition(ctx, LotInput{
		Ticker: "AAPL", AcquiredOn: testutil.Date(t, "2024-01-02"),
		Quantity: testutil.Dec(t, "100"), CostBasis: testutil.Dec(t, "500"), Currency: "USD",
	})
	testutil.AssertAppError(t, err, "RATE_UNAVAILABLE")

	if n := countRows(t, f, &models.Lot{}); n != 1 {
		t.Errorf("expected the backdated lot to be rolled back, found %d lots", n)
	}
	var rows []models.LotConsumption
	if err := f.db.Find(&rows).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(rows) != 1 || rows[0].LotID != first.ID {
		t.Fatalf("expected the trail to still consume the first lot, got %+v", rows)
	}

	// Once the rate is back the same lot goes in and takes over the sale.
	f.provider.SetDown(false)
	f.provider.SetRate("2024-01-02", "6.8")
	older, err := f.ledger.RecordAcquisition(ctx, LotInput{
		Ticker: "AAPL", AcquiredOn: testutil.Date(t, "2024-01-02"),
		Quantity: testutil.Dec(t, "100"), CostBasis: testutil.Dec(t, "500"), Currency: "USD",
	})
	testutil.AssertNoError(t, err)
	if err := f.db.Find(&rows).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(rows) != 1 || rows[0].LotID != older.ID {
		t.Fatalf("expected the backdated lot to be consumed, got %+v", rows)
	}
	testutil.AssertDecimal(t, "cost", testutil.Dec(t, "1700"), rows[0].CostBasisDKK)
}

func TestOpenLots(t *testing.T) {
	f := newFixture(t, nil)
	a := recordDKKLot(t, f, "NOVO", "2024-02-01", "10", "100")
	b := recordDKKLot(t, f, "NOVO", "2024-01-15", "10", "300")
	c := recordDKKLot(t, f, "NOVO", "2024-02-01", "10", "200")
	recordDKKLot(t, f, "OTHER", "2024-01-01", "5", "50")

	_, err := sell(f, t, "NOVO", "2024-03-01", "15")
	testutil.AssertNoError(t, err)

	open, err := f.ledger.OpenLots(context.Background(), "novo")
	testutil.AssertNoError(t, err)

	if len(open) != 2 {
		t.Fatalf("expected 2 open lots, got %d", len(open))
	}
	if open[0].Lot.ID != a.ID || open[1].Lot.ID != c.ID {
		t.Errorf("expected lots ordered by date then sequence, got %s, %s (b=%s)", open[0].Lot.ID, open[1].Lot.ID, b.ID)
	}
	testutil.AssertDecimal(t, "partially consumed lot", testutil.Dec(t, "5"), open[0].OpenQuantity)
	testutil.AssertDecimal(t, "remaining native cost", testutil.Dec(t, "50"), open[0].RemainingNativeCostFIFO)
	testutil.AssertDecimal(t, "untouched lot", testutil.Dec(t, "10"), open[1].OpenQuantity)
}

func TestOpenLots_AverageCostKeepsNativeFIFOCost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	recordDKKLot(t, f, "NOVO", "2024-01-10", "100", "1000")
	recordDKKLot(t, f, "NOVO", "2024-02-10", "100", "3000")
	_, err := sell(f, t, "NOVO", "2024-03-01", "150")
	testutil.AssertNoError(t, err)
	_, err = f.ledger.ApplyMethod(ctx, "NOVO", costbasis.AverageCost)
	testutil.AssertNoError(t, err)

	open, err := f.ledger.OpenLots(ctx, "NOVO")
	testutil.AssertNoError(t, err)
	if len(open) != 1 {
		t.Fatalf("expected 1 open lot, got %d", len(open))
	}
	testutil.AssertDecimal(t, "open quantity", testutil.Dec(t, "50"), open[0].OpenQuantity)
	testutil.AssertDecimal(t, "native fifo cost", testutil.Dec(t, "1500"), open[0].RemainingNativeCostFIFO)
}

func TestApplyMethod(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	recordDKKLot(t, f, "NOVO", "2024-01-10", "100", "1000")
	recordDKKLot(t, f, "NOVO", "2024-02-10", "100", "2000")
	res, err := sell(f, t, "NOVO", "2024-03-01", "50")
	testutil.AssertNoError(t, err)
	testutil.AssertDecimal(t, "lot-based cost", testutil.Dec(t, "500"), res.CostBasisDKK)

	before, err := f.ledger.OpenLots(ctx, "NOVO")
	testutil.AssertNoError(t, err)

	plan, err := f.ledger.ApplyMethod(ctx, "NOVO", costbasis.AverageCost)
	testutil.AssertNoError(t, err)
	m, ok := plan.MatchFor(res.Sale.ID)
	if !ok {
		t.Fatal("sale missing from replay")
	}
	testutil.AssertDecimal(t, "average cost", testutil.Dec(t, "750"), m.Cost)

	var rows []models.LotConsumption
	f.db.Find(&rows)
	for _, r := range rows {
		if r.Method != string(costbasis.AverageCost) {
			t.Errorf("consumption not rebuilt: method %s", r.Method)
		}
	}
	var setting models.CostBasisSetting
	if err := f.db.First(&setting, "ticker = ?", "NOVO").Error; err != nil {
		t.Fatalf("setting not stored: %v", err)
	}
	if setting.Method != string(costbasis.AverageCost) {
		t.Errorf("expected stored average-cost, got %s", setting.Method)
	}

	plan, err = f.ledger.ApplyMethod(ctx, "NOVO", costbasis.LotBased)
	testutil.AssertNoError(t, err)
	m, _ = plan.MatchFor(res.Sale.ID)
	testutil.AssertDecimal(t, "back to lot-based", testutil.Dec(t, "500"), m.Cost)

	after, err := f.ledger.OpenLots(ctx, "NOVO")
	testutil.AssertNoError(t, err)
	if len(after) != len(before) {
		t.Fatalf("open lot count changed: %d -> %d", len(before), len(after))
	}
	for i := range after {
		testutil.AssertDecimal(t, "open quantity", before[i].OpenQuantity, after[i].OpenQuantity)
	}

	_, err = f.ledger.ApplyMethod(ctx, "NOVO", costbasis.Method("lifo"))
	testutil.AssertAppError(t, err, "INVALID_METHOD")
}

func TestRecordTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	txn, err := f.ledger.RecordTransaction(ctx, TransactionInput{
		Type:   models.TransactionTypeDividend,
		Ticker: "aapl",
		Date:   testutil.Date(t, "2024-05-16"),
		Amount: testutil.Dec(t, "24.00"),
	})
	testutil.AssertNoError(t, err)
	if txn.Ticker != "AAPL" || txn.Currency != "USD" || txn.Sequence != 1 {
		t.Errorf("unexpected transaction: %+v", txn)
	}

	tests := []struct {
		name     string
		in       TransactionInput
		wantCode string
	}{
		{"sale_rejected", TransactionInput{Type: models.TransactionTypeSale, Ticker: "A"}, "INVALID_INPUT"},
		{"unknown_type", TransactionInput{Type: "split", Ticker: "A"}, "INVALID_INPUT"},
		{"negative_amount", TransactionInput{Type: models.TransactionTypeDividend, Ticker: "A", Amount: testutil.Dec(t, "-1")}, "INVALID_INPUT"},
		{"unsupported_currency", TransactionInput{Type: models.TransactionTypeWithholding, Ticker: "A", Currency: "SEK"}, "UNSUPPORTED_CURRENCY"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordTransaction(ctx, tc.in)
			testutil.AssertAppError(t, err, tc.wantCode)
		})
	}
}
