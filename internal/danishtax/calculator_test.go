package danishtax

import (
	"testing"

	"github.com/shopspring/decimal"

	"aktieskat/internal/testutil"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate(t *testing.T) {
	t.Run("salary_below_top_threshold", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2024, Salary: d("600000"), Deductions: d("50000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "am_bidrag", d("48000"), r.AMBidrag)
		testutil.AssertDecimal(t, "taxable_income", d("552000"), r.TaxableIncome)
		testutil.AssertDecimal(t, "taxable_after_deductions", d("502000"), r.TaxableAfterDeductions)
		testutil.AssertDecimal(t, "municipal_tax", d("125801.20"), r.MunicipalTax)
		testutil.AssertDecimal(t, "bottom_tax", d("60691.80"), r.BottomTax)
		testutil.AssertDecimal(t, "top_tax", d("0"), r.TopTax)
		testutil.AssertDecimal(t, "total_tax", d("234493"), r.TotalTax)
		testutil.AssertDecimal(t, "effective_rate", d("0.390822"), r.EffectiveRate)
		testutil.AssertDecimal(t, "net_income", d("365507"), r.NetIncome)
	})

	t.Run("top_tax", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2024, Salary: d("1000000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "top_tax", d("49665"), r.TopTax)
		testutil.AssertDecimal(t, "total_tax", d("471445"), r.TotalTax)
	})

	t.Run("2026_brackets", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2026, Salary: d("1000000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "municipal_tax", d("230368"), r.MunicipalTax)
		testutil.AssertDecimal(t, "bottom_tax", d("111228"), r.BottomTax)
		testutil.AssertDecimal(t, "top_tax", d("31567.50"), r.TopTax)
		testutil.AssertDecimal(t, "total_tax", d("453163.50"), r.TotalTax)

		r, err = Calculate(Input{Year: 2026, Salary: d("3000000")})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "top_tax with toptopskat", d("315932.50"), r.TopTax)
	})

	t.Run("seven_p_capped_at_allowance", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2024, Salary: d("800000"), SevenPCovered: d("100000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "gross_income", d("900000"), r.GrossIncome)
		testutil.AssertDecimal(t, "seven_p_allowance", d("80000"), r.SevenPAllowance)
		testutil.AssertDecimal(t, "seven_p_eligible", d("80000"), r.SevenPEligible)
		testutil.AssertDecimal(t, "seven_p_reduction", d("44782.40"), r.SevenPReduction)
		testutil.AssertDecimal(t, "total_tax", d("370684.60"), r.TotalTax)
	})

	t.Run("not_covered_amount_taxed_as_salary", func(t *testing.T) {
		withEquity, err := Calculate(Input{Year: 2024, Salary: d("500000"), SevenPNotCovered: d("100000"), Deductions: d("50000")})
		testutil.AssertNoError(t, err)
		asSalary, err := Calculate(Input{Year: 2024, Salary: d("600000"), Deductions: d("50000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "total_tax", asSalary.TotalTax, withEquity.TotalTax)
		testutil.AssertDecimal(t, "seven_p_reduction", decimal.Zero, withEquity.SevenPReduction)
	})

	t.Run("deductions_floor_at_zero", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2023, Salary: d("40000"), Deductions: d("48000")})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "taxable_after_deductions", decimal.Zero, r.TaxableAfterDeductions)
		testutil.AssertDecimal(t, "total_tax", d("3200"), r.TotalTax)
	})

	t.Run("municipal_override", func(t *testing.T) {
		rate := d("0.2")
		r, err := Calculate(Input{Year: 2025, Salary: d("100000"), MunicipalRate: &rate})
		testutil.AssertNoError(t, err)

		testutil.AssertDecimal(t, "municipal_tax", d("18400"), r.MunicipalTax)
	})

	t.Run("zero_salary", func(t *testing.T) {
		r, err := Calculate(Input{Year: 2025})
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "effective_rate", decimal.Zero, r.EffectiveRate)
	})
}

func TestCalculate_Errors(t *testing.T) {
	bad := d("1.5")
	tests := []struct {
		name     string
		in       Input
		wantCode string
	}{
		{"unknown_year", Input{Year: 1999, Salary: d("1")}, "INVALID_YEAR"},
		{"negative_salary", Input{Year: 2024, Salary: d("-1")}, "INVALID_INPUT"},
		{"negative_covered", Input{Year: 2024, Salary: d("1"), SevenPCovered: d("-5")}, "INVALID_INPUT"},
		{"municipal_rate_out_of_range", Input{Year: 2024, Salary: d("1"), MunicipalRate: &bad}, "INVALID_INPUT"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Calculate(tc.in)
			testutil.AssertAppError(t, err, tc.wantCode)
		})
	}
}

func TestCalculate_Invariants(t *testing.T) {
	salaries := []string{"1", "25000", "350000", "611800", "750000", "2500000"}
	covered := []string{"0", "10000", "90000", "400000"}
	for _, year := range Years() {
		for _, s := range salaries {
			for _, c := range covered {
				in := Input{Year: year, Salary: d(s), SevenPCovered: d(c), SevenPNotCovered: d("5000"), Deductions: d("49700")}
				r, err := Calculate(in)
				if err != nil {
					t.Fatalf("Calculate(%+v): %v", in, err)
				}
				if r.TotalTax.IsNegative() {
					t.Errorf("%d/%s/%s: negative total tax %s", year, s, c, r.TotalTax)
				}
				if r.SevenPReduction.IsNegative() || r.SevenPReduction.GreaterThan(r.TotalTax.Add(r.SevenPReduction)) {
					t.Errorf("%d/%s/%s: reduction %s out of range", year, s, c, r.SevenPReduction)
				}
				if r.EffectiveRate.IsNegative() || r.EffectiveRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
					t.Errorf("%d/%s/%s: effective rate %s outside [0, 1)", year, s, c, r.EffectiveRate)
				}
				again, _ := Calculate(in)
				if !again.TotalTax.Equal(r.TotalTax) {
					t.Errorf("%d/%s/%s: result not reproducible", year, s, c)
				}
			}
		}
	}
}

func TestShareIncomeTax(t *testing.T) {
	tests := []struct {
		year   int
		amount string
		want   string
	}{
		{2024, "10000", "2700"},
		{2024, "61000", "16470"},
		{2024, "71000", "20670"},
		{2024, "-5", "0"},
		{2026, "100000", "30090"},
	}
	for _, tc := range tests {
		got, err := ShareIncomeTax(tc.year, d(tc.amount))
		testutil.AssertNoError(t, err)
		testutil.AssertDecimal(t, "share income tax on "+tc.amount, d(tc.want), got)
	}

	_, err := ShareIncomeTax(2010, d("100"))
	testutil.AssertAppError(t, err, "INVALID_YEAR")
}

func TestHasTable(t *testing.T) {
	for _, y := range Years() {
		if !HasTable(y) {
			t.Errorf("HasTable(%d) = false for a listed year", y)
		}
	}
	if HasTable(2014) {
		t.Error("HasTable(2014) = true")
	}
	if got := Years(); got[len(got)-1] != 2026 {
		t.Errorf("latest table = %d, want 2026", got[len(got)-1])
	}
}
