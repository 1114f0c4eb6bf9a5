// Package danishtax computes Danish personal income tax for a salaried
// holder of employer equity, including the §7P relief, and the share-income
// tax on dividends. All figures use exact decimal arithmetic.
package danishtax

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	apperrors "aktieskat/internal/errors"
)

// Table holds the rates and thresholds in force for one income year.
type Table struct {
	Year int `json:"year"`

	// AMRate is the labour-market contribution (am-bidrag) on gross income.
	AMRate decimal.Decimal `json:"am_rate"`
	// MunicipalRate is the average municipal rate (kommuneskat) for the year.
	MunicipalRate decimal.Decimal `json:"municipal_rate"`
	BottomRate    decimal.Decimal `json:"bottom_rate"`
	// TopBrackets are the progressive state taxes above the bottom tax
	// (topskat; from 2026 mellemskat, topskat and toptopskat). Each rate
	// applies to taxable income after deductions above its threshold.
	TopBrackets []Bracket `json:"top_brackets"`
	// SevenPCapRate is the §7P allowance as a fraction of the annual salary.
	SevenPCapRate decimal.Decimal `json:"seven_p_cap_rate"`

	// Share income (aktieindkomst) is taxed at ShareLowRate up to
	// ShareThreshold and at ShareHighRate above it.
	ShareThreshold decimal.Decimal `json:"share_threshold"`
	ShareLowRate   decimal.Decimal `json:"share_low_rate"`
	ShareHighRate  decimal.Decimal `json:"share_high_rate"`
}

// Bracket is one progressive rate and the income it starts at.
type Bracket struct {
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s).Div(decimal.NewFromInt(100)) }

func dkk(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func top(threshold int64) []Bracket {
	return []Bracket{{Threshold: dkk(threshold), Rate: pct("15")}}
}

var tables = map[int]Table{
	2022: {
		Year: 2022, AMRate: pct("8"), MunicipalRate: pct("25.02"), BottomRate: pct("12.09"),
		TopBrackets: top(552500), SevenPCapRate: pct("10"),
		ShareThreshold: dkk(57200), ShareLowRate: pct("27"), ShareHighRate: pct("42"),
	},
	2023: {
		Year: 2023, AMRate: pct("8"), MunicipalRate: pct("25.07"), BottomRate: pct("12.09"),
		TopBrackets: top(568900), SevenPCapRate: pct("10"),
		ShareThreshold: dkk(58900), ShareLowRate: pct("27"), ShareHighRate: pct("42"),
	},
	2024: {
		Year: 2024, AMRate: pct("8"), MunicipalRate: pct("25.06"), BottomRate: pct("12.09"),
		TopBrackets: top(588900), SevenPCapRate: pct("10"),
		ShareThreshold: dkk(61000), ShareLowRate: pct("27"), ShareHighRate: pct("42"),
	},
	2025: {
		Year: 2025, AMRate: pct("8"), MunicipalRate: pct("25.05"), BottomRate: pct("12.09"),
		TopBrackets: top(611800), SevenPCapRate: pct("10"),
		ShareThreshold: dkk(67500), ShareLowRate: pct("27"), ShareHighRate: pct("42"),
	},
	2026: {
		Year: 2026, AMRate: pct("8"), MunicipalRate: pct("25.04"), BottomRate: pct("12.09"),
		SevenPCapRate: pct("10"),
		ShareThreshold: dkk(79400), ShareLowRate: pct("27"), ShareHighRate: pct("42"),
		// mellemskat, topskat, toptopskat
		TopBrackets: []Bracket{
			{Threshold: dkk(641200), Rate: pct("7.5")},
			{Threshold: dkk(777900), Rate: pct("7.5")},
			{Threshold: dkk(2592700), Rate: pct("5")},
		},
	},
}

// TableFor returns the table in force for year.
func TableFor(year int) (Table, error) {
	t, ok := tables[year]
	if !ok {
		return Table{}, apperrors.WithMessage(apperrors.ErrInvalidYear,
			fmt.Sprintf("no Danish tax table for %d (supported: %v)", year, Years()))
	}
	return t, nil
}

// HasTable reports whether year has a tax table.
func HasTable(year int) bool {
	_, ok := tables[year]
	return ok
}

// Years lists the years with a tax table, ascending.
func Years() []int {
	years := make([]int, 0, len(tables))
	for y := range tables {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// ShareIncomeTax returns the tax on amount of share income (e.g. dividends)
// for year. Negative amounts yield zero.
func ShareIncomeTax(year int, amount decimal.Decimal) (decimal.Decimal, error) {
	t, err := TableFor(year)
	if err != nil {
		return decimal.Zero, err
	}
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	low := decimal.Min(amount, t.ShareThreshold)
	high := amount.Sub(low)
	return low.Mul(t.ShareLowRate).Add(high.Mul(t.ShareHighRate)).Round(2), nil
}
