package danishtax

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "aktieskat/internal/errors"
)

// Input is one tax computation request. Gross income is Salary plus both
// equity amounts; Deductions (fradrag) is the caller's total deduction,
// personfradrag included.
type Input struct {
	Year             int              `json:"year"`
	Salary           decimal.Decimal  `json:"salary"`
	Deductions       decimal.Decimal  `json:"deductions"`
	SevenPCovered    decimal.Decimal  `json:"seven_p_covered"`
	SevenPNotCovered decimal.Decimal  `json:"seven_p_not_covered"`
	MunicipalRate    *decimal.Decimal `json:"municipal_rate,omitempty"`
}

// Result is the full breakdown for one Input. Monetary values are rounded
// to øre; EffectiveRate to six decimals.
type Result struct {
	Year                   int             `json:"year"`
	GrossIncome            decimal.Decimal `json:"gross_income"`
	AMBidrag               decimal.Decimal `json:"am_bidrag"`
	TaxableIncome          decimal.Decimal `json:"taxable_income"`
	TaxableAfterDeductions decimal.Decimal `json:"taxable_after_deductions"`
	MunicipalRate          decimal.Decimal `json:"municipal_rate"`
	MunicipalTax           decimal.Decimal `json:"municipal_tax"`
	BottomTax              decimal.Decimal `json:"bottom_tax"`
	TopTax                 decimal.Decimal `json:"top_tax"`
	SevenPAllowance        decimal.Decimal `json:"seven_p_allowance"`
	SevenPEligible         decimal.Decimal `json:"seven_p_eligible"`
	SevenPReduction        decimal.Decimal `json:"seven_p_reduction"`
	TotalTax               decimal.Decimal `json:"total_tax"`
	EffectiveRate          decimal.Decimal `json:"effective_rate"`
	NetIncome              decimal.Decimal `json:"net_income"`
}

type breakdown struct {
	am, taxable, afterDeductions, municipal, bottom, top decimal.Decimal
}

func (b breakdown) total() decimal.Decimal {
	return b.am.Add(b.municipal).Add(b.bottom).Add(b.top)
}

func compute(t Table, municipalRate, gross, deductions decimal.Decimal) breakdown {
	var b breakdown
	b.am = gross.Mul(t.AMRate)
	b.taxable = gross.Sub(b.am)
	b.afterDeductions = decimal.Max(b.taxable.Sub(deductions), decimal.Zero)
	b.municipal = b.afterDeductions.Mul(municipalRate)
	b.bottom = b.afterDeductions.Mul(t.BottomRate)
	b.top = decimal.Zero
	for _, br := range t.TopBrackets {
		b.top = b.top.Add(decimal.Max(b.afterDeductions.Sub(br.Threshold), decimal.Zero).Mul(br.Rate))
	}
	return b
}

// Calculate computes the tax for in. It is a pure function of its input.
func Calculate(in Input) (*Result, error) {
	t, err := TableFor(in.Year)
	if err != nil {
		return nil, err
	}
	for name, v := range map[string]decimal.Decimal{
		"salary":              in.Salary,
		"deductions":          in.Deductions,
		"seven_p_covered":     in.SevenPCovered,
		"seven_p_not_covered": in.SevenPNotCovered,
	} {
		if v.IsNegative() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("%s must not be negative", name))
		}
	}
	municipalRate := t.MunicipalRate
	if in.MunicipalRate != nil {
		if in.MunicipalRate.IsNegative() || in.MunicipalRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "municipal_rate must be a fraction in [0, 1)")
		}
		municipalRate = *in.MunicipalRate
	}

	gross := in.Salary.Add(in.SevenPCovered).Add(in.SevenPNotCovered)
	full := compute(t, municipalRate, gross, in.Deductions)

	// The relief is the tax the eligible amount would otherwise have carried;
	// covered amounts above the allowance stay in ordinary income.
	allowance := in.Salary.Mul(t.SevenPCapRate)
	eligible := decimal.Min(in.SevenPCovered, allowance)
	without := compute(t, municipalRate, gross.Sub(eligible), in.Deductions)
	reduction := full.total().Sub(without.total()).Round(2)

	r := &Result{
		Year:                   in.Year,
		GrossIncome:            gross.Round(2),
		AMBidrag:               full.am.Round(2),
		TaxableIncome:          full.taxable.Round(2),
		TaxableAfterDeductions: full.afterDeductions.Round(2),
		MunicipalRate:          municipalRate,
		MunicipalTax:           full.municipal.Round(2),
		BottomTax:              full.bottom.Round(2),
		TopTax:                 full.top.Round(2),
		SevenPAllowance:        allowance.Round(2),
		SevenPEligible:         eligible.Round(2),
		SevenPReduction:        reduction,
	}
	r.TotalTax = r.AMBidrag.Add(r.MunicipalTax).Add(r.BottomTax).Add(r.TopTax).Sub(r.SevenPReduction)
	if r.TotalTax.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrComputation,
			fmt.Sprintf("total tax for %d came out negative (%s)", in.Year, r.TotalTax))
	}
	r.EffectiveRate = decimal.Zero
	if gross.IsPositive() {
		r.EffectiveRate = r.TotalTax.DivRound(gross, 6)
	}
	r.NetIncome = r.GrossIncome.Sub(r.TotalTax)
	return r, nil
}
