package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"

	"aktieskat/internal/danishtax"
	"aktieskat/internal/models"
	"aktieskat/internal/services"
)

func day(t time.Time) string { return t.Format(time.DateOnly) }

func pct(d decimal.Decimal) string { return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + " %" }

// CapitalGains renders the yearly gains report.
func CapitalGains(r *services.CapitalGainsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Capital gains %d\n\n", r.Year)

	if len(r.LineItems) == 0 {
		b.WriteString("No disposals in this year.\n")
		return b.String()
	}

	b.WriteString("| Ticker | Acquired | Sold | Quantity | Proceeds | Cost basis | Gain | Holding | Method |\n")
	b.WriteString("|---|---|---|--:|--:|--:|--:|---|---|\n")
	for _, it := range r.LineItems {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			it.Ticker, day(it.AcquiredOn), day(it.DisposedOn), it.Quantity.String(),
			DKK(it.ProceedsDKK), DKK(it.CostBasisDKK), DKK(it.GainDKK), it.Holding, it.Method)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "- **Gains:** %s\n", DKK(r.TotalGainDKK))
	fmt.Fprintf(&b, "- **Losses:** %s\n", DKK(r.TotalLossDKK))
	fmt.Fprintf(&b, "- **Net:** %s\n", DKK(r.NetDKK))
	return b.String()
}

// Dividends renders the yearly dividend report.
func Dividends(r *services.DividendTaxReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dividends %d\n\n", r.Year)

	if len(r.Lines) > 0 {
		b.WriteString("| Date | Ticker | Type | Amount | DKK |\n")
		b.WriteString("|---|---|---|--:|--:|\n")
		for _, l := range r.Lines {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				day(l.Date), l.Ticker, l.Type, Money(l.Amount, l.Currency), DKK(l.AmountDKK))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "- **Gross dividends:** %s\n", DKK(r.GrossDividendsDKK))
	fmt.Fprintf(&b, "- **Withheld in the US:** %s\n", DKK(r.WithheldDKK))
	if r.DanishTaxDKK == nil {
		fmt.Fprintf(&b, "\nNo Danish tax table for %d; share income tax is not computed.\n", r.Year)
	} else {
		fmt.Fprintf(&b, "- **Danish share income tax:** %s\n", DKK(*r.DanishTaxDKK))
		if r.ForeignTaxCreditDKK != nil {
			fmt.Fprintf(&b, "- **Foreign tax credit:** %s\n", DKK(*r.ForeignTaxCreditDKK))
		}
		fmt.Fprintf(&b, "- **Net Danish tax:** %s\n", DKK(*r.NetDanishTaxDKK))
	}
	if r.IsUSPerson {
		b.WriteString("\nUS persons claim the credit on the US return; no Danish credit is applied.\n")
	}
	return b.String()
}

// Tax renders an income tax computation.
func Tax(r *danishtax.Result, equity *services.SevenPTotals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Income tax %d\n\n", r.Year)

	if equity != nil && len(equity.Lots) > 0 {
		b.WriteString("| Granted | Ticker | Source | §7P | Value |\n")
		b.WriteString("|---|---|---|---|--:|\n")
		for _, l := range equity.Lots {
			covered := "no"
			if l.SevenP {
				covered = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", day(l.AcquiredOn), l.Ticker, l.Source, covered, DKK(l.ValueDKK))
		}
		b.WriteString("\n")
	}

	rows := []struct {
		label string
		value string
	}{
		{"Gross income", DKK(r.GrossIncome)},
		{"AM-bidrag", DKK(r.AMBidrag)},
		{"Taxable income", DKK(r.TaxableIncome)},
		{"After deductions", DKK(r.TaxableAfterDeductions)},
		{"Municipal tax (" + pct(r.MunicipalRate) + ")", DKK(r.MunicipalTax)},
		{"Bottom tax", DKK(r.BottomTax)},
		{"Top tax", DKK(r.TopTax)},
		{"§7P eligible", DKK(r.SevenPEligible)},
		{"§7P reduction", DKK(r.SevenPReduction)},
		{"**Total tax**", "**" + DKK(r.TotalTax) + "**"},
		{"Effective rate", pct(r.EffectiveRate)},
		{"Net income", DKK(r.NetIncome)},
	}
	b.WriteString("| | |\n|---|--:|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", row.label, row.value)
	}
	return b.String()
}

// Positions renders the open positions.
func Positions(positions []services.Position) string {
	var b strings.Builder
	b.WriteString("# Positions\n\n")
	if len(positions) == 0 {
		b.WriteString("No open positions.\n")
		return b.String()
	}

	b.WriteString("| Ticker | Method | Quantity | Cost basis | Average |\n")
	b.WriteString("|---|---|--:|--:|--:|\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			p.Ticker, p.Method, p.Quantity.String(), DKK(p.CostBasisDKK), DKK(p.AverageCostDKK))
	}
	return b.String()
}

// Rates renders a page of stored exchange rates.
func Rates(rates []models.ExchangeRate, stored int) string {
	var b strings.Builder
	b.WriteString("# USD/DKK rates\n\n")
	fmt.Fprintf(&b, "%d new rates stored.\n\n", stored)
	if len(rates) == 0 {
		return b.String()
	}
	b.WriteString("| Date | Rate | Source |\n|---|--:|---|\n")
	for _, r := range rates {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", day(r.Date), r.Rate.String(), r.Source)
	}
	return b.String()
}

// Terminal renders markdown for the terminal, falling back to the raw text.
func Terminal(md string, width int) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// Audit renders audit entries, newest first.
func Audit(entries []models.AuditLog, total int64) string {
	var b strings.Builder
	b.WriteString("# Audit trail\n\n")
	if len(entries) == 0 {
		b.WriteString("No matching entries.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Showing %d of %d entries.\n\n", len(entries), total)
	b.WriteString("| Time | Actor | Action | Resource | Changes |\n|---|---|---|---|---|\n")
	for _, e := range entries {
		changes := e.Changes
		if changes == "" {
			changes = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s %s | `%s` |\n",
			e.CreatedAt.UTC().Format(time.DateTime), e.Actor, e.Action, e.ResourceType, e.ResourceID, changes)
	}
	return b.String()
}
