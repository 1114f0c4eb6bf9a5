// Package render formats reports as markdown for the terminal.
package render

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money formats amount in currency using the currency's own separators and
// symbol. Unknown currencies fall back to the plain decimal.
func Money(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	factor := decimal.New(1, int32(cur.Fraction))
	return money.New(amount.Mul(factor).Round(0).IntPart(), currency).Display()
}

// DKK formats amount as Danish kroner.
func DKK(amount decimal.Decimal) string {
	return Money(amount, money.DKK)
}
