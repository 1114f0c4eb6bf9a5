package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the type of brokerage transaction.
type TransactionType string

const (
	TransactionTypeSale        TransactionType = "sale"
	TransactionTypeDividend    TransactionType = "dividend"
	TransactionTypeWithholding TransactionType = "withholding"
	TransactionTypeOther       TransactionType = "other"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeDividend, TransactionTypeWithholding, TransactionTypeOther:
		return true
	}
	return false
}

// Transaction is a brokerage transaction. For sales Amount is the total
// proceeds, for dividends the gross payment and for withholding the tax
// withheld at source (always positive).
type Transaction struct {
	Base
	Type     TransactionType `gorm:"not null;index" json:"type"`
	Date     time.Time       `gorm:"not null;index" json:"date"`
	Ticker   string          `gorm:"not null;index" json:"ticker"`
	Quantity decimal.Decimal `gorm:"type:numeric(24,8);not null;default:0" json:"quantity"`
	Amount   decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"amount"`
	Currency string          `gorm:"not null;default:'USD'" json:"currency"`
	Sequence int64           `gorm:"not null;uniqueIndex" json:"sequence"`
	Notes    string          `json:"notes,omitempty"`
}
