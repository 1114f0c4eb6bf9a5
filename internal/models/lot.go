package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotSource describes how a lot was acquired.
type LotSource string

const (
	LotSourcePurchase LotSource = "purchase"
	LotSourceRSU      LotSource = "rsu"
	LotSourceESPP     LotSource = "espp"
	LotSourceOption   LotSource = "option"
)

// Valid reports whether s is a known lot source.
func (s LotSource) Valid() bool {
	return s == LotSourcePurchase || s.IsEmployerGrant()
}

// IsEmployerGrant reports whether shares from this source were granted by an employer.
func (s LotSource) IsEmployerGrant() bool {
	switch s {
	case LotSourceRSU, LotSourceESPP, LotSourceOption:
		return true
	}
	return false
}

// Lot is an acquisition of shares. Lots are immutable once created; the
// quantity still open is derived by replaying disposals against them.
type Lot struct {
	Base
	Ticker     string          `gorm:"not null;index" json:"ticker"`
	AcquiredOn time.Time       `gorm:"not null;index" json:"acquired_on"`
	Quantity   decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"quantity"`
	CostBasis  decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"cost_basis"`
	Currency   string          `gorm:"not null;default:'USD'" json:"currency"`
	Source     LotSource       `gorm:"not null;default:'purchase'" json:"source"`
	SevenP     bool            `gorm:"not null;default:false" json:"seven_p"`
	Sequence   int64           `gorm:"not null;uniqueIndex" json:"sequence"`
	Notes      string          `json:"notes,omitempty"`

	// Relationships
	Consumptions []LotConsumption `gorm:"foreignKey:LotID" json:"consumptions,omitempty"`
}

// CostPerShare returns the cost basis per share in the lot's currency.
func (l *Lot) CostPerShare() decimal.Decimal {
	if l.Quantity.IsZero() {
		return decimal.Zero
	}
	return l.CostBasis.Div(l.Quantity)
}

// LotConsumption links a sale to the lot quantity it consumed. Rows are
// rebuilt whenever a ticker's history is replayed.
type LotConsumption struct {
	Base
	DisposalID   string          `gorm:"type:uuid;not null;index" json:"disposal_id"`
	LotID        string          `gorm:"type:uuid;not null;index" json:"lot_id"`
	Ticker       string          `gorm:"not null;index" json:"ticker"`
	Quantity     decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"quantity"`
	CostBasisDKK decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"cost_basis_dkk"`
	Method       string          `gorm:"not null" json:"method"`
}
