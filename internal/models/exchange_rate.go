package models

import (
	"time"

	"aktieskat/internal/uuid"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RateSource tells where an exchange rate came from.
type RateSource string

const (
	RateSourceFetched RateSource = "fetched"
	RateSourceManual  RateSource = "manual"
)

// ExchangeRate is the USD to DKK rate for one calendar date.
// A manual entry is never replaced by a fetched one.
type ExchangeRate struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	Date      time.Time       `gorm:"not null;uniqueIndex" json:"date"`
	Rate      decimal.Decimal `gorm:"type:numeric(18,8);not null" json:"rate"`
	Source    RateSource      `gorm:"not null" json:"source"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (r *ExchangeRate) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New()
	}
	return nil
}

// CostBasisSetting stores the cost-basis method configured for a ticker.
type CostBasisSetting struct {
	Ticker    string    `gorm:"primaryKey" json:"ticker"`
	Method    string    `gorm:"not null" json:"method"`
	UpdatedAt time.Time `json:"updated_at"`
}
