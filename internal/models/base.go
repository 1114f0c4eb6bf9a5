// Package models defines the persisted ledger, rate and audit records.
package models

import (
	"fmt"
	"time"

	"aktieskat/internal/uuid"

	"gorm.io/gorm"
)

// Base contains common columns for all tables. IDs are UUIDv7 so rows sort
// by creation time.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate assigns an ID to new records and rejects malformed preset ones.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
		return nil
	}
	if !uuid.IsValid(b.ID) {
		return fmt.Errorf("invalid record id %q", b.ID)
	}
	return nil
}
