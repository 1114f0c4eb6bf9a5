package models

import (
	"testing"

	"github.com/shopspring/decimal"

	"aktieskat/internal/uuid"
)

func TestBaseBeforeCreate(t *testing.T) {
	var b Base
	if err := b.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if !uuid.IsValid(b.ID) {
		t.Errorf("generated id %q is not a UUID", b.ID)
	}

	preset := Base{ID: b.ID}
	if err := preset.BeforeCreate(nil); err != nil || preset.ID != b.ID {
		t.Errorf("preset id changed or rejected: %q, %v", preset.ID, err)
	}

	bad := Base{ID: "lot-1"}
	if err := bad.BeforeCreate(nil); err == nil {
		t.Error("expected malformed id to be rejected")
	}
}

func TestEnums(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"purchase valid", LotSourcePurchase.Valid(), true},
		{"rsu grant", LotSourceRSU.IsEmployerGrant(), true},
		{"purchase not grant", LotSourcePurchase.IsEmployerGrant(), false},
		{"unknown source", LotSource("gift").Valid(), false},
		{"withholding valid", TransactionTypeWithholding.Valid(), true},
		{"unknown type", TransactionType("buy").Valid(), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestCostPerShare(t *testing.T) {
	lot := Lot{Quantity: decimal.NewFromInt(40), CostBasis: decimal.NewFromInt(1000)}
	if got := lot.CostPerShare(); !got.Equal(decimal.NewFromInt(25)) {
		t.Errorf("CostPerShare() = %s, want 25", got)
	}
	if got := (&Lot{}).CostPerShare(); !got.IsZero() {
		t.Errorf("empty lot CostPerShare() = %s, want 0", got)
	}
}
