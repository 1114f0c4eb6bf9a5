package services

import (
	"context"

	"gorm.io/gorm"

	"aktieskat/internal/costbasis"
)

// costBasisService reads and changes the per-ticker cost-basis method.
type costBasisService struct {
	db     *gorm.DB
	ledger LotLedgerServicer
}

// NewCostBasisService creates a new CostBasisServicer. Method changes are
// applied through ledger so the consumption trail is replayed with them.
func NewCostBasisService(db *gorm.DB, ledger LotLedgerServicer) CostBasisServicer {
	return &costBasisService{db: db, ledger: ledger}
}

// Methods returns a snapshot of every configured method.
func (s *costBasisService) Methods(ctx context.Context) (costbasis.Methods, error) {
	return loadMethods(s.db.WithContext(ctx))
}

// MethodFor returns the method of ticker, or the default when unset.
func (s *costBasisService) MethodFor(ctx context.Context, ticker string) (costbasis.Method, error) {
	return loadMethod(s.db.WithContext(ctx), normalizeTicker(ticker))
}

// SetMethod switches ticker to method and replays its history.
func (s *costBasisService) SetMethod(ctx context.Context, ticker, method string) (*costbasis.Plan, error) {
	m, err := costbasis.ParseMethod(method)
	if err != nil {
		return nil, err
	}
	return s.ledger.ApplyMethod(ctx, ticker, m)
}
