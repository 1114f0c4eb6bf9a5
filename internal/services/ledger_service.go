package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"aktieskat/internal/costbasis"
	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/logger"
	"aktieskat/internal/models"
	"aktieskat/internal/uuid"
)

// lotLedgerService records lots and sales and keeps the lot consumption
// trail in step with the matcher.
type lotLedgerService struct {
	db    *gorm.DB
	rates ExchangeRateServicer
	// mu serializes ledger writes so sequences and replays never interleave.
	mu sync.Mutex
}

// NewLotLedgerService creates a new LotLedgerServicer.
func NewLotLedgerService(db *gorm.DB, rates ExchangeRateServicer) LotLedgerServicer {
	return &lotLedgerService{db: db, rates: rates}
}

// RecordAcquisition appends a lot.
func (s *lotLedgerService) RecordAcquisition(ctx context.Context, in LotInput) (*models.Lot, error) {
	ticker := normalizeTicker(in.Ticker)
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Ticker is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be positive")
	}
	if in.CostBasis.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Cost basis must not be negative")
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	source := in.Source
	if source == "" {
		source = models.LotSourcePurchase
	}
	if !source.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Unknown lot source %q", in.Source))
	}
	if in.SevenP && !source.IsEmployerGrant() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Only employer-granted lots can be covered by §7P")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	seq, err := nextSequence(db, &models.Lot{})
	if err != nil {
		return nil, err
	}
	lot := &models.Lot{
		Base:       models.Base{ID: uuid.New()},
		Ticker:     ticker,
		AcquiredOn: dayOf(in.AcquiredOn),
		Quantity:   in.Quantity,
		CostBasis:  in.CostBasis,
		Currency:   currency,
		Source:     source,
		SevenP:     in.SevenP,
		Notes:      in.Notes,
		Sequence:   seq,
	}

	// A backdated lot changes which shares earlier sales consumed, so the
	// trail is replayed before anything is written.
	var laterSales int64
	if err := db.Model(&models.Transaction{}).
		Where("ticker = ? AND type = ? AND date >= ?", ticker, models.TransactionTypeSale, lot.AcquiredOn).
		Count(&laterSales).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var plan *costbasis.Plan
	if laterSales > 0 {
		if plan, _, err = s.plan(ctx, ticker, nil, pending{lot: lot}); err != nil {
			return nil, err
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(lot).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if plan == nil {
			return nil
		}
		_, txErr := rewriteConsumptions(tx, ticker, plan)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("lot recorded",
		"ticker", ticker,
		"acquired_on", lot.AcquiredOn.Format(time.DateOnly),
		"quantity", lot.Quantity.String(),
		"source", lot.Source,
		"sales_replayed", laterSales,
	)
	return lot, nil
}

// OpenLots returns the lots of ticker with shares left, oldest first. Open
// quantities do not depend on the method: both methods draw shares from the
// oldest lots.
func (s *lotLedgerService) OpenLots(ctx context.Context, ticker string) ([]OpenLot, error) {
	ticker = normalizeTicker(ticker)
	h, err := loadHistory(s.db.WithContext(ctx), ticker)
	if err != nil {
		return nil, err
	}

	plan, err := costbasis.Replay(ticker, nativeAcquisitions(h.lots), toDisposals(h.sales), costbasis.LotBased)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Lot, len(h.lots))
	for _, l := range h.lots {
		byID[l.ID] = l
	}
	open := make([]OpenLot, 0, len(plan.Open))
	for _, o := range plan.Open {
		open = append(open, OpenLot{Lot: byID[o.LotID], OpenQuantity: o.Quantity, RemainingNativeCostFIFO: o.Cost})
	}
	return open, nil
}

// RecordDisposal records a sale and rebuilds the ticker's consumption trail.
// Nothing is written when the sale cannot be matched.
func (s *lotLedgerService) RecordDisposal(ctx context.Context, in DisposalInput) (*DisposalResult, error) {
	ticker := normalizeTicker(in.Ticker)
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Ticker is required")
	}
	if !in.Quantity.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Quantity must be positive")
	}
	if in.Proceeds.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Proceeds must not be negative")
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.WithContext(ctx)
	seq, err := nextSequence(db, &models.Transaction{})
	if err != nil {
		return nil, err
	}
	sale := models.Transaction{
		Base:     models.Base{ID: uuid.New()},
		Type:     models.TransactionTypeSale,
		Date:     dayOf(in.Date),
		Ticker:   ticker,
		Quantity: in.Quantity,
		Amount:   in.Proceeds,
		Currency: currency,
		Sequence: seq,
		Notes:    in.Notes,
	}

	plan, method, err := s.plan(ctx, ticker, nil, pending{sale: &sale})
	if err != nil {
		return nil, err
	}

	var consumptions []models.LotConsumption
	err = db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(&sale).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		var txErr error
		consumptions, txErr = rewriteConsumptions(tx, ticker, plan)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	match, _ := plan.MatchFor(sale.ID)
	result := &DisposalResult{Sale: sale, Method: method, CostBasisDKK: match.Cost}
	for _, c := range consumptions {
		if c.DisposalID == sale.ID {
			result.Consumptions = append(result.Consumptions, c)
		}
	}

	logger.Get().Infow("disposal recorded",
		"ticker", ticker,
		"date", sale.Date.Format(time.DateOnly),
		"quantity", sale.Quantity.String(),
		"method", method,
		"lots_consumed", len(result.Consumptions),
	)
	return result, nil
}

// RecordTransaction stores a dividend, withholding or other transaction.
func (s *lotLedgerService) RecordTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	if !in.Type.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Unknown transaction type %q", in.Type))
	}
	if in.Type == models.TransactionTypeSale {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Sales must be recorded as disposals")
	}
	ticker := normalizeTicker(in.Ticker)
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Ticker is required")
	}
	if in.Amount.IsNegative() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Amount must not be negative")
	}
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := &models.Transaction{
		Type:     in.Type,
		Date:     dayOf(in.Date),
		Ticker:   ticker,
		Quantity: in.Quantity,
		Amount:   in.Amount,
		Currency: currency,
		Notes:    in.Notes,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, txErr := nextSequence(tx, &models.Transaction{})
		if txErr != nil {
			return txErr
		}
		txn.Sequence = seq
		if txErr := tx.Create(txn).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ReplayTicker rebuilds the consumption trail of ticker under its
// configured method.
func (s *lotLedgerService) ReplayTicker(ctx context.Context, ticker string) (*costbasis.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replayLocked(ctx, normalizeTicker(ticker), nil)
}

// ApplyMethod replays ticker under method and stores method as the ticker's
// setting in the same transaction as the rebuilt trail.
func (s *lotLedgerService) ApplyMethod(ctx context.Context, ticker string, method costbasis.Method) (*costbasis.Plan, error) {
	if !method.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidMethod, fmt.Sprintf("unknown cost-basis method %q", method))
	}
	ticker = normalizeTicker(ticker)
	if ticker == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Ticker is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plan, err := s.replayLocked(ctx, ticker, &method)
	if err != nil {
		return nil, err
	}
	logger.Get().Infow("cost-basis method applied",
		"ticker", ticker,
		"method", method,
		"disposals_replayed", len(plan.Matches),
	)
	return plan, nil
}

// pending holds a lot or sale that is about to be written.
type pending struct {
	lot  *models.Lot
	sale *models.Transaction
}

// plan replays ticker, optionally with pending records and an overriding
// method, without writing anything.
func (s *lotLedgerService) plan(ctx context.Context, ticker string, override *costbasis.Method, p pending) (*costbasis.Plan, costbasis.Method, error) {
	db := s.db.WithContext(ctx)
	h, err := loadHistory(db, ticker)
	if err != nil {
		return nil, "", err
	}
	method := costbasis.DefaultMethod
	if override != nil {
		method = *override
	} else if method, err = loadMethod(db, ticker); err != nil {
		return nil, "", err
	}

	lots, sales := h.lots, h.sales
	if p.lot != nil {
		lots = append(append([]models.Lot(nil), lots...), *p.lot)
	}
	if p.sale != nil {
		sales = append(append([]models.Transaction(nil), sales...), *p.sale)
	}

	acqs, err := dkkAcquisitions(ctx, s.rates, lots)
	if err != nil {
		return nil, "", err
	}
	plan, err := costbasis.Replay(ticker, acqs, toDisposals(sales), method)
	if err != nil {
		return nil, "", err
	}
	return plan, method, nil
}

func (s *lotLedgerService) replayLocked(ctx context.Context, ticker string, override *costbasis.Method) (*costbasis.Plan, error) {
	plan, method, err := s.plan(ctx, ticker, override, pending{})
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if override != nil {
			setting := &models.CostBasisSetting{Ticker: ticker, Method: string(method)}
			if txErr := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "ticker"}},
				DoUpdates: clause.AssignmentColumns([]string{"method", "updated_at"}),
			}).Create(setting).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}
		_, txErr := rewriteConsumptions(tx, ticker, plan)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// rewriteConsumptions replaces the ticker's consumption rows with plan.
func rewriteConsumptions(tx *gorm.DB, ticker string, plan *costbasis.Plan) ([]models.LotConsumption, error) {
	if err := tx.Unscoped().Where("ticker = ?", ticker).Delete(&models.LotConsumption{}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var rows []models.LotConsumption
	for _, m := range plan.Matches {
		for _, c := range m.Consumptions {
			rows = append(rows, models.LotConsumption{
				DisposalID:   m.DisposalID,
				LotID:        c.LotID,
				Ticker:       ticker,
				Quantity:     c.Quantity,
				CostBasisDKK: c.Cost.Round(8),
				Method:       string(plan.Method),
			})
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rows, nil
}
