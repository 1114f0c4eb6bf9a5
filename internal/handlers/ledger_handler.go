package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"aktieskat/internal/models"
	"aktieskat/internal/services"
)

// LedgerHandler records lots, sales and other brokerage transactions.
type LedgerHandler struct {
	ledgerService services.LotLedgerServicer
	auditService  services.AuditServicer
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerService services.LotLedgerServicer, auditService services.AuditServicer) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService, auditService: auditService}
}

// CreateLotRequest represents the request payload for recording an acquisition.
type CreateLotRequest struct {
	Ticker     string           `json:"ticker" binding:"required,min=1,max=20"`
	AcquiredOn string           `json:"acquired_on" binding:"required,date_ymd" example:"2024-03-15"`
	Quantity   decimal.Decimal  `json:"quantity" binding:"gt=0" swaggertype:"string" example:"10"`
	CostBasis  decimal.Decimal  `json:"cost_basis" binding:"gte=0" swaggertype:"string" example:"1500.00"`
	Currency   string           `json:"currency" binding:"omitempty,iso4217" example:"USD"`
	Source     models.LotSource `json:"source" binding:"omitempty,lot_source" example:"rsu"`
	SevenP     bool             `json:"seven_p"`
	Notes      string           `json:"notes" binding:"max=500"`
}

// CreateDisposalRequest represents the request payload for recording a sale.
type CreateDisposalRequest struct {
	Ticker   string          `json:"ticker" binding:"required,min=1,max=20"`
	Date     string          `json:"date" binding:"required,date_ymd" example:"2024-06-03"`
	Quantity decimal.Decimal `json:"quantity" binding:"gt=0" swaggertype:"string" example:"5"`
	Proceeds decimal.Decimal `json:"proceeds" binding:"gte=0" swaggertype:"string" example:"900.00"`
	Currency string          `json:"currency" binding:"omitempty,iso4217" example:"USD"`
	Notes    string          `json:"notes" binding:"max=500"`
}

// CreateTransactionRequest represents the request payload for a dividend,
// withholding or other record.
type CreateTransactionRequest struct {
	Type     models.TransactionType `json:"type" binding:"required,transaction_type" example:"dividend"`
	Ticker   string                 `json:"ticker" binding:"required,min=1,max=20"`
	Date     string                 `json:"date" binding:"required,date_ymd" example:"2024-03-14"`
	Quantity decimal.Decimal        `json:"quantity" binding:"gte=0" swaggertype:"string"`
	Amount   decimal.Decimal        `json:"amount" binding:"gte=0" swaggertype:"string" example:"24.00"`
	Currency string                 `json:"currency" binding:"omitempty,iso4217" example:"USD"`
	Notes    string                 `json:"notes" binding:"max=500"`
}

// CreateLot handles recording an acquisition.
// @Summary     Record lot
// @Description Record an acquisition; a backdated lot rebuilds the ticker's consumption trail
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLotRequest true "Lot details"
// @Success     201 {object} models.Lot "Lot created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /lots [post]
func (h *LedgerHandler) CreateLot(c *gin.Context) {
	var req CreateLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	acquiredOn, err := parseDate("acquired_on", req.AcquiredOn)
	if err != nil {
		respondWithError(c, err)
		return
	}

	lot, err := h.ledgerService.RecordAcquisition(c.Request.Context(), services.LotInput{
		Ticker:     req.Ticker,
		AcquiredOn: acquiredOn,
		Quantity:   req.Quantity,
		CostBasis:  req.CostBasis,
		Currency:   req.Currency,
		Source:     req.Source,
		SevenP:     req.SevenP,
		Notes:      req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(getActor(c), services.AuditCreateLot, "lot", lot.ID, c.ClientIP(),
		map[string]interface{}{"ticker": lot.Ticker, "quantity": lot.Quantity.String(), "acquired_on": req.AcquiredOn})

	c.JSON(http.StatusCreated, lot)
}

// GetOpenLots handles listing a ticker's open lots.
// @Summary     Open lots
// @Description Lots of a ticker with shares left after replaying all sales
// @Tags        ledger
// @Produce     json
// @Security    BearerAuth
// @Param       ticker path string true "Ticker"
// @Success     200 {array}  services.OpenLot
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Recorded sales exceed recorded lots"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /lots/{ticker} [get]
func (h *LedgerHandler) GetOpenLots(c *gin.Context) {
	lots, err := h.ledgerService.OpenLots(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"lots": lots})
}

// CreateDisposal handles recording a sale.
// @Summary     Record sale
// @Description Record a sale and consume lots under the ticker's cost-basis method
// @Tags        ledger
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateDisposalRequest true "Sale details"
// @Success     201 {object} services.DisposalResult "Sale recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Insufficient shares or exchange rate unavailable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /disposals [post]
func (h *LedgerHandler) CreateDisposal(c *gin.Context) {
	var req CreateDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.RecordDisposal(c.Request.Context(), services.DisposalInput{
		Ticker:   req.Ticker,
		Date:     date,
		Quantity: req.Quantity,
		Proceeds: req.Proceeds,
		Currency: req.Currency,
		Notes:    req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(getActor(c), services.AuditCreateDisposal, "transaction", result.Sale.ID, c.ClientIP(),
		map[string]interface{}{"ticker": result.Sale.Ticker, "quantity": result.Sale.Quantity.String(), "method": string(result.Method)})

	c.JSON(http.StatusCreated, result)
}

// CreateTransaction handles recording a dividend, withholding or other record.
// @Summary     Record transaction
// @Description Record a dividend, withholding or other brokerage transaction
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    PipelineKey
// @Param       request body CreateTransactionRequest true "Transaction details"
// @Success     201 {object} models.Transaction "Transaction recorded"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /pipeline/transactions [post]
func (h *LedgerHandler) CreateTransaction(c *gin.Context) {
	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	txn, err := h.ledgerService.RecordTransaction(c.Request.Context(), services.TransactionInput{
		Type:     req.Type,
		Ticker:   req.Ticker,
		Date:     date,
		Quantity: req.Quantity,
		Amount:   req.Amount,
		Currency: req.Currency,
		Notes:    req.Notes,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(getActor(c), services.AuditCreateTransaction, "transaction", txn.ID, c.ClientIP(),
		map[string]interface{}{"type": string(txn.Type), "ticker": txn.Ticker, "amount": txn.Amount.String()})

	c.JSON(http.StatusCreated, txn)
}
