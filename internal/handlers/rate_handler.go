package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"aktieskat/internal/pagination"
	"aktieskat/internal/services"
)

// RateHandler serves USD to DKK exchange rates.
type RateHandler struct {
	rateService  services.ExchangeRateServicer
	auditService services.AuditServicer
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(rateService services.ExchangeRateServicer, auditService services.AuditServicer) *RateHandler {
	return &RateHandler{rateService: rateService, auditService: auditService}
}

// SetRateRequest represents the request payload for a manual rate.
type SetRateRequest struct {
	Rate decimal.Decimal `json:"rate" binding:"gt=0" swaggertype:"string" example:"6.8912"`
}

// PrefetchRequest represents the request payload for prefetching rates.
type PrefetchRequest struct {
	Start string `json:"start" binding:"required,date_ymd" example:"2024-01-01"`
	End   string `json:"end" binding:"required,date_ymd" example:"2024-12-31"`
}

// ListRates handles listing stored rates.
// @Summary     List rates
// @Description Stored exchange rates, oldest first
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Param       from      query string false "First date (YYYY-MM-DD)"
// @Param       to        query string false "Last date (YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.ExchangeRate]
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rates [get]
func (h *RateHandler) ListRates(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	from, err := parseOptionalDate(c, "from")
	if err != nil {
		respondWithError(c, err)
		return
	}
	to, err := parseOptionalDate(c, "to")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.rateService.ListRates(c.Request.Context(), page, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetRate handles resolving the rate of one date.
// @Summary     Get rate
// @Description Resolve the rate used for a date, fetching it upstream when missing
// @Tags        rates
// @Produce     json
// @Security    BearerAuth
// @Param       date path string true "Date (YYYY-MM-DD)"
// @Success     200 {object} services.RateQuote
// @Failure     400 {object} ErrorResponse "Invalid date"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Exchange rate unavailable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rates/{date} [get]
func (h *RateHandler) GetRate(c *gin.Context) {
	date, err := parseDate("date", c.Param("date"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	quote, err := h.rateService.Lookup(c.Request.Context(), date)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, quote)
}

// SetRate handles storing a manual rate.
// @Summary     Set manual rate
// @Description Store a manual rate for a date; manual rates are never overwritten by fetched ones
// @Tags        rates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       date    path string         true "Date (YYYY-MM-DD)"
// @Param       request body SetRateRequest true "Rate"
// @Success     200 {object} models.ExchangeRate
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rates/{date} [put]
func (h *RateHandler) SetRate(c *gin.Context) {
	date, err := parseDate("date", c.Param("date"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req SetRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	rate, err := h.rateService.SetManualRate(c.Request.Context(), date, req.Rate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(getActor(c), services.AuditSetExchangeRate, "exchange_rate", c.Param("date"), c.ClientIP(),
		map[string]interface{}{"rate": rate.Rate.String()})

	c.JSON(http.StatusOK, rate)
}

// Prefetch handles warming the rate store for a date range.
// @Summary     Prefetch rates
// @Description Fetch and store every missing rate in a date range
// @Tags        rates
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body PrefetchRequest true "Date range"
// @Success     200 {object} map[string]int "Number of rates stored"
// @Failure     400 {object} ErrorResponse "Invalid range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /rates/prefetch [post]
func (h *RateHandler) Prefetch(c *gin.Context) {
	var req PrefetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	start, err := parseDate("start", req.Start)
	if err != nil {
		respondWithError(c, err)
		return
	}
	end, err := parseDate("end", req.End)
	if err != nil {
		respondWithError(c, err)
		return
	}

	stored, err := h.rateService.PrefetchRange(c.Request.Context(), start, end)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stored": stored})
}
