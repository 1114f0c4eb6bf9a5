package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"aktieskat/internal/danishtax"
	"aktieskat/internal/services"
)

// TaxHandler computes Danish income tax.
type TaxHandler struct {
	taxService services.TaxServicer
}

// NewTaxHandler creates a new TaxHandler.
func NewTaxHandler(taxService services.TaxServicer) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

// YearTaxRequest represents the request payload for a year's tax with the
// equity amounts taken from recorded grants.
type YearTaxRequest struct {
	Salary        decimal.Decimal  `json:"salary" binding:"gte=0" swaggertype:"string" example:"800000"`
	Deductions    decimal.Decimal  `json:"deductions" binding:"gte=0" swaggertype:"string" example:"50000"`
	MunicipalRate *decimal.Decimal `json:"municipal_rate,omitempty" swaggertype:"string" example:"0.25"`
}

// Calculate handles a tax computation with explicit equity amounts.
// @Summary     Calculate tax
// @Description Compute Danish income tax including the §7P reduction
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body danishtax.Input true "Income"
// @Success     200 {object} danishtax.Result
// @Failure     400 {object} ErrorResponse "Invalid input or year"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /tax/calculate [post]
func (h *TaxHandler) Calculate(c *gin.Context) {
	var in danishtax.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.taxService.Calculate(in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ComputeForYear handles a tax computation over the recorded grants.
// @Summary     Tax for year
// @Description Compute Danish income tax with §7P amounts from the year's employer-granted lots
// @Tags        tax
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       year    path int            true "Tax year"
// @Param       request body YearTaxRequest true "Income"
// @Success     200 {object} services.TaxForYear
// @Failure     400 {object} ErrorResponse "Invalid input or year"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Exchange rate unavailable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /tax/{year} [post]
func (h *TaxHandler) ComputeForYear(c *gin.Context) {
	year, err := parseYear(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var req YearTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.taxService.ComputeForYear(c.Request.Context(), year, req.Salary, req.Deductions, req.MunicipalRate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
