package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/services"
)

// ReportHandler serves the yearly tax reports and current positions.
type ReportHandler struct {
	gainsService     services.CapitalGainsServicer
	dividendsService services.DividendTaxServicer
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(gainsService services.CapitalGainsServicer, dividendsService services.DividendTaxServicer) *ReportHandler {
	return &ReportHandler{gainsService: gainsService, dividendsService: dividendsService}
}

// GetCapitalGains handles the capital gains report.
// @Summary     Capital gains report
// @Description Realized gains and losses in DKK for a tax year, one line per consumed lot
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year path int true "Tax year"
// @Success     200 {object} services.CapitalGainsReport
// @Failure     400 {object} ErrorResponse "Invalid year"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Exchange rate unavailable or insufficient shares"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/capital-gains/{year} [get]
func (h *ReportHandler) GetCapitalGains(c *gin.Context) {
	year, err := parseYear(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.gainsService.Generate(c.Request.Context(), year)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetDividends handles the dividend tax report.
// @Summary     Dividend tax report
// @Description Dividend income, withholding and Danish tax in DKK for a tax year
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Param       year         path  int    true  "Tax year"
// @Param       us_person    query bool   false "Holder is a US person"
// @Param       irs_tax_paid query string false "US tax paid on the dividends, in DKK"
// @Success     200 {object} services.DividendTaxReport
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Exchange rate unavailable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /reports/dividends/{year} [get]
func (h *ReportHandler) GetDividends(c *gin.Context) {
	year, err := parseYear(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	usPerson := false
	if v := c.Query("us_person"); v != "" {
		usPerson, err = strconv.ParseBool(v)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid us_person"))
			return
		}
	}

	irsTaxPaid, err := parseOptionalDecimal(c, "irs_tax_paid")
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.dividendsService.Generate(c.Request.Context(), year, usPerson, irsTaxPaid)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetPositions handles the open positions listing.
// @Summary     Portfolio positions
// @Description Open quantity and DKK cost basis per ticker under its cost-basis method
// @Tags        reports
// @Produce     json
// @Security    BearerAuth
// @Success     200 {array}  services.Position
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "Exchange rate unavailable"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /portfolio/positions [get]
func (h *ReportHandler) GetPositions(c *gin.Context) {
	positions, err := h.gainsService.GetPortfolioPositions(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}
