package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aktieskat/internal/costbasis"
	"aktieskat/internal/services"
)

// SettingsHandler manages per-ticker cost-basis methods.
type SettingsHandler struct {
	costBasisService services.CostBasisServicer
	auditService     services.AuditServicer
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(costBasisService services.CostBasisServicer, auditService services.AuditServicer) *SettingsHandler {
	return &SettingsHandler{costBasisService: costBasisService, auditService: auditService}
}

// SetCostBasisRequest represents the request payload for switching method.
type SetCostBasisRequest struct {
	Method string `json:"method" binding:"required,cost_basis_method" example:"average-cost"`
}

// CostBasisSettings lists the configured methods.
type CostBasisSettings struct {
	Default costbasis.Method            `json:"default"`
	Tickers map[string]costbasis.Method `json:"tickers"`
	Methods []costbasis.Method          `json:"methods"`
}

// GetCostBasis handles listing cost-basis methods.
// @Summary     Cost-basis settings
// @Description Configured cost-basis method per ticker; unlisted tickers use the default
// @Tags        settings
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} CostBasisSettings
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settings/cost-basis [get]
func (h *SettingsHandler) GetCostBasis(c *gin.Context) {
	methods, err := h.costBasisService.Methods(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	tickers := make(map[string]costbasis.Method, len(methods))
	for t, m := range methods {
		tickers[t] = m
	}
	c.JSON(http.StatusOK, CostBasisSettings{
		Default: costbasis.DefaultMethod,
		Tickers: tickers,
		Methods: []costbasis.Method{costbasis.LotBased, costbasis.AverageCost},
	})
}

// SetCostBasis handles switching the method of a ticker.
// @Summary     Set cost-basis method
// @Description Switch a ticker's method and replay its sales under it
// @Tags        settings
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       ticker  path string              true "Ticker"
// @Param       request body SetCostBasisRequest true "Method"
// @Success     200 {object} costbasis.Plan "Replayed history"
// @Failure     400 {object} ErrorResponse "Invalid method"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     422 {object} ErrorResponse "History cannot be replayed"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /settings/cost-basis/{ticker} [put]
func (h *SettingsHandler) SetCostBasis(c *gin.Context) {
	var req SetCostBasisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	plan, err := h.costBasisService.SetMethod(c.Request.Context(), c.Param("ticker"), req.Method)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(getActor(c), services.AuditSetCostBasisMethod, "ticker", plan.Ticker, c.ClientIP(),
		map[string]interface{}{"method": string(plan.Method)})

	c.JSON(http.StatusOK, plan)
}
