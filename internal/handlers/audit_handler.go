package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"aktieskat/internal/pagination"
	"aktieskat/internal/services"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	auditService services.AuditServicer
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditService services.AuditServicer) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// AuditQuery filters the audit listing.
type AuditQuery struct {
	Actor        string `form:"actor"`
	Action       string `form:"action"`
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
}

// ListAudit handles listing audit entries.
// @Summary     List audit entries
// @Description Ledger entries and setting changes, newest first
// @Tags        audit
// @Produce     json
// @Security    BearerAuth
// @Param       actor         query string false "Actor"
// @Param       action        query string false "Action, e.g. SET_EXCHANGE_RATE"
// @Param       resource_type query string false "Resource type"
// @Param       resource_id   query string false "Resource ID"
// @Param       page          query int    false "Page number (default 1)"
// @Param       page_size     query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AuditLog]
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /audit [get]
func (h *AuditHandler) ListAudit(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var q AuditQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.auditService.List(c.Request.Context(), page, services.AuditFilter(q))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
