package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	apperrors "aktieskat/internal/errors"
	"aktieskat/internal/logger"
	"aktieskat/internal/models"
	"aktieskat/internal/pagination"
)

// Audited actions.
const (
	AuditCreateLot          = "CREATE_LOT"
	AuditCreateDisposal     = "CREATE_DISPOSAL"
	AuditCreateTransaction  = "CREATE_TRANSACTION"
	AuditSetExchangeRate    = "SET_EXCHANGE_RATE"
	AuditSetCostBasisMethod = "SET_COST_BASIS_METHOD"
)

// AuditFilter narrows an audit listing. Empty fields match everything.
type AuditFilter struct {
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
}

type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records a change to the ledger or to settings that affect tax figures.
// Store failures are logged and never fail the change itself.
func (s *auditService) Log(actor, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      encodeChanges(action, changes),
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"actor", actor,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}

func encodeChanges(action string, changes map[string]any) string {
	if len(changes) == 0 {
		return ""
	}
	data, err := json.Marshal(changes)
	if err != nil {
		logger.Get().Warnw("unencodable audit changes", "error", err, "action", action)
		return "{}"
	}
	return string(data)
}

// List returns audit entries newest first.
func (s *auditService) List(ctx context.Context, page pagination.PageRequest, filter AuditFilter) (*pagination.PageResponse[models.AuditLog], error) {
	page.Defaults()

	query := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.AuditLog{})
		for _, f := range []struct{ column, value string }{
			{"actor", filter.Actor},
			{"action", filter.Action},
			{"resource_type", filter.ResourceType},
			{"resource_id", filter.ResourceID},
		} {
			if f.value != "" {
				q = q.Where(f.column+" = ?", f.value)
			}
		}
		return q
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var entries []models.AuditLog
	if err := query().Order("created_at DESC").Order("id DESC").Scopes(pagination.Paginate(page)).Find(&entries).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(entries, page.Page, page.PageSize, total)
	return &result, nil
}
