package handlers

import (
	"net/http"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// AdminHandler covers the admin-only surfaces that do not belong to one
// entity: the audit trail and the operations report.
type AdminHandler struct {
	BaseHandler
	audit   services.AuditService
	reports services.ReportService
}

func NewAdminHandler(audit services.AuditService, reports services.ReportService, logger utils.Logger) *AdminHandler {
	return &AdminHandler{
		BaseHandler: NewBaseHandler(logger),
		audit:       audit,
		reports:     reports,
	}
}

// AuditTrail lists audit entries for one entity
// @Summary Audit trail
// @Tags admin
// @Produce json
// @Param entity_type path string true "Entity type"
// @Param entity_id path string true "Entity ID"
// @Success 200 {object} ListResponse
// @Router /admin/audit/{entity_type}/{entity_id} [get]
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	entityType := ParseStringIDParam(c, "entity_type")
	if entityType == "" {
		return
	}
	entityID := ParseStringIDParam(c, "entity_id")
	if entityID == "" {
		return
	}
	limit, offset, page := parsePagination(c)

	entries, total, err := h.audit.ListByEntity(c.Request.Context(), entityType, entityID, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(entries, total, page, limit))
}

// OperationsReport streams the xlsx operations workbook
// @Summary Download operations report
// @Tags admin
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} binary
// @Router /admin/reports/operations [get]
func (h *AdminHandler) OperationsReport(c *gin.Context) {
	actor := auth.CurrentActor(c)

	data, name, err := h.reports.OperationsReport(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
