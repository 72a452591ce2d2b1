package handlers

import (
	"net/http"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	BaseHandler
	applications services.ApplicationService
}

func NewApplicationHandler(applications services.ApplicationService, logger utils.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		BaseHandler:  NewBaseHandler(logger),
		applications: applications,
	}
}

// CreateByAgent opens an application for one of the agent's students
// @Summary Create application
// @Tags admissions
// @Accept json
// @Produce json
// @Param application body services.CreateApplicationRequest true "Application data"
// @Success 201 {object} models.Application
// @Failure 403 {object} ErrorResponse
// @Router /admissions [post]
func (h *ApplicationHandler) CreateByAgent(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.CreateApplicationRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.CreateByAgent(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// AssignByAdmin opens an application and hands it to a chosen agent
// @Summary Assign application to agent
// @Tags admin
// @Accept json
// @Produce json
// @Param application body services.AssignApplicationRequest true "Application data"
// @Success 201 {object} models.Application
// @Failure 400 {object} ErrorResponse
// @Router /admin/admissions [post]
func (h *ApplicationHandler) AssignByAdmin(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.AssignApplicationRequest
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.AssignByAdmin(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// Get returns one application
// @Summary Get application
// @Tags admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 404 {object} ErrorResponse
// @Router /admissions/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	app, err := h.applications.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// List returns the caller's applications, role-scoped.
// @Summary List applications
// @Tags admissions
// @Produce json
// @Success 200 {object} ListResponse
// @Router /admissions [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	actor := auth.CurrentActor(c)
	limit, offset, page := parsePagination(c)

	filters := repositories.ApplicationFilters{Limit: limit, Offset: offset}
	if status := c.Query("status"); status != "" {
		s := models.ApplicationStatus(status)
		filters.Status = &s
	}

	items, total, err := h.applications.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items, total, page, limit))
}

// UpdateStatus moves an application along the admissions pipeline
// @Summary Update application status
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 400 {object} ErrorResponse
// @Router /admissions/{id}/status [put]
func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Status models.ApplicationStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// NextStatuses lists the transitions currently open for an application
// @Summary List allowed next statuses
// @Tags admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} SuccessResponse
// @Router /admissions/{id}/next-statuses [get]
func (h *ApplicationHandler) NextStatuses(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	statuses, err := h.applications.NextStatuses(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_statuses": statuses})
}

// AcceptOffer lets the student accept a received offer
// @Summary Accept offer
// @Tags admissions
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Failure 400 {object} ErrorResponse
// @Router /admissions/{id}/accept-offer [post]
func (h *ApplicationHandler) AcceptOffer(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	app, err := h.applications.AcceptOffer(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// UploadDocument attaches an uploaded file to the application
// @Summary Attach application document
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Router /admissions/{id}/documents [post]
func (h *ApplicationHandler) UploadDocument(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var doc models.FileRef
	if !bindJSON(c, &doc) {
		return
	}

	app, err := h.applications.UploadDocument(c.Request.Context(), actor, id, doc)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// AddRemark appends an advisor remark
// @Summary Add remark
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Router /admissions/{id}/remarks [post]
func (h *ApplicationHandler) AddRemark(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Text string `json:"text" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.AddRemark(c.Request.Context(), actor, id, req.Text)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// AddChecklistItem appends a checklist item
// @Summary Add checklist item
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Router /admissions/{id}/checklist [post]
func (h *ApplicationHandler) AddChecklistItem(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Item string `json:"item" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.AddChecklistItem(c.Request.Context(), actor, id, req.Item)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ToggleChecklistItem flips a checklist item's completed flag
// @Summary Toggle checklist item
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Router /admissions/{id}/checklist/{index} [put]
func (h *ApplicationHandler) ToggleChecklistItem(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	index, ok := parseIntParam(c, "index")
	if !ok {
		return
	}

	var req struct {
		Completed bool `json:"completed"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.ToggleChecklistItem(c.Request.Context(), actor, id, index, req.Completed)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// ToggleChecklist is the flat checklist route; the item index arrives in the
// body instead of the path.
// @Summary Toggle checklist item (index in body)
// @Tags admissions
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} models.Application
// @Router /admissions/agent/{id}/checklist [patch]
func (h *ApplicationHandler) ToggleChecklist(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Index     int  `json:"index"`
		Completed bool `json:"completed"`
	}
	if !bindJSON(c, &req) {
		return
	}

	app, err := h.applications.ToggleChecklistItem(c.Request.Context(), actor, id, req.Index, req.Completed)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// Delete soft-deletes an application
// @Summary Delete application
// @Tags admin
// @Param id path string true "Application ID"
// @Success 200 {object} SuccessResponse
// @Router /admin/admissions/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.applications.SoftDelete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "application deleted"})
}
