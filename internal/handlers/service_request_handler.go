package handlers

import (
	"net/http"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ServiceRequestHandler struct {
	BaseHandler
	serviceRequests services.ServiceRequestService
}

func NewServiceRequestHandler(serviceRequests services.ServiceRequestService, logger utils.Logger) *ServiceRequestHandler {
	return &ServiceRequestHandler{
		BaseHandler:     NewBaseHandler(logger),
		serviceRequests: serviceRequests,
	}
}

// Create opens a new case: students apply for a service, agents refer one of
// their students.
// @Summary Create service request
// @Tags service-requests
// @Accept json
// @Produce json
// @Param request body services.CreateServiceRequestRequest true "Request data"
// @Success 201 {object} models.ServiceRequest
// @Failure 409 {object} ErrorResponse
// @Router /service-requests [post]
func (h *ServiceRequestHandler) Create(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.CreateServiceRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sr)
}

// Get returns one case
// @Summary Get service request
// @Tags service-requests
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Failure 404 {object} ErrorResponse
// @Router /service-requests/{id} [get]
func (h *ServiceRequestHandler) Get(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	sr, err := h.serviceRequests.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// List returns the caller's case queue, role-scoped.
// @Summary List service requests
// @Tags service-requests
// @Produce json
// @Success 200 {object} ListResponse
// @Router /service-requests [get]
func (h *ServiceRequestHandler) List(c *gin.Context) {
	actor := auth.CurrentActor(c)
	limit, offset, page := parsePagination(c)

	filters := repositories.ServiceRequestFilters{Limit: limit, Offset: offset}
	if status := c.Query("status"); status != "" {
		s := models.ServiceRequestStatus(status)
		filters.Status = &s
	}
	if serviceType := c.Query("service_type"); serviceType != "" {
		t := models.ServiceType(serviceType)
		filters.ServiceType = &t
	}
	if priority := c.Query("priority"); priority != "" {
		p := models.Priority(priority)
		filters.Priority = &p
	}

	items, total, err := h.serviceRequests.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items, total, page, limit))
}

// Assign sets the counselor and/or agent on a case
// @Summary Assign service request
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Param assignment body services.AssignRequest true "Assignment"
// @Success 200 {object} models.ServiceRequest
// @Failure 400 {object} ErrorResponse
// @Router /admin/service-requests/{id}/assign [put]
func (h *ServiceRequestHandler) Assign(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.AssignRequest
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.Assign(c.Request.Context(), actor, id, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// UpdateStatus moves a case through the status machine
// @Summary Update case status
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Failure 400 {object} ErrorResponse
// @Router /service-requests/{id}/status [put]
func (h *ServiceRequestHandler) UpdateStatus(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Status models.ServiceRequestStatus `json:"status" binding:"required"`
		Note   string                      `json:"note"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.UpdateStatus(c.Request.Context(), actor, id, req.Status, req.Note)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// UpdateProgress moves the progress percentage; lowering it is a silent no-op
// and 100 completes the case.
// @Summary Update case progress
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Router /service-requests/{id}/progress [put]
func (h *ServiceRequestHandler) UpdateProgress(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Progress int `json:"progress"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.UpdateProgress(c.Request.Context(), actor, id, req.Progress)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// UpdateDeadline sets the case deadline
// @Summary Update case deadline
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Router /service-requests/{id}/deadline [put]
func (h *ServiceRequestHandler) UpdateDeadline(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Deadline time.Time `json:"deadline" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.UpdateDeadline(c.Request.Context(), actor, id, req.Deadline)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// UpdatePriority sets the case priority
// @Summary Update case priority
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Router /service-requests/{id}/priority [put]
func (h *ServiceRequestHandler) UpdatePriority(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Priority models.Priority `json:"priority" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.UpdatePriority(c.Request.Context(), actor, id, req.Priority)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// AddNote appends a case note
// @Summary Add case note
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Router /service-requests/{id}/notes [post]
func (h *ServiceRequestHandler) AddNote(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Text     string `json:"text" binding:"required"`
		Internal bool   `json:"internal"`
	}
	if !bindJSON(c, &req) {
		return
	}

	sr, err := h.serviceRequests.AddNote(c.Request.Context(), actor, id, req.Text, req.Internal)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// AttachDocument links an uploaded file to the case
// @Summary Attach case document
// @Tags service-requests
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Router /service-requests/{id}/documents [post]
func (h *ServiceRequestHandler) AttachDocument(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var file models.FileRef
	if !bindJSON(c, &file) {
		return
	}

	sr, err := h.serviceRequests.AttachDocument(c.Request.Context(), actor, id, file)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// ApproveReferral clears an agent-initiated case for work
// @Summary Approve agent referral
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Failure 400 {object} ErrorResponse
// @Router /admin/service-requests/{id}/approve [put]
func (h *ServiceRequestHandler) ApproveReferral(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&req) // body optional

	sr, err := h.serviceRequests.ApproveReferral(c.Request.Context(), actor, id, req.Notes)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}

// RejectReferral declines an agent-initiated case
// @Summary Reject agent referral
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} models.ServiceRequest
// @Failure 400 {object} ErrorResponse
// @Router /admin/service-requests/{id}/reject [put]
func (h *ServiceRequestHandler) RejectReferral(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	sr, err := h.serviceRequests.RejectReferral(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sr)
}
