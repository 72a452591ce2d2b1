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

type TaskHandler struct {
	BaseHandler
	tasks services.TaskService
}

func NewTaskHandler(tasks services.TaskService, logger utils.Logger) *TaskHandler {
	return &TaskHandler{
		BaseHandler: NewBaseHandler(logger),
		tasks:       tasks,
	}
}

// Create assigns a new task on a case
// @Summary Create task
// @Tags tasks
// @Accept json
// @Produce json
// @Param task body services.CreateTaskRequest true "Task data"
// @Success 201 {object} models.Task
// @Failure 403 {object} ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// CreateForCase creates a task on the case named in the path; any case id in
// the body is ignored.
// @Summary Create task on a case
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Param task body services.CreateTaskRequest true "Task data"
// @Success 201 {object} models.Task
// @Failure 403 {object} ErrorResponse
// @Router /agents/cases/{id}/tasks [post]
func (h *TaskHandler) CreateForCase(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	req.ServiceRequestID = id

	task, err := h.tasks.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// Get returns one task
// @Summary Get task
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Failure 404 {object} ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// List returns the caller's tasks, role-scoped.
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Success 200 {object} ListResponse
// @Router /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	actor := auth.CurrentActor(c)
	limit, offset, page := parsePagination(c)

	filters := repositories.TaskFilters{Limit: limit, Offset: offset}
	if srID := c.Query("service_request_id"); srID != "" {
		filters.ServiceRequestID = &srID
	}
	if status := c.Query("status"); status != "" {
		s := models.TaskStatus(status)
		filters.Status = &s
	}

	items, total, err := h.tasks.List(c.Request.Context(), actor, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items, total, page, limit))
}

// Submit records the assignee's work and moves the task to review
// @Summary Submit task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param submission body services.SubmitTaskRequest true "Submission"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id}/submit [post]
func (h *TaskHandler) Submit(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.SubmitTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Submit(c.Request.Context(), actor, id, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Review closes or returns a submitted task
// @Summary Review task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param review body services.ReviewTaskRequest true "Review"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id}/review [post]
func (h *TaskHandler) Review(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.ReviewTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.Review(c.Request.Context(), actor, id, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// UpdateStatus moves a task through the remaining transitions
// @Summary Update task status
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} models.Task
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id}/status [put]
func (h *TaskHandler) UpdateStatus(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Status models.TaskStatus `json:"status" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	task, err := h.tasks.UpdateStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Delete removes a task that has not been submitted yet
// @Summary Delete task
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.tasks.Delete(c.Request.Context(), actor, id); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "task deleted"})
}
