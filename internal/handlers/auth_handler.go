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

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
	}
}

// Signup registers a new account
// @Summary Register account
// @Tags auth
// @Accept json
// @Produce json
// @Param signup body services.SignupRequest true "Signup data"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Signup(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login exchanges credentials for a token
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param login body services.LoginRequest true "Credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Me returns the authenticated profile
// @Summary Current profile
// @Tags auth
// @Produce json
// @Success 200 {object} services.ProfileResponse
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor := auth.CurrentActor(c)
	resp, err := h.authService.Me(c.Request.Context(), actor)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateReferredStudent opens a student account under the calling agent
// @Summary Refer a student account
// @Tags agents
// @Accept json
// @Produce json
// @Param student body services.ReferredStudentRequest true "Student data"
// @Success 201 {object} services.ProfileResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /agents/students [post]
func (h *AuthHandler) CreateReferredStudent(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.ReferredStudentRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.CreateReferredStudent(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// SetStudentDocument stores an uploaded file URL in a named profile slot
// @Summary Set a student document slot
// @Tags students
// @Accept json
// @Produce json
// @Success 200 {object} models.Student
// @Failure 400 {object} ErrorResponse
// @Router /students/me/documents [put]
func (h *AuthHandler) SetStudentDocument(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req struct {
		Slot string `json:"slot" binding:"required"`
		URL  string `json:"url" binding:"required"`
	}
	if !bindJSON(c, &req) {
		return
	}

	student, err := h.authService.SetStudentDocument(c.Request.Context(), actor, req.Slot, req.URL)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

// CreateUser provisions an account of any role
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Param user body services.AdminCreateUserRequest true "User data"
// @Success 201 {object} services.ProfileResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/users [post]
func (h *AuthHandler) CreateUser(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.AdminCreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.CreateUser(c.Request.Context(), actor, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ListUsers lists accounts for the admin console
// @Summary List users
// @Tags admin
// @Produce json
// @Success 200 {object} ListResponse
// @Router /admin/users [get]
func (h *AuthHandler) ListUsers(c *gin.Context) {
	limit, offset, page := parsePagination(c)

	filters := repositories.UserFilters{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filters.Role = &r
	}
	if active := c.Query("is_active"); active != "" {
		v := active == "true"
		filters.IsActive = &v
	}

	users, total, err := h.authService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(users, total, page, limit))
}

// SetUserActive activates or deactivates an account
// @Summary Toggle account active state
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} SuccessResponse
// @Router /admin/users/{id}/active [put]
func (h *AuthHandler) SetUserActive(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.SetUserActive(c.Request.Context(), actor, id, req.IsActive); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "user updated"})
}
