package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/gin-gonic/gin"
)

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := strings.TrimSpace(c.Param(param))
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "ID cannot be empty",
		})
		return ""
	}
	return idStr
}

func parseIntParam(c *gin.Context, param string) (int, bool) {
	v, err := strconv.Atoi(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: "must be an integer",
		})
		return 0, false
	}
	return v, true
}

// handleServiceError maps service errors to the HTTP error contract. Order
// matters: the typed errors carry extra payload and are checked first.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var te *services.TransitionError
	if errors.As(err, &te) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "InvalidTransition",
			"message":             te.Error(),
			"current_status":      te.Current,
			"allowed_transitions": te.Allowed,
		})
		return
	}

	var pe *services.PermissionError
	if errors.As(err, &pe) {
		body := gin.H{
			"error":   "AccessDenied",
			"message": pe.Reason,
		}
		if pe.ApprovalStatus != nil {
			body["approval_status"] = *pe.ApprovalStatus
		}
		c.JSON(http.StatusForbidden, body)
		return
	}

	var ve services.ValidationErrors
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "ValidationFailed",
			"details": ve,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated", "message": err.Error()})
	case errors.Is(err, services.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "AccountInactive", "message": err.Error()})
	case errors.Is(err, services.ErrChatDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": "ChatDisabled", "chatDisabled": true, "message": err.Error()})
	case services.IsUnauthorized(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "AccessDenied", "message": err.Error()})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "message": err.Error()})
	case services.IsConflict(err):
		c.JSON(http.StatusConflict, gin.H{"error": "Conflict", "message": err.Error()})
	case services.IsValidation(err),
		errors.Is(err, services.ErrApprovalNotPending),
		errors.Is(err, services.ErrOfferNotReceived),
		errors.Is(err, services.ErrNoSubmission),
		errors.Is(err, services.ErrTaskNotDeletable),
		errors.Is(err, services.ErrFileTooLarge),
		errors.Is(err, services.ErrUnsupportedFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": err.Error()})
	default:
		h.logger.LogError(err, "unhandled service error",
			"method", c.Request.Method, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": "internal server error"})
	}
}

func bindJSON(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return false
	}
	return true
}
