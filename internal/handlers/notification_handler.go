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

type NotificationHandler struct {
	BaseHandler
	notifications services.NotificationService
}

func NewNotificationHandler(notifications services.NotificationService, logger utils.Logger) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler:   NewBaseHandler(logger),
		notifications: notifications,
	}
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Success 200 {object} ListResponse
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	actor := auth.CurrentActor(c)
	limit, offset, page := parsePagination(c)

	filters := repositories.NotificationFilters{Limit: limit, Offset: offset}
	if isRead := c.Query("is_read"); isRead != "" {
		v := isRead == "true"
		filters.IsRead = &v
	}
	if archived := c.Query("is_archived"); archived != "" {
		v := archived == "true"
		filters.IsArchived = &v
	}
	if notifType := c.Query("type"); notifType != "" {
		t := models.NotificationType(notifType)
		filters.Type = &t
	}

	items, total, err := h.notifications.List(c.Request.Context(), actor.ID(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(items, total, page, limit))
}

// UnreadCount returns the badge count
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	actor := auth.CurrentActor(c)

	count, err := h.notifications.UnreadCount(c.Request.Context(), actor.ID())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkAsRead marks one notification read
// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} models.Notification
// @Router /notifications/{id}/read [put]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	notification, err := h.notifications.MarkAsRead(c.Request.Context(), id, actor.ID())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, notification)
}

// MarkAllAsRead marks the caller's whole inbox read
// @Summary Mark all notifications read
// @Tags notifications
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /notifications/mark-all-read [put]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	actor := auth.CurrentActor(c)

	updated, err := h.notifications.MarkAllAsRead(c.Request.Context(), actor.ID())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// Archive toggles the archived flag
// @Summary Archive notification
// @Tags notifications
// @Accept json
// @Param id path string true "Notification ID"
// @Success 200 {object} SuccessResponse
// @Router /notifications/{id}/archive [put]
func (h *NotificationHandler) Archive(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req struct {
		Archived bool `json:"archived"`
	}
	if !bindJSON(c, &req) {
		return
	}

	if err := h.notifications.Archive(c.Request.Context(), id, actor.ID(), req.Archived); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "notification updated"})
}

// Delete removes a notification
// @Summary Delete notification
// @Tags notifications
// @Param id path string true "Notification ID"
// @Success 200 {object} SuccessResponse
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Delete(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), id, actor.ID()); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "notification deleted"})
}

// Broadcast sends an admin notification to a target audience
// @Summary Send broadcast
// @Tags admin
// @Accept json
// @Produce json
// @Param broadcast body services.BroadcastRequest true "Broadcast"
// @Success 200 {object} services.BroadcastReport
// @Failure 400 {object} ErrorResponse
// @Router /admin/notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	actor := auth.CurrentActor(c)

	var req services.BroadcastRequest
	if !bindJSON(c, &req) {
		return
	}

	report, err := h.notifications.Broadcast(c.Request.Context(), actor.ID(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
