package handlers

import (
	"net/http"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	BaseHandler
	chat services.ChatService
}

func NewChatHandler(chat services.ChatService, logger utils.Logger) *ChatHandler {
	return &ChatHandler{
		BaseHandler: NewBaseHandler(logger),
		chat:        chat,
	}
}

// ListMessages returns the case conversation in chronological order
// @Summary List chat messages
// @Tags chat
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} ListResponse
// @Failure 403 {object} ErrorResponse
// @Router /service-requests/{id}/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	limit, offset, page := parsePagination(c)

	messages, total, err := h.chat.ListMessages(c.Request.Context(), actor, id, repositories.MessageFilters{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newListResponse(messages, total, page, limit))
}

// SendMessage posts a message to the case conversation
// @Summary Send chat message
// @Tags chat
// @Accept json
// @Produce json
// @Param id path string true "Service request ID"
// @Param message body services.SendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 403 {object} ErrorResponse
// @Router /service-requests/{id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	message, err := h.chat.SendMessage(c.Request.Context(), actor, id, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// MarkMessageRead records a read receipt
// @Summary Mark message read
// @Tags chat
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} models.Message
// @Router /messages/{id}/read [put]
func (h *ChatHandler) MarkMessageRead(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	message, err := h.chat.MarkMessageRead(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// MarkMessageReadInCase is the case-scoped read receipt route; the message
// id arrives as :mid because :id already names the case there.
// @Summary Mark message read (case-scoped)
// @Tags chat
// @Produce json
// @Param id path string true "Service request ID"
// @Param mid path string true "Message ID"
// @Success 200 {object} models.Message
// @Router /chat/{id}/messages/{mid}/read [patch]
func (h *ChatHandler) MarkMessageReadInCase(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "mid")
	if id == "" {
		return
	}

	message, err := h.chat.MarkMessageRead(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// Participants lists the users on the case conversation
// @Summary List chat participants
// @Tags chat
// @Produce json
// @Param id path string true "Service request ID"
// @Success 200 {object} SuccessResponse
// @Router /service-requests/{id}/participants [get]
func (h *ChatHandler) Participants(c *gin.Context) {
	actor := auth.CurrentActor(c)
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	users, err := h.chat.Participants(c.Request.Context(), actor, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": users})
}
