package handlers

import (
	"net/http"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type RealtimeHandler struct {
	BaseHandler
	hub      *realtime.Hub
	tokens   *auth.TokenManager
	loader   auth.UserLoader
	upgrader websocket.Upgrader
}

func NewRealtimeHandler(hub *realtime.Hub, tokens *auth.TokenManager, loader auth.UserLoader, logger utils.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		BaseHandler: NewBaseHandler(logger),
		hub:         hub,
		tokens:      tokens,
		loader:      loader,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin checks are handled by the CORS layer in front.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Connect upgrades to a websocket. Browsers cannot set headers on websocket
// dials, so the token arrives as a query parameter instead.
// @Summary Realtime connection
// @Tags realtime
// @Param token query string true "Bearer token"
// @Success 101
// @Failure 401 {object} ErrorResponse
// @Router /realtime [get]
func (h *RealtimeHandler) Connect(c *gin.Context) {
	actor, ok := h.resolveActor(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.LogError(c, err, "websocket upgrade failed", "user_id", actor.ID())
		return
	}

	client := realtime.NewClient(h.hub, conn, actor)
	go client.Run(c.Request.Context())
}

func (h *RealtimeHandler) resolveActor(c *gin.Context) (*auth.Actor, bool) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthenticated"})
		return nil, false
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthenticated"})
		return nil, false
	}

	user, err := h.loader.GetUserByID(c.Request.Context(), claims.UserID)
	if err != nil || user == nil || !user.IsActive {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthenticated"})
		return nil, false
	}

	actor := &auth.Actor{User: user}
	if user.Role == models.RoleStudent {
		student, err := h.loader.GetStudentByUserID(c.Request.Context(), user.ID)
		if err != nil || student == nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "Unauthenticated"})
			return nil, false
		}
		actor.Student = student
	}
	return actor, true
}
