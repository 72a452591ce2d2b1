package handlers

import (
	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/services"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	authHandler           *AuthHandler
	serviceRequestHandler *ServiceRequestHandler
	taskHandler           *TaskHandler
	applicationHandler    *ApplicationHandler
	chatHandler           *ChatHandler
	notificationHandler   *NotificationHandler
	uploadHandler         *UploadHandler
	adminHandler          *AdminHandler
	realtimeHandler       *RealtimeHandler

	tokens *auth.TokenManager
	loader auth.UserLoader
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	hub *realtime.Hub,
	tokens *auth.TokenManager,
	logger utils.Logger,
) *HandlerManager {
	loader := serviceManager.Auth()
	return &HandlerManager{
		authHandler:           NewAuthHandler(serviceManager.Auth(), logger),
		serviceRequestHandler: NewServiceRequestHandler(serviceManager.ServiceRequests(), logger),
		taskHandler:           NewTaskHandler(serviceManager.Tasks(), logger),
		applicationHandler:    NewApplicationHandler(serviceManager.Applications(), logger),
		chatHandler:           NewChatHandler(serviceManager.Chat(), logger),
		notificationHandler:   NewNotificationHandler(serviceManager.Notifications(), logger),
		uploadHandler:         NewUploadHandler(serviceManager.Uploads(), serviceManager.Tasks(), serviceManager.ServiceRequests(), logger),
		adminHandler:          NewAdminHandler(serviceManager.Audit(), serviceManager.Reports(), logger),
		realtimeHandler:       NewRealtimeHandler(hub, tokens, loader, logger),
		tokens:                tokens,
		loader:                loader,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "advisory-service",
		})
	})

	// Websocket endpoint authenticates via query token inside the handler.
	router.GET("/realtime", hm.realtimeHandler.Connect)

	// /api is a versionless alias of /api/v1.
	for _, base := range []string{"/api", "/api/v1"} {
		hm.registerAPIRoutes(router.Group(base))
	}
}

func (hm *HandlerManager) registerAPIRoutes(v1 *gin.RouterGroup) {
	// Public auth routes
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", hm.authHandler.Signup)
		authRoutes.POST("/login", hm.authHandler.Login)
	}

	// Everything below requires a bearer token.
	authed := v1.Group("")
	authed.Use(auth.Middleware(hm.tokens, hm.loader))
	{
		authed.GET("/auth/me", hm.authHandler.Me)

		serviceRequests := authed.Group("/service-requests")
		{
			serviceRequests.POST("", hm.serviceRequestHandler.Create)
			serviceRequests.GET("", hm.serviceRequestHandler.List)
			serviceRequests.GET("/:id", hm.serviceRequestHandler.Get)
			serviceRequests.PUT("/:id/status", hm.serviceRequestHandler.UpdateStatus)
			serviceRequests.PATCH("/:id/status", hm.serviceRequestHandler.UpdateStatus)
			serviceRequests.PUT("/:id/progress", hm.serviceRequestHandler.UpdateProgress)
			serviceRequests.PATCH("/:id/progress", hm.serviceRequestHandler.UpdateProgress)
			serviceRequests.PUT("/:id/deadline", hm.serviceRequestHandler.UpdateDeadline)
			serviceRequests.PATCH("/:id/deadline", hm.serviceRequestHandler.UpdateDeadline)
			serviceRequests.PUT("/:id/priority", hm.serviceRequestHandler.UpdatePriority)
			serviceRequests.PATCH("/:id/priority", hm.serviceRequestHandler.UpdatePriority)
			serviceRequests.POST("/:id/notes", hm.serviceRequestHandler.AddNote)
			serviceRequests.POST("/:id/documents", hm.serviceRequestHandler.AttachDocument)

			// Per-case conversation
			serviceRequests.GET("/:id/messages", hm.chatHandler.ListMessages)
			serviceRequests.POST("/:id/messages", hm.chatHandler.SendMessage)
			serviceRequests.GET("/:id/participants", hm.chatHandler.Participants)
		}

		authed.PUT("/messages/:id/read", hm.chatHandler.MarkMessageRead)
		authed.PUT("/students/me/documents", hm.authHandler.SetStudentDocument)

		// Case-scoped chat aliases. :id names the case, :mid the message.
		chat := authed.Group("/chat/:id")
		{
			chat.GET("/messages", hm.chatHandler.ListMessages)
			chat.POST("/messages", hm.chatHandler.SendMessage)
			chat.PATCH("/messages/:mid/read", hm.chatHandler.MarkMessageReadInCase)
			chat.GET("/participants", hm.chatHandler.Participants)
		}

		tasks := authed.Group("/tasks")
		{
			tasks.POST("", hm.taskHandler.Create)
			tasks.GET("", hm.taskHandler.List)
			tasks.GET("/:id", hm.taskHandler.Get)
			tasks.POST("/:id/submit", hm.taskHandler.Submit)
			tasks.POST("/:id/review", hm.taskHandler.Review)
			tasks.PUT("/:id/status", hm.taskHandler.UpdateStatus)
			tasks.PATCH("/:id/status", hm.taskHandler.UpdateStatus)
			tasks.DELETE("/:id", hm.taskHandler.Delete)
		}

		admissions := authed.Group("/admissions")
		{
			admissions.POST("", hm.applicationHandler.CreateByAgent)
			admissions.GET("", hm.applicationHandler.List)
			admissions.GET("/:id", hm.applicationHandler.Get)
			admissions.PUT("/:id/status", hm.applicationHandler.UpdateStatus)
			admissions.GET("/:id/next-statuses", hm.applicationHandler.NextStatuses)
			admissions.POST("/:id/accept-offer", hm.applicationHandler.AcceptOffer)
			admissions.POST("/:id/documents", hm.applicationHandler.UploadDocument)
			admissions.POST("/:id/remarks", hm.applicationHandler.AddRemark)
			admissions.POST("/:id/checklist", hm.applicationHandler.AddChecklistItem)
			admissions.PUT("/:id/checklist/:index", hm.applicationHandler.ToggleChecklistItem)

			// Role-prefixed aliases. The service already scopes reads and
			// writes by role, so the prefixes share handlers.
			admissions.POST("/agent/create", hm.applicationHandler.CreateByAgent)
			admissions.POST("/admin/assign", auth.RequireRole(models.RoleSuperAdmin), hm.applicationHandler.AssignByAdmin)
			admissions.POST("/student/:id/accept-offer", hm.applicationHandler.AcceptOffer)
			for _, scope := range []string{"/agent", "/student", "/admin"} {
				admissions.GET(scope, hm.applicationHandler.List)
				admissions.GET(scope+"/:id", hm.applicationHandler.Get)
				admissions.PATCH(scope+"/:id/status", hm.applicationHandler.UpdateStatus)
				admissions.POST(scope+"/:id/upload-doc", hm.applicationHandler.UploadDocument)
				admissions.POST(scope+"/:id/remark", hm.applicationHandler.AddRemark)
				admissions.PATCH(scope+"/:id/checklist", hm.applicationHandler.ToggleChecklist)
			}
		}

		notifications := authed.Group("/notifications")
		{
			notifications.GET("", hm.notificationHandler.List)
			notifications.GET("/unread-count", hm.notificationHandler.UnreadCount)
			notifications.PUT("/mark-all-read", hm.notificationHandler.MarkAllAsRead)
			notifications.PATCH("/mark-all-read", hm.notificationHandler.MarkAllAsRead)
			notifications.PUT("/:id/read", hm.notificationHandler.MarkAsRead)
			notifications.PATCH("/:id/read", hm.notificationHandler.MarkAsRead)
			notifications.PUT("/:id/archive", hm.notificationHandler.Archive)
			notifications.DELETE("/:id", hm.notificationHandler.Delete)
		}

		uploads := authed.Group("/uploads")
		{
			uploads.POST("/file", hm.uploadHandler.UploadFile)
			uploads.POST("/files", hm.uploadHandler.UploadFiles)
			uploads.POST("/presign", hm.uploadHandler.PresignUpload)
			uploads.GET("/presign", hm.uploadHandler.PresignDownload)
		}

		// Singular /upload aliases, including the entity-scoped forms.
		upload := authed.Group("/upload")
		{
			upload.POST("/file", hm.uploadHandler.UploadFile)
			upload.POST("/files", hm.uploadHandler.UploadFiles)
			upload.POST("/task/:taskId", hm.uploadHandler.UploadForTask)
			upload.POST("/service-request/:srId", hm.uploadHandler.UploadForServiceRequest)
		}

		// Agent surfaces
		agents := authed.Group("/agents")
		agents.Use(auth.RequireRole(models.RoleAgent, models.RoleSuperAdmin))
		{
			agents.POST("/students", hm.authHandler.CreateReferredStudent)

			// Agent-facing case aliases.
			cases := agents.Group("/cases/:id")
			{
				cases.PATCH("/status", hm.serviceRequestHandler.UpdateStatus)
				cases.PATCH("/progress", hm.serviceRequestHandler.UpdateProgress)
				cases.PATCH("/deadline", hm.serviceRequestHandler.UpdateDeadline)
				cases.PATCH("/priority", hm.serviceRequestHandler.UpdatePriority)
				cases.POST("/tasks", hm.taskHandler.CreateForCase)
			}
		}

		// Admin surfaces
		admin := authed.Group("/admin")
		admin.Use(auth.RequireRole(models.RoleSuperAdmin))
		{
			admin.GET("/users", hm.authHandler.ListUsers)
			admin.POST("/users", hm.authHandler.CreateUser)
			admin.PUT("/users/:id/active", hm.authHandler.SetUserActive)

			admin.PUT("/service-requests/:id/assign", hm.serviceRequestHandler.Assign)
			admin.POST("/service-requests/:id/assign", hm.serviceRequestHandler.Assign)
			admin.PUT("/service-requests/:id/approve", hm.serviceRequestHandler.ApproveReferral)
			admin.PUT("/service-requests/:id/reject", hm.serviceRequestHandler.RejectReferral)

			admin.POST("/admissions", hm.applicationHandler.AssignByAdmin)
			admin.DELETE("/admissions/:id", hm.applicationHandler.Delete)

			admin.POST("/notifications/broadcast", hm.notificationHandler.Broadcast)

			admin.GET("/audit/:entity_type/:entity_id", hm.adminHandler.AuditTrail)
			admin.GET("/reports/operations", hm.adminHandler.OperationsReport)
			admin.DELETE("/uploads/*public_id", hm.uploadHandler.Delete)
		}
	}
}
