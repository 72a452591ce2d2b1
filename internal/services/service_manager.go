package services

import (
	"context"
	"fmt"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/cache"
	"github.com/EduBridge-2025/advisory-service/internal/config"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
)

// ServiceManager wires and exposes all domain services behind one handle.
type ServiceManager interface {
	Auth() AuthService
	ServiceRequests() ServiceRequestService
	Tasks() TaskService
	Applications() ApplicationService
	Chat() ChatService
	Notifications() NotificationService
	Audit() AuditService
	Uploads() UploadService
	Reports() ReportService
	Router() *EventRouter
}

type serviceManager struct {
	auth            AuthService
	serviceRequests ServiceRequestService
	tasks           TaskService
	applications    ApplicationService
	chat            ChatService
	notifications   NotificationService
	audit           AuditService
	uploads         UploadService
	reports         ReportService
	router          *EventRouter
}

// NewServiceManager builds the full service graph. The hub doubles as both
// the realtime emitter for notifications and the websocket endpoint's state.
func NewServiceManager(
	ctx context.Context,
	cfg *config.Config,
	repo repositories.Repository,
	bus *events.Bus,
	hub *realtime.Hub,
	cacheService cache.CacheService,
	tokens *auth.TokenManager,
	logger utils.Logger,
) (ServiceManager, error) {
	validator := utils.NewValidator()
	unread := cache.NewUnreadCounter(cacheService)

	auditSvc := NewAuditService(repo, logger)
	notificationSvc := NewNotificationService(repo, NewSMTPSender(cfg), hub, unread, logger)
	authSvc := NewAuthService(repo, tokens, validator, auditSvc, bus, logger)
	srSvc := NewServiceRequestService(repo, validator, auditSvc, bus, logger)
	taskSvc := NewTaskService(repo, srSvc, validator, auditSvc, bus, logger)
	appSvc := NewApplicationService(repo, notificationSvc, validator, auditSvc, bus, logger)
	chatSvc := NewChatService(repo, validator, bus, logger)
	reportSvc := NewReportService(repo, logger)
	router := NewEventRouter(bus, repo, notificationSvc, hub, logger)

	uploadSvc, err := NewUploadService(ctx, cfg, auditSvc, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload service: %w", err)
	}

	return &serviceManager{
		auth:            authSvc,
		serviceRequests: srSvc,
		tasks:           taskSvc,
		applications:    appSvc,
		chat:            chatSvc,
		notifications:   notificationSvc,
		audit:           auditSvc,
		uploads:         uploadSvc,
		reports:         reportSvc,
		router:          router,
	}, nil
}

func (m *serviceManager) Auth() AuthService                      { return m.auth }
func (m *serviceManager) ServiceRequests() ServiceRequestService { return m.serviceRequests }
func (m *serviceManager) Tasks() TaskService                     { return m.tasks }
func (m *serviceManager) Applications() ApplicationService       { return m.applications }
func (m *serviceManager) Chat() ChatService                      { return m.chat }
func (m *serviceManager) Notifications() NotificationService     { return m.notifications }
func (m *serviceManager) Audit() AuditService                    { return m.audit }
func (m *serviceManager) Uploads() UploadService                 { return m.uploads }
func (m *serviceManager) Reports() ReportService                 { return m.reports }
func (m *serviceManager) Router() *EventRouter                   { return m.router }
