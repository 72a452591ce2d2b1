package services

import (
	"context"
	"fmt"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
)

// ApplicationService manages university applications through the admissions
// pipeline: document collection, submission, offer and visa stages.
type ApplicationService interface {
	CreateByAgent(ctx context.Context, agent *auth.Actor, req CreateApplicationRequest) (*models.Application, error)
	AssignByAdmin(ctx context.Context, admin *auth.Actor, req AssignApplicationRequest) (*models.Application, error)

	Get(ctx context.Context, actor *auth.Actor, id string) (*models.Application, error)
	List(ctx context.Context, actor *auth.Actor, filters repositories.ApplicationFilters) ([]*models.Application, int64, error)

	UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.ApplicationStatus) (*models.Application, error)
	NextStatuses(ctx context.Context, actor *auth.Actor, id string) ([]models.ApplicationStatus, error)
	AcceptOffer(ctx context.Context, student *auth.Actor, id string) (*models.Application, error)

	UploadDocument(ctx context.Context, actor *auth.Actor, id string, doc models.FileRef) (*models.Application, error)
	AddRemark(ctx context.Context, actor *auth.Actor, id string, text string) (*models.Application, error)
	AddChecklistItem(ctx context.Context, actor *auth.Actor, id string, item string) (*models.Application, error)
	ToggleChecklistItem(ctx context.Context, actor *auth.Actor, id string, index int, completed bool) (*models.Application, error)

	SoftDelete(ctx context.Context, admin *auth.Actor, id string) error
}

type applicationService struct {
	repo          repositories.Repository
	notifications NotificationService
	validator     *utils.Validator
	audit         AuditService
	publisher     events.Publisher
	logger        utils.Logger
}

func NewApplicationService(
	repo repositories.Repository,
	notifications NotificationService,
	validator *utils.Validator,
	audit AuditService,
	publisher events.Publisher,
	logger utils.Logger,
) ApplicationService {
	return &applicationService{
		repo:          repo,
		notifications: notifications,
		validator:     validator,
		audit:         audit,
		publisher:     publisher,
		logger:        logger,
	}
}

type CreateApplicationRequest struct {
	StudentID      string  `json:"student_id" validate:"required"`
	UniversityName string  `json:"university_name" validate:"required,max=200"`
	ProgramName    string  `json:"program_name" validate:"required,max=200"`
	Country        string  `json:"country" validate:"omitempty,max=100"`
	Intake         *string `json:"intake,omitempty"`
}

type AssignApplicationRequest struct {
	CreateApplicationRequest
	AgentID string `json:"agent_id" validate:"required"`
}

// ===== CREATE =====

func (s *applicationService) CreateByAgent(ctx context.Context, agent *auth.Actor, req CreateApplicationRequest) (*models.Application, error) {
	if agent.Role() != models.RoleAgent {
		return nil, ErrForbidden
	}
	return s.create(ctx, agent, req, agent.ID(), "agent")
}

func (s *applicationService) AssignByAdmin(ctx context.Context, admin *auth.Actor, req AssignApplicationRequest) (*models.Application, error) {
	if !admin.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	agent, err := s.repo.Users().GetByID(ctx, req.AgentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent.Role != models.RoleAgent || !agent.IsActive {
		return nil, ValidationErrors{*NewValidationError("agent_id", "assignee must be an active agent", req.AgentID)}
	}

	return s.create(ctx, admin, req.CreateApplicationRequest, req.AgentID, "admin")
}

func (s *applicationService) create(ctx context.Context, actor *auth.Actor, req CreateApplicationRequest, agentID, assignedBy string) (*models.Application, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	student, err := s.repo.Students().GetByID(ctx, req.StudentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	// Agents only open applications for students in their own book.
	if actor.Role() == models.RoleAgent {
		if student.AssignedAgent == nil || *student.AssignedAgent != actor.ID() {
			return nil, NewPermissionError(actor.ID(), student.ID, "student", "create_application", "student is not assigned to you")
		}
	}

	app := &models.Application{
		StudentID:      student.ID,
		AgentID:        agentID,
		AssignedBy:     assignedBy,
		UniversityName: req.UniversityName,
		ProgramName:    req.ProgramName,
		Country:        req.Country,
		Intake:         req.Intake,
		Status:         models.AppAssigned,
	}
	appendTimeline(app, actor.ID(), "application created", &app.Status)

	if err := s.repo.Applications().Create(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditAppCreated,
		EntityType: "application",
		EntityID:   app.ID,
		NewState:   map[string]interface{}{"status": app.Status},
		Details:    fmt.Sprintf("%s / %s", app.UniversityName, app.ProgramName),
	})
	s.publish(ctx, events.NewDomainEvent(events.EventApplicationCreated, events.ApplicationCreatedEvent{
		ApplicationID:  app.ID,
		StudentID:      student.ID,
		StudentUserID:  student.UserID,
		AgentID:        agentID,
		UniversityName: app.UniversityName,
		ProgramName:    app.ProgramName,
		CreatedBy:      actor.ID(),
	}))

	return app, nil
}

// ===== READS =====

func (s *applicationService) Get(ctx context.Context, actor *auth.Actor, id string) (*models.Application, error) {
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "read", d.Reason)
	}
	return app, nil
}

func (s *applicationService) List(ctx context.Context, actor *auth.Actor, filters repositories.ApplicationFilters) ([]*models.Application, int64, error) {
	switch actor.Role() {
	case models.RoleStudent:
		if actor.Student == nil {
			return nil, 0, ErrStudentNotFound
		}
		filters.StudentID = &actor.Student.ID
	case models.RoleAgent:
		id := actor.ID()
		filters.AgentID = &id
	case models.RoleSuperAdmin:
		// unscoped
	default:
		return nil, 0, ErrForbidden
	}
	return s.repo.Applications().List(ctx, filters)
}

// ===== STATUS =====

func (s *applicationService) UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.ApplicationStatus) (*models.Application, error) {
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanTransitionApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "update_status", d.Reason)
	}
	return s.transition(ctx, actor, app, target, "")
}

func (s *applicationService) NextStatuses(ctx context.Context, actor *auth.Actor, id string) ([]models.ApplicationStatus, error) {
	app, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return models.ApplicationNextStatuses(app.Status), nil
}

// AcceptOffer is the one admissions action a student takes directly.
func (s *applicationService) AcceptOffer(ctx context.Context, student *auth.Actor, id string) (*models.Application, error) {
	if student.Role() != models.RoleStudent {
		return nil, ErrForbidden
	}
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadApplication(student, app); !d.Allowed {
		return nil, NewPermissionError(student.ID(), id, "application", "accept_offer", d.Reason)
	}
	if app.Status != models.AppOfferReceived {
		return nil, fmt.Errorf("%w: status is %s", ErrOfferNotReceived, app.Status)
	}
	return s.transition(ctx, student, app, models.AppAccepted, "offer accepted by student")
}

func (s *applicationService) transition(ctx context.Context, actor *auth.Actor, app *models.Application, target models.ApplicationStatus, note string) (*models.Application, error) {
	from := app.Status
	if !models.ApplicationCanTransition(from, target) {
		return nil, newApplicationTransitionError(from, target)
	}

	event := note
	if event == "" {
		event = fmt.Sprintf("status changed to %s", target)
	}
	app.Status = target
	status := string(target)
	app.Timeline = append(app.Timeline, models.TimelineEntry{
		Event:     event,
		Status:    &status,
		Actor:     actor.ID(),
		Timestamp: time.Now(),
	})

	ok, err := s.repo.Applications().UpdateFromStatus(ctx, app, from)
	if err != nil {
		return nil, fmt.Errorf("failed to write application transition: %w", err)
	}
	if !ok {
		fresh, err := s.getApplication(ctx, app.ID)
		if err != nil {
			return nil, err
		}
		return nil, newApplicationTransitionError(fresh.Status, target)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         actor,
		Action:        models.AuditAppStatus,
		EntityType:    "application",
		EntityID:      app.ID,
		PreviousState: map[string]interface{}{"status": from},
		NewState:      map[string]interface{}{"status": target},
	})
	s.publish(ctx, events.NewDomainEvent(events.EventApplicationStatusChanged, events.ApplicationStatusChangedEvent{
		ApplicationID:  app.ID,
		StudentUserID:  s.studentUserID(ctx, app),
		AgentID:        app.AgentID,
		UniversityName: app.UniversityName,
		FromStatus:     from,
		ToStatus:       target,
		ChangedBy:      actor.ID(),
	}))

	return app, nil
}

// ===== DOCUMENTS / CHECKLIST / REMARKS =====

func (s *applicationService) UploadDocument(ctx context.Context, actor *auth.Actor, id string, doc models.FileRef) (*models.Application, error) {
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "upload_document", d.Reason)
	}

	doc.UploadedBy = actor.ID()
	doc.UploadedAt = time.Now()
	app.Documents = append(app.Documents, models.ApplicationDocument{
		FileRef:      doc,
		UploadedRole: actor.Role(),
	})
	appendTimeline(app, actor.ID(), fmt.Sprintf("document uploaded: %s", doc.OriginalName), nil)

	if err := s.repo.Applications().Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditFileUploaded,
		EntityType: "application",
		EntityID:   app.ID,
		Details:    doc.OriginalName,
	})
	s.notifyCounterparty(ctx, actor, app, doc)

	return app, nil
}

// notifyCounterparty tells the other side of the application that a new
// document landed: agent uploads notify the student and vice versa.
func (s *applicationService) notifyCounterparty(ctx context.Context, uploader *auth.Actor, app *models.Application, doc models.FileRef) {
	var recipientID string
	if uploader.Role() == models.RoleStudent {
		recipientID = app.AgentID
	} else {
		recipientID = s.studentUserID(ctx, app)
	}
	if recipientID == "" || recipientID == uploader.ID() {
		return
	}

	_, err := s.notifications.Deliver(ctx, CreateNotificationRequest{
		RecipientID: recipientID,
		Type:        models.NotificationAppDocUploaded,
		Channel:     models.ChannelDashboard,
		Title:       "New application document",
		Message:     fmt.Sprintf("A document was uploaded for %s: %s", app.UniversityName, doc.OriginalName),
		RelatedEntities: &models.RelatedEntities{
			ApplicationID: app.ID,
		},
	})
	if err != nil {
		s.logger.Warn("failed to notify document upload",
			"application_id", app.ID, "recipient_id", recipientID, "error", err)
	}
}

func (s *applicationService) AddRemark(ctx context.Context, actor *auth.Actor, id string, text string) (*models.Application, error) {
	if text == "" {
		return nil, ValidationErrors{*NewValidationError("text", "remark text is required", nil)}
	}
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanTransitionApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "add_remark", d.Reason)
	}

	app.Remarks = append(app.Remarks, models.Remark{
		Text:    text,
		AddedBy: actor.ID(),
		AddedAt: time.Now(),
	})
	if err := s.repo.Applications().Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save remark: %w", err)
	}
	return app, nil
}

func (s *applicationService) AddChecklistItem(ctx context.Context, actor *auth.Actor, id string, item string) (*models.Application, error) {
	if item == "" {
		return nil, ValidationErrors{*NewValidationError("item", "checklist item is required", nil)}
	}
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanTransitionApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "update_checklist", d.Reason)
	}

	app.Checklist = append(app.Checklist, models.ChecklistItem{Item: item})
	appendTimeline(app, actor.ID(), fmt.Sprintf("checklist item added: %s", item), nil)
	if err := s.repo.Applications().Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save checklist: %w", err)
	}
	return app, nil
}

func (s *applicationService) ToggleChecklistItem(ctx context.Context, actor *auth.Actor, id string, index int, completed bool) (*models.Application, error) {
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanTransitionApplication(actor, app); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "application", "update_checklist", d.Reason)
	}
	if index < 0 || index >= len(app.Checklist) {
		return nil, ValidationErrors{*NewValidationError("index", "checklist index out of range", index)}
	}

	entry := &app.Checklist[index]
	entry.Completed = completed
	if completed {
		now := time.Now()
		actorID := actor.ID()
		entry.CompletedAt = &now
		entry.CompletedBy = &actorID
	} else {
		entry.CompletedAt = nil
		entry.CompletedBy = nil
	}

	if err := s.repo.Applications().Update(ctx, app); err != nil {
		return nil, fmt.Errorf("failed to save checklist: %w", err)
	}
	return app, nil
}

// ===== DELETE =====

func (s *applicationService) SoftDelete(ctx context.Context, admin *auth.Actor, id string) error {
	if !admin.IsSuperAdmin() {
		return ErrForbidden
	}
	app, err := s.getApplication(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Applications().SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         admin,
		Action:        models.AuditAppDeleted,
		EntityType:    "application",
		EntityID:      id,
		PreviousState: map[string]interface{}{"status": app.Status},
		Details:       fmt.Sprintf("%s / %s", app.UniversityName, app.ProgramName),
	})
	return nil
}

// ===== HELPERS =====

func appendTimeline(app *models.Application, actorID, event string, status *models.ApplicationStatus) {
	var s *string
	if status != nil {
		v := string(*status)
		s = &v
	}
	app.Timeline = append(app.Timeline, models.TimelineEntry{
		Event:     event,
		Status:    s,
		Actor:     actorID,
		Timestamp: time.Now(),
	})
}

func (s *applicationService) getApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.Applications().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return app, nil
}

func (s *applicationService) studentUserID(ctx context.Context, app *models.Application) string {
	if app.Student != nil {
		return app.Student.UserID
	}
	student, err := s.repo.Students().GetByID(ctx, app.StudentID)
	if err != nil {
		s.logger.Warn("failed to resolve student user", "student_id", app.StudentID, "error", err)
		return ""
	}
	return student.UserID
}

func (s *applicationService) publish(ctx context.Context, event *events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.Type, "error", err)
	}
}
