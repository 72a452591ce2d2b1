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

// ServiceRequestService drives the case lifecycle: creation, assignment, the
// status machine, progress, referral approval and case notes.
type ServiceRequestService interface {
	Create(ctx context.Context, actor *auth.Actor, req CreateServiceRequestRequest) (*models.ServiceRequest, error)
	Get(ctx context.Context, actor *auth.Actor, id string) (*models.ServiceRequest, error)
	List(ctx context.Context, actor *auth.Actor, filters repositories.ServiceRequestFilters) ([]*models.ServiceRequest, int64, error)

	Assign(ctx context.Context, actor *auth.Actor, id string, req AssignRequest) (*models.ServiceRequest, error)
	UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.ServiceRequestStatus, note string) (*models.ServiceRequest, error)
	UpdateProgress(ctx context.Context, actor *auth.Actor, id string, progress int) (*models.ServiceRequest, error)
	UpdateDeadline(ctx context.Context, actor *auth.Actor, id string, deadline time.Time) (*models.ServiceRequest, error)
	UpdatePriority(ctx context.Context, actor *auth.Actor, id string, priority models.Priority) (*models.ServiceRequest, error)
	AddNote(ctx context.Context, actor *auth.Actor, id, text string, internal bool) (*models.ServiceRequest, error)
	AttachDocument(ctx context.Context, actor *auth.Actor, id string, file models.FileRef) (*models.ServiceRequest, error)

	ApproveReferral(ctx context.Context, actor *auth.Actor, id string, notes string) (*models.ServiceRequest, error)
	RejectReferral(ctx context.Context, actor *auth.Actor, id string, reason string) (*models.ServiceRequest, error)
}

type serviceRequestService struct {
	repo      repositories.Repository
	validator *utils.Validator
	audit     AuditService
	publisher events.Publisher
	logger    utils.Logger
}

func NewServiceRequestService(
	repo repositories.Repository,
	validator *utils.Validator,
	audit AuditService,
	publisher events.Publisher,
	logger utils.Logger,
) ServiceRequestService {
	return &serviceRequestService{
		repo:      repo,
		validator: validator,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

type CreateServiceRequestRequest struct {
	ServiceType models.ServiceType `json:"service_type" validate:"required,service_type"`
	Priority    models.Priority    `json:"priority" validate:"omitempty,priority"`
	Deadline    *time.Time         `json:"deadline,omitempty" validate:"omitempty,future_date"`

	// StudentID is required for agent-initiated referrals; ignored for
	// student callers, who always act on their own profile.
	StudentID string `json:"student_id,omitempty"`
}

type AssignRequest struct {
	CounselorID *string `json:"counselor_id,omitempty"`
	AgentID     *string `json:"agent_id,omitempty"`
}

// ===== CREATION =====

func (s *serviceRequestService) Create(ctx context.Context, actor *auth.Actor, req CreateServiceRequestRequest) (*models.ServiceRequest, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	switch actor.Role() {
	case models.RoleStudent:
		return s.createForStudent(ctx, actor, actor.Student, req, false)
	case models.RoleAgent:
		return s.createReferral(ctx, actor, req)
	default:
		return nil, ErrForbidden
	}
}

func (s *serviceRequestService) createForStudent(ctx context.Context, actor *auth.Actor, student *models.Student, req CreateServiceRequestRequest, agentInitiated bool) (*models.ServiceRequest, error) {
	if student == nil {
		return nil, ErrStudentNotFound
	}

	existing, err := s.repo.ServiceRequests().HasOpenRequest(ctx, student.ID, req.ServiceType)
	if err != nil {
		return nil, fmt.Errorf("failed to check open requests: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrDuplicateOpenRequest, existing.ID, existing.Status)
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	sr := &models.ServiceRequest{
		StudentID:   student.ID,
		ServiceType: req.ServiceType,
		Status:      models.SRPendingAssignment,
		Progress:    models.ServiceRequestProgressFloor(models.SRPendingAssignment),
		Priority:    req.Priority,
		Deadline:    req.Deadline,
	}
	if agentInitiated {
		agentID := actor.ID()
		pending := models.ApprovalPending
		sr.IsAgentInitiated = true
		sr.AgentApprovalStatus = &pending
		sr.AssignedAgent = &agentID
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.ServiceRequests().Create(ctx, sr); err != nil {
			return fmt.Errorf("failed to create service request: %w", err)
		}
		// The requested service becomes part of the student's selection.
		for _, selected := range student.SelectedServices {
			if selected == req.ServiceType {
				return nil
			}
		}
		student.SelectedServices = append(student.SelectedServices, req.ServiceType)
		return tx.Students().Update(ctx, student)
	})
	if err != nil {
		return nil, err
	}

	action := models.AuditServiceApplied
	if agentInitiated {
		action = models.AuditStudentReferred
	}
	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "service_request",
		EntityID:   sr.ID,
		NewState:   map[string]interface{}{"status": sr.Status},
		Details:    string(req.ServiceType),
	})

	s.publish(ctx, events.NewDomainEvent(events.EventServiceRequestCreated, events.ServiceRequestCreatedEvent{
		ServiceRequestID: sr.ID,
		StudentID:        student.ID,
		StudentUserID:    student.UserID,
		ServiceType:      sr.ServiceType,
		CreatedBy:        actor.ID(),
		CreatedByRole:    actor.Role(),
	}))

	return sr, nil
}

func (s *serviceRequestService) createReferral(ctx context.Context, actor *auth.Actor, req CreateServiceRequestRequest) (*models.ServiceRequest, error) {
	if req.StudentID == "" {
		return nil, ValidationErrors{*NewValidationError("student_id", "student_id is required for referrals", nil)}
	}

	student, err := s.repo.Students().GetByID(ctx, req.StudentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	agentID := actor.ID()
	owns := (student.AssignedAgent != nil && *student.AssignedAgent == agentID) ||
		(student.ReferredBy != nil && *student.ReferredBy == agentID)
	if !owns {
		return nil, NewPermissionError(agentID, student.ID, "student", "refer", "student is not linked to this agent")
	}

	return s.createForStudent(ctx, actor, student, req, true)
}

// ===== READS =====

func (s *serviceRequestService) Get(ctx context.Context, actor *auth.Actor, id string) (*models.ServiceRequest, error) {
	sr, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadServiceRequest(actor, sr); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "service_request", "read", d.Reason)
	}
	return sr, nil
}

func (s *serviceRequestService) List(ctx context.Context, actor *auth.Actor, filters repositories.ServiceRequestFilters) ([]*models.ServiceRequest, int64, error) {
	// Non-admin callers are always scoped to their own cases.
	switch actor.Role() {
	case models.RoleStudent:
		if actor.Student == nil {
			return nil, 0, ErrStudentNotFound
		}
		filters.StudentID = &actor.Student.ID
	case models.RoleCounselor:
		id := actor.ID()
		filters.AssignedCounselor = &id
	case models.RoleAgent:
		id := actor.ID()
		filters.AssignedAgent = &id
	}
	return s.repo.ServiceRequests().List(ctx, filters)
}

// ===== ASSIGNMENT =====

func (s *serviceRequestService) Assign(ctx context.Context, actor *auth.Actor, id string, req AssignRequest) (*models.ServiceRequest, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	if req.CounselorID == nil && req.AgentID == nil {
		return nil, ValidationErrors{*NewValidationError("assignee", "counselor_id or agent_id is required", nil)}
	}

	sr, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if sr.Status != models.SRPendingAssignment && sr.Status != models.SRAssigned {
		return nil, newServiceRequestTransitionError(sr.Status, models.SRAssigned)
	}

	if req.CounselorID != nil {
		if err := s.checkAssignee(ctx, *req.CounselorID, models.RoleCounselor); err != nil {
			return nil, err
		}
		sr.AssignedCounselor = req.CounselorID
	}
	if req.AgentID != nil {
		if err := s.checkAssignee(ctx, *req.AgentID, models.RoleAgent); err != nil {
			return nil, err
		}
		sr.AssignedAgent = req.AgentID
	}

	now := time.Now()
	adminID := actor.ID()
	from := sr.Status
	sr.AssignedAt = &now
	sr.AssignedBy = &adminID

	if from == models.SRPendingAssignment {
		if _, err := s.transition(ctx, actor, sr, models.SRAssigned, "assigned by admin"); err != nil {
			return nil, err
		}
	} else {
		// Reassignment keeps the status; only the assignee fields change.
		if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
			return nil, fmt.Errorf("failed to update service request: %w", err)
		}
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditServiceAssigned,
		EntityType: "service_request",
		EntityID:   sr.ID,
		NewState: map[string]interface{}{
			"assigned_counselor": sr.AssignedCounselor,
			"assigned_agent":     sr.AssignedAgent,
		},
		Details: "case assigned",
	})

	if sr.AssignedCounselor != nil {
		s.publish(ctx, events.NewDomainEvent(events.EventServiceRequestAssigned, events.ServiceRequestAssignedEvent{
			ServiceRequestID: sr.ID,
			StudentUserID:    s.studentUserID(ctx, sr),
			CounselorID:      *sr.AssignedCounselor,
			AssignedBy:       adminID,
		}))
	}

	return sr, nil
}

func (s *serviceRequestService) checkAssignee(ctx context.Context, userID string, role models.UserRole) error {
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ValidationErrors{*NewValidationError("assignee", "assignee does not exist", userID)}
		}
		return fmt.Errorf("failed to look up assignee: %w", err)
	}
	if !user.IsActive {
		return ValidationErrors{*NewValidationError("assignee", "assignee account is inactive", userID)}
	}
	if user.Role != role {
		return ValidationErrors{*NewValidationError("assignee", fmt.Sprintf("assignee must have role %s", role), user.Role)}
	}
	return nil
}

// ===== STATUS / PROGRESS =====

func (s *serviceRequestService) UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.ServiceRequestStatus, note string) (*models.ServiceRequest, error) {
	sr, err := s.getModifiable(ctx, actor, id, "update_status")
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, sr, target, note)
}

func (s *serviceRequestService) UpdateProgress(ctx context.Context, actor *auth.Actor, id string, progress int) (*models.ServiceRequest, error) {
	sr, err := s.getModifiable(ctx, actor, id, "update_progress")
	if err != nil {
		return nil, err
	}
	if sr.IsTerminal() {
		return nil, newServiceRequestTransitionError(sr.Status, sr.Status)
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	// Monotone: a lower value is a silent no-op, matching the clamp rule.
	if progress <= sr.Progress {
		return sr, nil
	}

	if progress == 100 {
		return s.transition(ctx, actor, sr, models.SRCompleted, "progress reached 100%")
	}

	from := sr.Progress
	sr.Progress = progress
	sr.StatusHistory = append(sr.StatusHistory, models.StatusHistoryEntry{
		Status:    string(sr.Status),
		ChangedBy: actor.ID(),
		ChangedAt: time.Now(),
		Note:      fmt.Sprintf("progress %d%% -> %d%%", from, progress),
	})
	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         actor,
		Action:        models.AuditServiceProgress,
		EntityType:    "service_request",
		EntityID:      sr.ID,
		PreviousState: map[string]interface{}{"progress": from},
		NewState:      map[string]interface{}{"progress": progress},
	})
	return sr, nil
}

func (s *serviceRequestService) UpdateDeadline(ctx context.Context, actor *auth.Actor, id string, deadline time.Time) (*models.ServiceRequest, error) {
	sr, err := s.getModifiable(ctx, actor, id, "update_deadline")
	if err != nil {
		return nil, err
	}
	sr.Deadline = &deadline
	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to update deadline: %w", err)
	}
	return sr, nil
}

func (s *serviceRequestService) UpdatePriority(ctx context.Context, actor *auth.Actor, id string, priority models.Priority) (*models.ServiceRequest, error) {
	sr, err := s.getModifiable(ctx, actor, id, "update_priority")
	if err != nil {
		return nil, err
	}
	sr.Priority = priority
	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to update priority: %w", err)
	}
	return sr, nil
}

// ===== NOTES / DOCUMENTS =====

func (s *serviceRequestService) AddNote(ctx context.Context, actor *auth.Actor, id, text string, internal bool) (*models.ServiceRequest, error) {
	if text == "" {
		return nil, ValidationErrors{*NewValidationError("text", "note text is required", nil)}
	}
	sr, err := s.getModifiable(ctx, actor, id, "add_note")
	if err != nil {
		return nil, err
	}
	sr.Notes = append(sr.Notes, models.CaseNote{
		Text:       text,
		AddedBy:    actor.ID(),
		AddedAt:    time.Now(),
		IsInternal: internal,
	})
	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to add note: %w", err)
	}
	return sr, nil
}

func (s *serviceRequestService) AttachDocument(ctx context.Context, actor *auth.Actor, id string, file models.FileRef) (*models.ServiceRequest, error) {
	sr, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	// Students attach to their own cases; advisors go through the modify gate.
	if actor.Role() == models.RoleStudent {
		if d := auth.CanReadServiceRequest(actor, sr); !d.Allowed {
			return nil, NewPermissionError(actor.ID(), id, "service_request", "attach_document", d.Reason)
		}
	} else if d := auth.CanModifyServiceRequest(actor, sr); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "service_request", "attach_document", d.Reason)
	}

	file.UploadedBy = actor.ID()
	file.UploadedAt = time.Now()
	sr.Documents = append(sr.Documents, file)
	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to attach document: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditFileUploaded,
		EntityType: "service_request",
		EntityID:   sr.ID,
		NewState:   map[string]interface{}{"url": file.URL},
		Details:    file.OriginalName,
	})
	return sr, nil
}

// ===== REFERRAL APPROVAL =====

func (s *serviceRequestService) ApproveReferral(ctx context.Context, actor *auth.Actor, id string, notes string) (*models.ServiceRequest, error) {
	return s.decideReferral(ctx, actor, id, notes, true)
}

func (s *serviceRequestService) RejectReferral(ctx context.Context, actor *auth.Actor, id string, reason string) (*models.ServiceRequest, error) {
	return s.decideReferral(ctx, actor, id, reason, false)
}

func (s *serviceRequestService) decideReferral(ctx context.Context, actor *auth.Actor, id, notes string, approve bool) (*models.ServiceRequest, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	sr, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sr.IsAgentInitiated || sr.AgentApprovalStatus == nil || *sr.AgentApprovalStatus != models.ApprovalPending {
		return nil, ErrApprovalNotPending
	}

	now := time.Now()
	adminID := actor.ID()
	decision := models.ApprovalRejected
	action := models.AuditServiceRejected
	if approve {
		decision = models.ApprovalApproved
		action = models.AuditServiceApproved
		sr.ApprovedAt = &now
	} else {
		sr.RejectedAt = &now
	}
	sr.AgentApprovalStatus = &decision
	sr.ApprovedBy = &adminID
	if notes != "" {
		sr.ApprovalNotes = &notes
	}

	if err := s.repo.ServiceRequests().Update(ctx, sr); err != nil {
		return nil, fmt.Errorf("failed to record referral decision: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         actor,
		Action:        action,
		EntityType:    "service_request",
		EntityID:      sr.ID,
		PreviousState: map[string]interface{}{"agent_approval_status": models.ApprovalPending},
		NewState:      map[string]interface{}{"agent_approval_status": decision},
		Details:       notes,
	})

	agentID := ""
	if sr.AssignedAgent != nil {
		agentID = *sr.AssignedAgent
	}
	s.publish(ctx, events.NewDomainEvent(events.EventServiceRequestApproval, events.ServiceRequestApprovalEvent{
		ServiceRequestID: sr.ID,
		AgentID:          agentID,
		StudentUserID:    s.studentUserID(ctx, sr),
		ApprovalStatus:   decision,
		Reason:           notes,
		DecidedBy:        adminID,
	}))

	return sr, nil
}

// ===== TRANSITION PRIMITIVE =====

// transition is the single funnel every status change goes through. The
// write is guarded by a compare-and-set on the prior status so concurrent
// movers cannot both win.
func (s *serviceRequestService) transition(ctx context.Context, actor *auth.Actor, sr *models.ServiceRequest, target models.ServiceRequestStatus, note string) (*models.ServiceRequest, error) {
	from := sr.Status
	if !models.ServiceRequestCanTransition(from, target) {
		return nil, newServiceRequestTransitionError(from, target)
	}

	now := time.Now()
	sr.Status = target
	sr.StatusHistory = append(sr.StatusHistory, models.StatusHistoryEntry{
		Status:    string(from),
		ChangedBy: actor.ID(),
		ChangedAt: now,
		Note:      note,
	})

	switch target {
	case models.SRCompleted:
		sr.Progress = 100
		sr.CompletedAt = &now
	case models.SRCancelled:
		sr.CancelledAt = &now
	default:
		if floor := models.ServiceRequestProgressFloor(target); sr.Progress < floor {
			sr.Progress = floor
		}
	}

	ok, err := s.repo.ServiceRequests().UpdateFromStatus(ctx, sr, from)
	if err != nil {
		return nil, fmt.Errorf("failed to write transition: %w", err)
	}
	if !ok {
		// A concurrent writer moved the case first; report against the
		// fresh status.
		fresh, err := s.getRequest(ctx, sr.ID)
		if err != nil {
			return nil, err
		}
		return nil, newServiceRequestTransitionError(fresh.Status, target)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         actor,
		Action:        models.AuditServiceStatus,
		EntityType:    "service_request",
		EntityID:      sr.ID,
		PreviousState: map[string]interface{}{"status": from},
		NewState:      map[string]interface{}{"status": target},
		Details:       note,
	})

	s.publish(ctx, events.NewDomainEvent(events.EventServiceRequestStatusChanged, events.ServiceRequestStatusChangedEvent{
		ServiceRequestID: sr.ID,
		StudentUserID:    s.studentUserID(ctx, sr),
		CounselorID:      sr.AssignedCounselor,
		AgentID:          sr.AssignedAgent,
		FromStatus:       from,
		ToStatus:         target,
		Progress:         sr.Progress,
		ChangedBy:        actor.ID(),
	}))

	return sr, nil
}

// ===== HELPERS =====

func (s *serviceRequestService) getRequest(ctx context.Context, id string) (*models.ServiceRequest, error) {
	sr, err := s.repo.ServiceRequests().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrServiceRequestNotFound
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}
	return sr, nil
}

func (s *serviceRequestService) getModifiable(ctx context.Context, actor *auth.Actor, id, action string) (*models.ServiceRequest, error) {
	sr, err := s.getRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanModifyServiceRequest(actor, sr); !d.Allowed {
		pe := NewPermissionError(actor.ID(), id, "service_request", action, d.Reason)
		pe.ApprovalStatus = d.ApprovalStatus
		return nil, pe
	}
	return sr, nil
}

func (s *serviceRequestService) studentUserID(ctx context.Context, sr *models.ServiceRequest) string {
	if sr.Student != nil {
		return sr.Student.UserID
	}
	student, err := s.repo.Students().GetByID(ctx, sr.StudentID)
	if err != nil {
		s.logger.Warn("failed to resolve student for event", "student_id", sr.StudentID, "error", err)
		return ""
	}
	sr.Student = student
	return student.UserID
}

func (s *serviceRequestService) publish(ctx context.Context, event *events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.Type, "error", err)
	}
}
