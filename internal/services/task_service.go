package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"gorm.io/datatypes"
)

// TaskService drives advisor-assigned student tasks through the
// submit/review/revision cycle and cascades completion into case progress.
type TaskService interface {
	Create(ctx context.Context, actor *auth.Actor, req CreateTaskRequest) (*models.Task, error)
	Get(ctx context.Context, actor *auth.Actor, id string) (*models.Task, error)
	List(ctx context.Context, actor *auth.Actor, filters repositories.TaskFilters) ([]*models.Task, int64, error)

	Submit(ctx context.Context, actor *auth.Actor, id string, req SubmitTaskRequest) (*models.Task, error)
	Review(ctx context.Context, actor *auth.Actor, id string, req ReviewTaskRequest) (*models.Task, error)
	UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.TaskStatus) (*models.Task, error)
	Delete(ctx context.Context, actor *auth.Actor, id string) error
}

type taskService struct {
	repo            repositories.Repository
	serviceRequests ServiceRequestService
	validator       *utils.Validator
	audit           AuditService
	publisher       events.Publisher
	logger          utils.Logger
}

func NewTaskService(
	repo repositories.Repository,
	serviceRequests ServiceRequestService,
	validator *utils.Validator,
	audit AuditService,
	publisher events.Publisher,
	logger utils.Logger,
) TaskService {
	return &taskService{
		repo:            repo,
		serviceRequests: serviceRequests,
		validator:       validator,
		audit:           audit,
		publisher:       publisher,
		logger:          logger,
	}
}

type CreateTaskRequest struct {
	ServiceRequestID string          `json:"service_request_id" validate:"required"`
	TaskType         models.TaskType `json:"task_type" validate:"required,task_type"`
	Title            string          `json:"title" validate:"required,min=1,max=200"`
	Description      string          `json:"description" validate:"required"`
	Instructions     string          `json:"instructions"`
	Priority         models.Priority `json:"priority" validate:"omitempty,priority"`
	DueDate          *time.Time      `json:"due_date,omitempty" validate:"omitempty,future_date"`
}

type SubmitTaskRequest struct {
	Text  string           `json:"text" validate:"required"`
	Files []models.FileRef `json:"files,omitempty"`
}

type ReviewTaskRequest struct {
	Text             string `json:"text" validate:"required"`
	Rating           *int   `json:"rating,omitempty" validate:"omitempty,rating_range"`
	RequiresRevision bool   `json:"requires_revision"`
}

// ===== CREATE =====

func (s *taskService) Create(ctx context.Context, actor *auth.Actor, req CreateTaskRequest) (*models.Task, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	sr, err := s.repo.ServiceRequests().GetByID(ctx, req.ServiceRequestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrServiceRequestNotFound
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}

	// Creating a task is a modifying operation on the parent case, which
	// also enforces the referral-approval freeze for agents.
	if d := auth.CanModifyServiceRequest(actor, sr); !d.Allowed {
		pe := NewPermissionError(actor.ID(), sr.ID, "service_request", "create_task", d.Reason)
		pe.ApprovalStatus = d.ApprovalStatus
		return nil, pe
	}
	if sr.IsTerminal() {
		return nil, newServiceRequestTransitionError(sr.Status, sr.Status)
	}

	student, err := s.repo.Students().GetByID(ctx, sr.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	task := &models.Task{
		ServiceRequestID: sr.ID,
		TaskType:         req.TaskType,
		Title:            req.Title,
		Description:      req.Description,
		Instructions:     req.Instructions,
		AssignedTo:       student.UserID,
		AssignedBy:       actor.ID(),
		Status:           models.TaskPending,
		Priority:         req.Priority,
		DueDate:          req.DueDate,
	}
	if err := s.repo.Tasks().Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// First activity on a freshly assigned case starts the work.
	if sr.Status == models.SRAssigned {
		if _, err := s.serviceRequests.UpdateStatus(ctx, actor, sr.ID, models.SRInProgress, "first task created"); err != nil {
			s.logger.Warn("failed to auto-advance case", "service_request_id", sr.ID, "error", err)
		}
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditTaskCreated,
		EntityType: "task",
		EntityID:   task.ID,
		NewState:   map[string]interface{}{"status": task.Status},
		Details:    task.Title,
	})
	s.publish(ctx, events.NewDomainEvent(events.EventTaskCreated, events.TaskCreatedEvent{
		TaskID:           task.ID,
		ServiceRequestID: sr.ID,
		Title:            task.Title,
		TaskType:         task.TaskType,
		AssignedTo:       task.AssignedTo,
		AssignedBy:       task.AssignedBy,
		DueDate:          task.DueDate,
	}))

	return task, nil
}

// ===== READS =====

func (s *taskService) Get(ctx context.Context, actor *auth.Actor, id string) (*models.Task, error) {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadTask(actor, task); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "task", "read", d.Reason)
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, actor *auth.Actor, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	switch actor.Role() {
	case models.RoleStudent:
		id := actor.ID()
		filters.AssignedTo = &id
	case models.RoleCounselor, models.RoleAgent:
		id := actor.ID()
		filters.AssignedBy = &id
	}
	return s.repo.Tasks().List(ctx, filters)
}

// ===== SUBMIT / REVIEW =====

func (s *taskService) Submit(ctx context.Context, actor *auth.Actor, id string, req SubmitTaskRequest) (*models.Task, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.AssignedTo != actor.ID() {
		return nil, ErrNotTaskAssignee
	}
	if task.Status == models.TaskCompleted {
		return nil, newTaskTransitionError(task.Status, models.TaskSubmitted)
	}

	// A pending task passes through IN_PROGRESS on its way to SUBMITTED.
	if task.Status == models.TaskPending {
		if _, err := s.transition(ctx, actor, task, models.TaskInProgress, "started by submission"); err != nil {
			return nil, err
		}
	}

	// Supersede a previous submission: it moves into the revision history
	// together with the feedback that sent it back.
	if prev := task.CurrentSubmission(); prev != nil {
		task.RevisionHistory = append(task.RevisionHistory, models.TaskRevision{
			Submission: *prev,
			Feedback:   task.CurrentFeedback(),
			ArchivedAt: time.Now(),
		})
		task.Feedback = nil
	}

	submission := datatypes.NewJSONType(models.TaskSubmission{
		Text:        req.Text,
		Files:       req.Files,
		SubmittedAt: time.Now(),
	})
	task.Submission = &submission

	if task.Status == models.TaskSubmitted {
		// Resubmission before review: the status does not move, the new
		// submission just supersedes the archived one.
		ok, err := s.repo.Tasks().UpdateFromStatus(ctx, task, models.TaskSubmitted)
		if err != nil {
			return nil, fmt.Errorf("failed to write task submission: %w", err)
		}
		if !ok {
			fresh, err := s.getTask(ctx, task.ID)
			if err != nil {
				return nil, err
			}
			return nil, newTaskTransitionError(fresh.Status, models.TaskSubmitted)
		}
	} else if _, err := s.transition(ctx, actor, task, models.TaskSubmitted, "submitted"); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditTaskSubmitted,
		EntityType: "task",
		EntityID:   task.ID,
		NewState:   map[string]interface{}{"status": task.Status},
	})
	s.publish(ctx, events.NewDomainEvent(events.EventTaskSubmitted, events.TaskSubmittedEvent{
		TaskID:           task.ID,
		ServiceRequestID: task.ServiceRequestID,
		Title:            task.Title,
		SubmittedBy:      actor.ID(),
		ReviewerID:       task.AssignedBy,
		RevisionNumber:   len(task.RevisionHistory),
	}))

	return task, nil
}

func (s *taskService) Review(ctx context.Context, actor *auth.Actor, id string, req ReviewTaskRequest) (*models.Task, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.AssignedBy != actor.ID() && !actor.IsSuperAdmin() {
		return nil, NewPermissionError(actor.ID(), id, "task", "review", "only the task creator may review")
	}
	if task.CurrentSubmission() == nil {
		return nil, ErrNoSubmission
	}

	feedback := datatypes.NewJSONType(models.TaskFeedback{
		Text:       req.Text,
		ProvidedBy: actor.ID(),
		ProvidedAt: time.Now(),
		Rating:     req.Rating,
	})
	task.Feedback = &feedback

	target := models.TaskCompleted
	note := "approved"
	if req.RequiresRevision {
		target = models.TaskRevisionRequired
		note = "revision requested"
	}
	if _, err := s.transition(ctx, actor, task, target, note); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditTaskReviewed,
		EntityType: "task",
		EntityID:   task.ID,
		NewState:   map[string]interface{}{"status": target},
		Details:    note,
	})
	s.publish(ctx, events.NewDomainEvent(events.EventTaskReviewed, events.TaskReviewedEvent{
		TaskID:           task.ID,
		ServiceRequestID: task.ServiceRequestID,
		Title:            task.Title,
		AssigneeID:       task.AssignedTo,
		Outcome:          target,
		Rating:           req.Rating,
		ReviewedBy:       actor.ID(),
	}))

	if target == models.TaskCompleted {
		s.cascadeProgress(ctx, actor, task.ServiceRequestID)
	}

	return task, nil
}

// UpdateStatus covers the transitions outside submit/review: starting work,
// pulling a submission into review, or closing a task that never needed a
// submission. Completing a submitted task goes through Review so feedback is
// always attached.
func (s *taskService) UpdateStatus(ctx context.Context, actor *auth.Actor, id string, target models.TaskStatus) (*models.Task, error) {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := auth.CanReadTask(actor, task); !d.Allowed {
		return nil, NewPermissionError(actor.ID(), id, "task", "update_status", d.Reason)
	}

	if target == models.TaskCompleted {
		if actor.Role() == models.RoleStudent {
			return nil, NewPermissionError(actor.ID(), id, "task", "update_status", "students cannot complete tasks")
		}
		if task.Status == models.TaskSubmitted || task.Status == models.TaskUnderReview {
			return nil, NewPermissionError(actor.ID(), id, "task", "update_status", "submitted tasks are completed through review")
		}
	}
	if target == models.TaskSubmitted {
		return nil, NewPermissionError(actor.ID(), id, "task", "update_status", "use the submit operation")
	}

	if _, err := s.transition(ctx, actor, task, target, ""); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditTaskStatus,
		EntityType: "task",
		EntityID:   task.ID,
		NewState:   map[string]interface{}{"status": target},
	})

	if target == models.TaskCompleted {
		s.cascadeProgress(ctx, actor, task.ServiceRequestID)
	}

	return task, nil
}

// ===== DELETE =====

func (s *taskService) Delete(ctx context.Context, actor *auth.Actor, id string) error {
	task, err := s.getTask(ctx, id)
	if err != nil {
		return err
	}
	if task.AssignedBy != actor.ID() && !actor.IsSuperAdmin() {
		return NewPermissionError(actor.ID(), id, "task", "delete", "only the task creator may delete")
	}
	if task.Status != models.TaskPending && task.Status != models.TaskInProgress {
		return ErrTaskNotDeletable
	}

	if err := s.repo.Tasks().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:         actor,
		Action:        models.AuditTaskDeleted,
		EntityType:    "task",
		EntityID:      id,
		PreviousState: map[string]interface{}{"status": task.Status},
		Details:       task.Title,
	})
	return nil
}

// ===== TRANSITION / CASCADE =====

func (s *taskService) transition(ctx context.Context, actor *auth.Actor, task *models.Task, target models.TaskStatus, note string) (*models.Task, error) {
	from := task.Status
	if !models.TaskCanTransition(from, target) {
		return nil, newTaskTransitionError(from, target)
	}

	now := time.Now()
	task.Status = target
	task.StatusHistory = append(task.StatusHistory, models.StatusHistoryEntry{
		Status:    string(from),
		ChangedBy: actor.ID(),
		ChangedAt: now,
		Note:      note,
	})
	if target == models.TaskCompleted {
		task.CompletedAt = &now
	}

	ok, err := s.repo.Tasks().UpdateFromStatus(ctx, task, from)
	if err != nil {
		return nil, fmt.Errorf("failed to write task transition: %w", err)
	}
	if !ok {
		fresh, err := s.getTask(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		return nil, newTaskTransitionError(fresh.Status, target)
	}
	return task, nil
}

// cascadeProgress recomputes case progress from completed task counts.
// Progress only moves up, and hitting 100 completes the case.
func (s *taskService) cascadeProgress(ctx context.Context, actor *auth.Actor, serviceRequestID string) {
	counts, err := s.repo.Tasks().CountByServiceRequest(ctx, serviceRequestID)
	if err != nil {
		s.logger.Warn("failed to count tasks for cascade", "service_request_id", serviceRequestID, "error", err)
		return
	}
	if counts.Total == 0 {
		return
	}
	progress := int(math.Ceil(float64(counts.Completed) / float64(counts.Total) * 100))
	if _, err := s.serviceRequests.UpdateProgress(ctx, actor, serviceRequestID, progress); err != nil {
		s.logger.Warn("failed to cascade task completion into case progress",
			"service_request_id", serviceRequestID, "error", err)
	}
}

func (s *taskService) getTask(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.Tasks().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (s *taskService) publish(ctx context.Context, event *events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.Type, "error", err)
	}
}
