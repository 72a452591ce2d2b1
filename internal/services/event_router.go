package services

import (
	"context"
	"fmt"

	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
)

// EventRouter consumes the domain event stream and turns each event into its
// fixed set of notifications and realtime emissions. Everything here is
// best-effort: a failed delivery is logged and the stream moves on.
type EventRouter struct {
	bus           *events.Bus
	repo          repositories.Repository
	notifications NotificationService
	emitter       RealtimeEmitter
	logger        utils.Logger
}

func NewEventRouter(
	bus *events.Bus,
	repo repositories.Repository,
	notifications NotificationService,
	emitter RealtimeEmitter,
	logger utils.Logger,
) *EventRouter {
	return &EventRouter{
		bus:           bus,
		repo:          repo,
		notifications: notifications,
		emitter:       emitter,
		logger:        logger,
	}
}

// Run blocks consuming the bus until ctx is cancelled.
func (r *EventRouter) Run(ctx context.Context) error {
	messages, err := r.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	for msg := range messages {
		event, err := events.DecodeEvent(msg)
		if err != nil {
			r.logger.Error("discarding undecodable event", "error", err)
			msg.Ack()
			continue
		}
		r.Handle(ctx, event)
		msg.Ack()
	}
	return nil
}

// Handle dispatches one event. Exported so tests can drive the router
// without a live bus.
func (r *EventRouter) Handle(ctx context.Context, event *events.DomainEvent) {
	var err error
	switch event.Type {
	case events.EventServiceRequestCreated:
		err = r.onServiceRequestCreated(ctx, event)
	case events.EventServiceRequestAssigned:
		err = r.onServiceRequestAssigned(ctx, event)
	case events.EventServiceRequestStatusChanged:
		err = r.onServiceRequestStatusChanged(ctx, event)
	case events.EventServiceRequestApproval:
		err = r.onServiceRequestApproval(ctx, event)
	case events.EventTaskCreated:
		err = r.onTaskCreated(ctx, event)
	case events.EventTaskSubmitted:
		err = r.onTaskSubmitted(ctx, event)
	case events.EventTaskReviewed:
		err = r.onTaskReviewed(ctx, event)
	case events.EventApplicationCreated:
		err = r.onApplicationCreated(ctx, event)
	case events.EventApplicationStatusChanged:
		err = r.onApplicationStatusChanged(ctx, event)
	case events.EventChatMessageSent:
		err = r.onChatMessageSent(ctx, event)
	}
	if err != nil {
		r.logger.Warn("event routing incomplete",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err)
	}
}

// ===== SERVICE REQUEST EVENTS =====

func (r *EventRouter) onServiceRequestCreated(ctx context.Context, event *events.DomainEvent) error {
	var e events.ServiceRequestCreatedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{ServiceRequestID: e.ServiceRequestID}
	actionURL := stringPtr("/admin/service-requests/" + e.ServiceRequestID)

	if e.CreatedByRole == models.RoleAgent {
		r.notifyAdmins(ctx, CreateNotificationRequest{
			Type:            models.NotificationServiceRequestReferred,
			Channel:         models.ChannelBoth,
			Title:           "Agent Referral Pending Approval",
			Message:         fmt.Sprintf("An agent referred a %s request that needs your approval", e.ServiceType),
			Priority:        models.PriorityHigh,
			ActionURL:       actionURL,
			RelatedEntities: related,
		})
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.StudentUserID,
			Type:            models.NotificationServiceRequestReferred,
			Channel:         models.ChannelDashboard,
			Title:           "Service Request Created",
			Message:         fmt.Sprintf("Your advisor opened a %s request on your behalf", e.ServiceType),
			RelatedEntities: related,
		})
	} else {
		r.notifyAdmins(ctx, CreateNotificationRequest{
			Type:            models.NotificationServiceRequestCreated,
			Channel:         models.ChannelBoth,
			Title:           "New Service Request",
			Message:         fmt.Sprintf("A student applied for %s and is awaiting assignment", e.ServiceType),
			ActionURL:       actionURL,
			RelatedEntities: related,
		})
	}

	r.emitter.Emit(realtime.RoleRoom(models.RoleSuperAdmin), realtime.EventServiceRequestEvent, event.Data)
	return nil
}

func (r *EventRouter) onServiceRequestAssigned(ctx context.Context, event *events.DomainEvent) error {
	var e events.ServiceRequestAssignedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{ServiceRequestID: e.ServiceRequestID}

	r.deliver(ctx, CreateNotificationRequest{
		RecipientID:     e.CounselorID,
		Type:            models.NotificationServiceRequestAssigned,
		Channel:         models.ChannelBoth,
		Title:           "Case Assigned to You",
		Message:         "A service request has been assigned to you",
		ActionURL:       stringPtr("/counselor/cases/" + e.ServiceRequestID),
		RelatedEntities: related,
	})
	r.deliver(ctx, CreateNotificationRequest{
		RecipientID:     e.StudentUserID,
		Type:            models.NotificationServiceRequestAssigned,
		Channel:         models.ChannelBoth,
		Title:           "Advisor Assigned",
		Message:         "An advisor has been assigned to your service request",
		RelatedEntities: related,
	})

	r.emitServiceRequestUpdated(e.ServiceRequestID, e.StudentUserID, event.Data)
	return nil
}

func (r *EventRouter) onServiceRequestStatusChanged(ctx context.Context, event *events.DomainEvent) error {
	var e events.ServiceRequestStatusChangedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{ServiceRequestID: e.ServiceRequestID}

	if e.ToStatus == models.SRCompleted {
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.StudentUserID,
			Type:            models.NotificationServiceCompleted,
			Channel:         models.ChannelBoth,
			Title:           "Service Completed",
			Message:         "Your service request has been completed",
			Priority:        models.PriorityHigh,
			RelatedEntities: related,
		})
		r.notifyAdmins(ctx, CreateNotificationRequest{
			Type:            models.NotificationServiceCompleted,
			Channel:         models.ChannelDashboard,
			Title:           "Service Completed",
			Message:         fmt.Sprintf("Service request %s reached completion", e.ServiceRequestID),
			RelatedEntities: related,
		})
	} else {
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.StudentUserID,
			Type:            models.NotificationServiceStatusChanged,
			Channel:         models.ChannelDashboard,
			Title:           "Request Status Updated",
			Message:         fmt.Sprintf("Your service request moved from %s to %s", e.FromStatus, e.ToStatus),
			RelatedEntities: related,
		})
	}

	r.emitServiceRequestUpdated(e.ServiceRequestID, e.StudentUserID, event.Data)
	return nil
}

func (r *EventRouter) onServiceRequestApproval(ctx context.Context, event *events.DomainEvent) error {
	var e events.ServiceRequestApprovalEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{ServiceRequestID: e.ServiceRequestID}
	if e.ApprovalStatus == models.ApprovalApproved {
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.AgentID,
			Type:            models.NotificationServiceStatusChanged,
			Channel:         models.ChannelBoth,
			Title:           "Referral Approved",
			Message:         "Your referral has been approved; you can now work the case",
			RelatedEntities: related,
		})
	} else {
		message := "Your referral was rejected"
		if e.Reason != "" {
			message = fmt.Sprintf("Your referral was rejected: %s", e.Reason)
		}
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.AgentID,
			Type:            models.NotificationServiceStatusChanged,
			Channel:         models.ChannelBoth,
			Title:           "Referral Rejected",
			Message:         message,
			Priority:        models.PriorityHigh,
			RelatedEntities: related,
		})
	}

	r.emitServiceRequestUpdated(e.ServiceRequestID, e.StudentUserID, event.Data)
	return nil
}

// ===== TASK EVENTS =====

func (r *EventRouter) onTaskCreated(ctx context.Context, event *events.DomainEvent) error {
	var e events.TaskCreatedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	// Mirror the task priority on the notification only when it is pressing.
	priority := models.PriorityMedium
	if task, err := r.repo.Tasks().GetByID(ctx, e.TaskID); err == nil {
		if task.Priority == models.PriorityHigh || task.Priority == models.PriorityUrgent {
			priority = task.Priority
		}
	}

	r.deliver(ctx, CreateNotificationRequest{
		RecipientID: e.AssignedTo,
		Type:        models.NotificationTaskAssigned,
		Channel:     models.ChannelBoth,
		Title:       "New Task Assigned",
		Message:     fmt.Sprintf("You have a new task: %s", e.Title),
		Priority:    priority,
		ActionURL:   stringPtr("/tasks/" + e.TaskID),
		RelatedEntities: &models.RelatedEntities{
			ServiceRequestID: e.ServiceRequestID,
			TaskID:           e.TaskID,
		},
	})

	r.emitTaskUpdated(e.TaskID, e.ServiceRequestID, e.AssignedTo, event.Data)
	return nil
}

func (r *EventRouter) onTaskSubmitted(ctx context.Context, event *events.DomainEvent) error {
	var e events.TaskSubmittedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	r.deliver(ctx, CreateNotificationRequest{
		RecipientID: e.ReviewerID,
		Type:        models.NotificationTaskSubmitted,
		Channel:     models.ChannelBoth,
		Title:       "Task Submitted",
		Message:     fmt.Sprintf("A student submitted %q for review", e.Title),
		ActionURL:   stringPtr("/tasks/" + e.TaskID),
		RelatedEntities: &models.RelatedEntities{
			ServiceRequestID: e.ServiceRequestID,
			TaskID:           e.TaskID,
		},
	})

	r.emitTaskUpdated(e.TaskID, e.ServiceRequestID, e.SubmittedBy, event.Data)
	return nil
}

func (r *EventRouter) onTaskReviewed(ctx context.Context, event *events.DomainEvent) error {
	var e events.TaskReviewedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{
		ServiceRequestID: e.ServiceRequestID,
		TaskID:           e.TaskID,
	}

	if e.Outcome == models.TaskCompleted {
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.AssigneeID,
			Type:            models.NotificationTaskReviewed,
			Channel:         models.ChannelBoth,
			Title:           "Task Approved",
			Message:         fmt.Sprintf("Your task %q was approved", e.Title),
			RelatedEntities: related,
		})
	} else {
		r.deliver(ctx, CreateNotificationRequest{
			RecipientID:     e.AssigneeID,
			Type:            models.NotificationTaskReviewed,
			Channel:         models.ChannelBoth,
			Title:           "Revision Requested",
			Message:         fmt.Sprintf("Your task %q needs revision", e.Title),
			Priority:        models.PriorityHigh,
			ActionURL:       stringPtr("/tasks/" + e.TaskID),
			RelatedEntities: related,
		})
	}

	r.emitTaskUpdated(e.TaskID, e.ServiceRequestID, e.AssigneeID, event.Data)
	return nil
}

// ===== APPLICATION EVENTS =====

func (r *EventRouter) onApplicationCreated(ctx context.Context, event *events.DomainEvent) error {
	var e events.ApplicationCreatedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	related := &models.RelatedEntities{ApplicationID: e.ApplicationID}

	r.deliver(ctx, CreateNotificationRequest{
		RecipientID:     e.StudentUserID,
		Type:            models.NotificationApplicationCreated,
		Channel:         models.ChannelBoth,
		Title:           "Application Created",
		Message:         fmt.Sprintf("An application to %s (%s) was created for you", e.UniversityName, e.ProgramName),
		RelatedEntities: related,
	})
	r.notifyAdmins(ctx, CreateNotificationRequest{
		Type:            models.NotificationApplicationCreated,
		Channel:         models.ChannelDashboard,
		Title:           "New Application",
		Message:         fmt.Sprintf("An application to %s was created", e.UniversityName),
		RelatedEntities: related,
	})

	r.emitter.Emit(realtime.ApplicationRoom(e.ApplicationID), realtime.EventApplicationEvent, event.Data)
	r.emitter.EmitToUsers([]string{e.StudentUserID, e.AgentID}, realtime.EventApplicationEvent, event.Data)
	return nil
}

func (r *EventRouter) onApplicationStatusChanged(ctx context.Context, event *events.DomainEvent) error {
	var e events.ApplicationStatusChangedEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	priority := models.PriorityMedium
	if e.ToStatus == models.AppOfferReceived {
		priority = models.PriorityHigh
	}

	r.deliver(ctx, CreateNotificationRequest{
		RecipientID:     e.StudentUserID,
		Type:            models.NotificationAppStatusChanged,
		Channel:         models.ChannelBoth,
		Title:           "Application Update",
		Message:         fmt.Sprintf("Your application to %s is now %s", e.UniversityName, e.ToStatus),
		Priority:        priority,
		RelatedEntities: &models.RelatedEntities{ApplicationID: e.ApplicationID},
	})

	r.emitter.Emit(realtime.ApplicationRoom(e.ApplicationID), realtime.EventApplicationEvent, event.Data)
	r.emitter.EmitToUsers([]string{e.StudentUserID, e.AgentID}, realtime.EventApplicationEvent, event.Data)
	return nil
}

// ===== CHAT EVENTS =====

func (r *EventRouter) onChatMessageSent(ctx context.Context, event *events.DomainEvent) error {
	var e events.ChatMessageSentEvent
	if err := events.DecodeEventData(event, &e); err != nil {
		return err
	}

	r.emitter.Emit(realtime.ChatRoom(e.ServiceRequestID), realtime.EventNewChatMessage, event.Data)
	r.emitter.EmitToUsers(e.RecipientIDs, realtime.EventNewChatMessage, event.Data)
	return nil
}

// ===== HELPERS =====

func (r *EventRouter) deliver(ctx context.Context, req CreateNotificationRequest) {
	if req.RecipientID == "" {
		return
	}
	if _, err := r.notifications.Deliver(ctx, req); err != nil {
		r.logger.Warn("notification delivery failed",
			"recipient_id", req.RecipientID,
			"type", req.Type,
			"error", err)
	}
}

func (r *EventRouter) notifyAdmins(ctx context.Context, req CreateNotificationRequest) {
	admins, err := r.repo.Users().ListActiveByRole(ctx, models.RoleSuperAdmin)
	if err != nil {
		r.logger.Warn("failed to list admins for notification", "error", err)
		return
	}
	for _, admin := range admins {
		req.RecipientID = admin.ID
		r.deliver(ctx, req)
	}
}

func (r *EventRouter) emitServiceRequestUpdated(serviceRequestID, studentUserID string, data interface{}) {
	r.emitter.Emit(realtime.ServiceRequestRoom(serviceRequestID), realtime.EventServiceRequestEvent, data)
	r.emitter.Emit(realtime.UserRoom(studentUserID), realtime.EventServiceRequestEvent, data)
	r.emitter.Emit(realtime.RoleRoom(models.RoleSuperAdmin), realtime.EventServiceRequestEvent, data)
}

func (r *EventRouter) emitTaskUpdated(taskID, serviceRequestID, assigneeID string, data interface{}) {
	r.emitter.Emit(realtime.ServiceRequestRoom(serviceRequestID), realtime.EventTaskEvent, data)
	r.emitter.Emit(realtime.UserRoom(assigneeID), realtime.EventTaskEvent, data)
	r.emitter.Emit(realtime.RoleRoom(models.RoleSuperAdmin), realtime.EventTaskEvent, data)
}

func stringPtr(s string) *string {
	return &s
}
