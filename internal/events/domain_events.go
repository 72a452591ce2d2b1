package events

import (
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/google/uuid"
)

// EventType represents different types of domain events
type EventType string

const (
	// Service request events
	EventServiceRequestCreated       EventType = "service_request.created"
	EventServiceRequestAssigned      EventType = "service_request.assigned"
	EventServiceRequestStatusChanged EventType = "service_request.status_changed"
	EventServiceRequestApproval      EventType = "service_request.approval_changed"

	// Task events
	EventTaskCreated   EventType = "task.created"
	EventTaskSubmitted EventType = "task.submitted"
	EventTaskReviewed  EventType = "task.reviewed"

	// Application events
	EventApplicationCreated       EventType = "application.created"
	EventApplicationStatusChanged EventType = "application.status_changed"

	// Chat events
	EventChatMessageSent EventType = "chat.message_sent"

	// Account events
	EventUserRegistered EventType = "user.registered"

	// System events
	EventAdminBroadcast EventType = "system.admin_broadcast"
)

// DomainEvent is the envelope carried on the event bus.
type DomainEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const eventSource = "advisory-service"

// Service request event payloads

type ServiceRequestCreatedEvent struct {
	ServiceRequestID string             `json:"service_request_id"`
	StudentID        string             `json:"student_id"`
	StudentUserID    string             `json:"student_user_id"`
	ServiceType      models.ServiceType `json:"service_type"`
	CreatedBy        string             `json:"created_by"`
	CreatedByRole    models.UserRole    `json:"created_by_role"`
}

type ServiceRequestAssignedEvent struct {
	ServiceRequestID string `json:"service_request_id"`
	StudentUserID    string `json:"student_user_id"`
	CounselorID      string `json:"counselor_id"`
	AssignedBy       string `json:"assigned_by"`
}

type ServiceRequestStatusChangedEvent struct {
	ServiceRequestID string                      `json:"service_request_id"`
	StudentUserID    string                      `json:"student_user_id"`
	CounselorID      *string                     `json:"counselor_id,omitempty"`
	AgentID          *string                     `json:"agent_id,omitempty"`
	FromStatus       models.ServiceRequestStatus `json:"from_status"`
	ToStatus         models.ServiceRequestStatus `json:"to_status"`
	Progress         int                         `json:"progress"`
	ChangedBy        string                      `json:"changed_by"`
}

type ServiceRequestApprovalEvent struct {
	ServiceRequestID string                     `json:"service_request_id"`
	AgentID          string                     `json:"agent_id"`
	StudentUserID    string                     `json:"student_user_id"`
	ApprovalStatus   models.AgentApprovalStatus `json:"approval_status"`
	Reason           string                     `json:"reason,omitempty"`
	DecidedBy        string                     `json:"decided_by"`
}

// Task event payloads

type TaskCreatedEvent struct {
	TaskID           string          `json:"task_id"`
	ServiceRequestID string          `json:"service_request_id"`
	Title            string          `json:"title"`
	TaskType         models.TaskType `json:"task_type"`
	AssignedTo       string          `json:"assigned_to"`
	AssignedBy       string          `json:"assigned_by"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
}

type TaskSubmittedEvent struct {
	TaskID           string `json:"task_id"`
	ServiceRequestID string `json:"service_request_id"`
	Title            string `json:"title"`
	SubmittedBy      string `json:"submitted_by"`
	ReviewerID       string `json:"reviewer_id"`
	RevisionNumber   int    `json:"revision_number"`
}

type TaskReviewedEvent struct {
	TaskID           string            `json:"task_id"`
	ServiceRequestID string            `json:"service_request_id"`
	Title            string            `json:"title"`
	AssigneeID       string            `json:"assignee_id"`
	Outcome          models.TaskStatus `json:"outcome"`
	Rating           *int              `json:"rating,omitempty"`
	ReviewedBy       string            `json:"reviewed_by"`
}

// Application event payloads

type ApplicationCreatedEvent struct {
	ApplicationID  string `json:"application_id"`
	StudentID      string `json:"student_id"`
	StudentUserID  string `json:"student_user_id"`
	AgentID        string `json:"agent_id"`
	UniversityName string `json:"university_name"`
	ProgramName    string `json:"program_name"`
	CreatedBy      string `json:"created_by"`
}

type ApplicationStatusChangedEvent struct {
	ApplicationID  string                   `json:"application_id"`
	StudentUserID  string                   `json:"student_user_id"`
	AgentID        string                   `json:"agent_id"`
	UniversityName string                   `json:"university_name"`
	FromStatus     models.ApplicationStatus `json:"from_status"`
	ToStatus       models.ApplicationStatus `json:"to_status"`
	ChangedBy      string                   `json:"changed_by"`
}

// Chat event payload

type ChatMessageSentEvent struct {
	MessageID        string             `json:"message_id"`
	ServiceRequestID string             `json:"service_request_id"`
	SenderID         string             `json:"sender_id"`
	SenderRole       models.UserRole    `json:"sender_role"`
	MessageType      models.MessageType `json:"message_type"`
	RecipientIDs     []string           `json:"recipient_ids"`
}

// Account event payload

type UserRegisteredEvent struct {
	UserID     string          `json:"user_id"`
	Role       models.UserRole `json:"role"`
	ReferredBy *string         `json:"referred_by,omitempty"`
}

// System event payload

type AdminBroadcastEvent struct {
	RecipientIDs []string               `json:"recipient_ids"`
	Title        string                 `json:"title"`
	Message      string                 `json:"message"`
	SentBy       string                 `json:"sent_by"`
	TargetType   models.BroadcastTarget `json:"target_type"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// NewDomainEvent wraps a payload in the standard envelope.
func NewDomainEvent(eventType EventType, data interface{}) *DomainEvent {
	return &DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}
