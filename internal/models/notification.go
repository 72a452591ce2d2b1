package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationServiceRequestCreated  NotificationType = "SERVICE_REQUEST_CREATED"
	NotificationServiceRequestReferred NotificationType = "SERVICE_REQUEST_REFERRED"
	NotificationServiceRequestAssigned NotificationType = "SERVICE_REQUEST_ASSIGNED"
	NotificationServiceStatusChanged   NotificationType = "SERVICE_REQUEST_STATUS_CHANGED"
	NotificationServiceCompleted       NotificationType = "SERVICE_COMPLETED"
	NotificationTaskAssigned           NotificationType = "TASK_ASSIGNED"
	NotificationTaskSubmitted          NotificationType = "TASK_SUBMITTED"
	NotificationTaskReviewed           NotificationType = "TASK_REVIEWED"
	NotificationApplicationCreated     NotificationType = "APPLICATION_CREATED"
	NotificationAppStatusChanged       NotificationType = "APPLICATION_STATUS_CHANGED"
	NotificationAppDocUploaded         NotificationType = "APPLICATION_DOC_UPLOADED"
	NotificationAdminBroadcast         NotificationType = "ADMIN_BROADCAST"
)

type NotificationChannel string

const (
	ChannelEmail     NotificationChannel = "EMAIL"
	ChannelDashboard NotificationChannel = "DASHBOARD"
	ChannelBoth      NotificationChannel = "BOTH"
)

type BroadcastTarget string

const (
	TargetAll  BroadcastTarget = "ALL"
	TargetRole BroadcastTarget = "ROLE"
	TargetUser BroadcastTarget = "USER"
)

// RelatedEntities ties a notification back to the case/task that produced it
// so the dashboard can deep-link.
type RelatedEntities struct {
	ServiceRequestID string `json:"service_request_id,omitempty"`
	TaskID           string `json:"task_id,omitempty"`
	ApplicationID    string `json:"application_id,omitempty"`
}

type Notification struct {
	ID          string              `json:"id" gorm:"primaryKey;size:36"`
	RecipientID string              `json:"recipient_id" gorm:"not null;index:idx_notif_recipient_read;size:36"`
	Type        NotificationType    `json:"type" gorm:"not null;index;size:40" validate:"required"`
	Channel     NotificationChannel `json:"channel" gorm:"not null;default:DASHBOARD;size:10" validate:"required,channel"`
	Title       string              `json:"title" gorm:"not null;size:255" validate:"required,max=255"`
	Message     string              `json:"message" gorm:"type:text" validate:"required"`
	Priority    Priority            `json:"priority" gorm:"default:MEDIUM;size:10" validate:"omitempty,priority"`

	ActionURL  *string `json:"action_url,omitempty" gorm:"size:500"`
	ActionText *string `json:"action_text,omitempty" gorm:"size:100"`

	// Read state
	IsRead bool       `json:"is_read" gorm:"default:false;index:idx_notif_recipient_read,priority:2"`
	ReadAt *time.Time `json:"read_at"`

	// Email delivery outcome; failures are recorded, never propagated.
	EmailSent   bool       `json:"email_sent" gorm:"default:false"`
	EmailSentAt *time.Time `json:"email_sent_at"`
	EmailError  *string    `json:"email_error,omitempty" gorm:"type:text"`

	// Admin broadcast bookkeeping
	SentBy     *string          `json:"sent_by,omitempty" gorm:"size:36"`
	TargetType *BroadcastTarget `json:"target_type,omitempty" gorm:"size:10"`
	TargetRole *UserRole        `json:"target_role,omitempty" gorm:"size:20"`
	IsArchived bool             `json:"is_archived" gorm:"default:false;index"`

	RelatedEntities *datatypes.JSONType[RelatedEntities] `json:"related_entities,omitempty" gorm:"type:jsonb"`
	Metadata        datatypes.JSONMap                    `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

// WantsDashboard reports whether the notification should be pushed over the
// realtime connection.
func (n *Notification) WantsDashboard() bool {
	return n.Channel == ChannelDashboard || n.Channel == ChannelBoth
}

func (n *Notification) WantsEmail() bool {
	return n.Channel == ChannelEmail || n.Channel == ChannelBoth
}
