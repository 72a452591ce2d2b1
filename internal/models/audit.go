package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditAction string

const (
	AuditServiceApplied    AuditAction = "service_applied"
	AuditServiceAssigned   AuditAction = "service_assigned"
	AuditServiceStatus     AuditAction = "service_status_changed"
	AuditServiceProgress   AuditAction = "service_progress_updated"
	AuditServiceApproved   AuditAction = "service_referral_approved"
	AuditServiceRejected   AuditAction = "service_referral_rejected"
	AuditTaskCreated       AuditAction = "task_created"
	AuditTaskStatus        AuditAction = "task_status_changed"
	AuditTaskSubmitted     AuditAction = "task_submitted"
	AuditTaskReviewed      AuditAction = "task_reviewed"
	AuditTaskDeleted       AuditAction = "task_deleted"
	AuditAppCreated        AuditAction = "application_created"
	AuditAppStatus         AuditAction = "application_status_changed"
	AuditAppDeleted        AuditAction = "application_deleted"
	AuditFileUploaded      AuditAction = "file_uploaded"
	AuditFileDeleted       AuditAction = "file_deleted"
	AuditUserLogin         AuditAction = "user_login"
	AuditUserSignup        AuditAction = "user_signup"
	AuditStudentReferred   AuditAction = "student_referred"
	AuditStudentDocument   AuditAction = "student_document_set"
	AuditBroadcastSent     AuditAction = "admin_broadcast_sent"
)

// AuditLog rows are append-only; nothing in the codebase updates or deletes
// them.
type AuditLog struct {
	ID        string      `json:"id" gorm:"primaryKey;size:36"`
	ActorID   string      `json:"actor_id" gorm:"not null;index;size:36"`
	ActorRole UserRole    `json:"actor_role" gorm:"not null;size:20"`
	Action    AuditAction `json:"action" gorm:"not null;index;size:50"`

	EntityType string `json:"entity_type" gorm:"not null;size:30;index:idx_audit_entity"`
	EntityID   string `json:"entity_id" gorm:"size:36;index:idx_audit_entity,priority:2"`

	// Minimal material change, typically {"status": ...}.
	PreviousState datatypes.JSON `json:"previous_state,omitempty" gorm:"type:jsonb"`
	NewState      datatypes.JSON `json:"new_state,omitempty" gorm:"type:jsonb"`

	Details   string  `json:"details" gorm:"type:text"`
	IPAddress *string `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent *string `json:"user_agent,omitempty" gorm:"type:text"`

	Timestamp time.Time `json:"timestamp" gorm:"index;autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	return nil
}
