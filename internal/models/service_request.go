package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceType string

const (
	ServiceProfileAssessment      ServiceType = "PROFILE_ASSESSMENT"
	ServiceUniversityShortlisting ServiceType = "UNIVERSITY_SHORTLISTING"
	ServiceApplicationAssistance  ServiceType = "APPLICATION_ASSISTANCE"
	ServiceVisaGuidance           ServiceType = "VISA_GUIDANCE"
	ServiceScholarshipSearch      ServiceType = "SCHOLARSHIP_SEARCH"
	ServiceLoanAssistance         ServiceType = "LOAN_ASSISTANCE"
	ServiceAccommodationHelp      ServiceType = "ACCOMMODATION_HELP"
	ServicePreDeparture           ServiceType = "PRE_DEPARTURE_ORIENTATION"
)

type ServiceRequestStatus string

const (
	SRPendingAssignment ServiceRequestStatus = "PENDING_ADMIN_ASSIGNMENT"
	SRAssigned          ServiceRequestStatus = "ASSIGNED"
	SRInProgress        ServiceRequestStatus = "IN_PROGRESS"
	SRWaitingStudent    ServiceRequestStatus = "WAITING_STUDENT"
	SROnHold            ServiceRequestStatus = "ON_HOLD"
	SRCompleted         ServiceRequestStatus = "COMPLETED"
	SRCancelled         ServiceRequestStatus = "CANCELLED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type AgentApprovalStatus string

const (
	ApprovalPending  AgentApprovalStatus = "PENDING_APPROVAL"
	ApprovalApproved AgentApprovalStatus = "APPROVED"
	ApprovalRejected AgentApprovalStatus = "REJECTED"
)

// StatusHistoryEntry records the status held *before* the transition, the
// actor, and an optional note. The same shape is used by tasks.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
	Note      string    `json:"note,omitempty"`
}

type CaseNote struct {
	Text       string    `json:"text"`
	AddedBy    string    `json:"added_by"`
	AddedAt    time.Time `json:"added_at"`
	IsInternal bool      `json:"is_internal"`
}

// FileRef is a stored file reference attached to cases, tasks, applications
// and chat messages.
type FileRef struct {
	URL          string    `json:"url"`
	PublicID     string    `json:"public_id,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	Format       string    `json:"format,omitempty"`
	Size         int64     `json:"size,omitempty"`
	UploadedBy   string    `json:"uploaded_by,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at,omitempty"`
}

type ServiceRequest struct {
	ID          string               `json:"id" gorm:"primaryKey;size:36"`
	StudentID   string               `json:"student_id" gorm:"not null;index:idx_sr_student_status;size:36"`
	ServiceType ServiceType          `json:"service_type" gorm:"not null;size:40" validate:"required,service_type"`
	Status      ServiceRequestStatus `json:"status" gorm:"not null;default:PENDING_ADMIN_ASSIGNMENT;index:idx_sr_student_status,priority:2;size:30"`
	Progress    int                  `json:"progress" gorm:"default:5" validate:"min=0,max=100"`
	Priority    Priority             `json:"priority" gorm:"default:MEDIUM;size:10" validate:"omitempty,priority"`
	Deadline    *time.Time           `json:"deadline"`

	// Assignment (user ids)
	AssignedCounselor *string    `json:"assigned_counselor" gorm:"index;size:36"`
	AssignedAgent     *string    `json:"assigned_agent" gorm:"index:idx_sr_agent_queue;size:36"`
	AssignedBy        *string    `json:"assigned_by" gorm:"size:36"`
	AssignedAt        *time.Time `json:"assigned_at"`

	// Agent-initiated approval workflow
	IsAgentInitiated    bool                 `json:"is_agent_initiated" gorm:"default:false"`
	AgentApprovalStatus *AgentApprovalStatus `json:"agent_approval_status" gorm:"size:20"`
	ApprovedBy          *string              `json:"approved_by" gorm:"size:36"`
	ApprovedAt          *time.Time           `json:"approved_at"`
	RejectedAt          *time.Time           `json:"rejected_at"`
	ApprovalNotes       *string              `json:"approval_notes" gorm:"type:text"`

	StatusHistory datatypes.JSONSlice[StatusHistoryEntry] `json:"status_history" gorm:"type:jsonb"`
	Notes         datatypes.JSONSlice[CaseNote]           `json:"notes" gorm:"type:jsonb"`
	Documents     datatypes.JSONSlice[FileRef]            `json:"documents" gorm:"type:jsonb"`
	Metadata      datatypes.JSONMap                       `json:"metadata" gorm:"type:jsonb"`

	AppliedAt   time.Time  `json:"applied_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CancelledAt *time.Time `json:"cancelled_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (ServiceRequest) TableName() string {
	return "service_requests"
}

func (sr *ServiceRequest) BeforeCreate(tx *gorm.DB) error {
	if sr.ID == "" {
		sr.ID = uuid.NewString()
	}
	if sr.AppliedAt.IsZero() {
		sr.AppliedAt = time.Now()
	}
	return nil
}

// IsTerminal reports whether the case can no longer change status.
func (sr *ServiceRequest) IsTerminal() bool {
	return sr.Status == SRCompleted || sr.Status == SRCancelled
}

// AgentModifiable reports whether the owning agent may run modifying
// operations: agent-initiated cases are frozen until a super admin approves.
func (sr *ServiceRequest) AgentModifiable() bool {
	if !sr.IsAgentInitiated {
		return true
	}
	return sr.AgentApprovalStatus != nil && *sr.AgentApprovalStatus == ApprovalApproved
}
