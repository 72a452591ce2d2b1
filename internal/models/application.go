package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplicationStatus values follow the admissions pipeline order; transitions
// are restricted to the table in transitions.go.
type ApplicationStatus string

const (
	AppAssigned       ApplicationStatus = "Assigned"
	AppDocsPending    ApplicationStatus = "Docs Pending"
	AppDocsVerified   ApplicationStatus = "Docs Verified"
	AppSubmitted      ApplicationStatus = "Submitted"
	AppUnderReview    ApplicationStatus = "Under Review"
	AppOfferReceived  ApplicationStatus = "Offer Received"
	AppRejected       ApplicationStatus = "Rejected"
	AppAccepted       ApplicationStatus = "Accepted"
	AppVisaProcessing ApplicationStatus = "Visa Processing"
	AppCompleted      ApplicationStatus = "Completed"
)

type ChecklistItem struct {
	Item        string     `json:"item"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`
}

type Remark struct {
	Text    string    `json:"text"`
	AddedBy string    `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// TimelineEntry is an append-only human-readable log line; status-change
// entries also carry the target status for invariant checks.
type TimelineEntry struct {
	Event     string     `json:"event"`
	Status    *string    `json:"status,omitempty"`
	Actor     string     `json:"actor"`
	Timestamp time.Time  `json:"timestamp"`
}

type ApplicationDocument struct {
	FileRef
	UploadedRole UserRole `json:"uploaded_role"`
}

type Application struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	StudentID  string `json:"student_id" gorm:"not null;index:idx_app_student_status;size:36"`
	AgentID    string `json:"agent_id" gorm:"not null;index:idx_app_agent_status;size:36"`
	AssignedBy string `json:"assigned_by" gorm:"not null;size:10"` // "admin" or "agent"

	// University / program details
	UniversityName string  `json:"university_name" gorm:"not null;size:200" validate:"required"`
	ProgramName    string  `json:"program_name" gorm:"not null;size:200" validate:"required"`
	Country        string  `json:"country" gorm:"size:100"`
	Intake         *string `json:"intake" gorm:"size:50"`

	Status ApplicationStatus `json:"status" gorm:"not null;default:Assigned;index:idx_app_student_status,priority:2;index:idx_app_agent_status,priority:2;size:20"`

	Documents datatypes.JSONSlice[ApplicationDocument] `json:"documents" gorm:"type:jsonb"`
	Checklist datatypes.JSONSlice[ChecklistItem]       `json:"checklist" gorm:"type:jsonb"`
	Remarks   datatypes.JSONSlice[Remark]              `json:"remarks" gorm:"type:jsonb"`
	Timeline  datatypes.JSONSlice[TimelineEntry]       `json:"timeline" gorm:"type:jsonb"`

	IsDeleted bool `json:"-" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Student *Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (Application) TableName() string {
	return "applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
