package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskPending          TaskStatus = "PENDING"
	TaskInProgress       TaskStatus = "IN_PROGRESS"
	TaskSubmitted        TaskStatus = "SUBMITTED"
	TaskUnderReview      TaskStatus = "UNDER_REVIEW"
	TaskRevisionRequired TaskStatus = "REVISION_REQUIRED"
	TaskCompleted        TaskStatus = "COMPLETED"
)

type TaskType string

const (
	TaskDocumentUpload TaskType = "DOCUMENT_UPLOAD"
	TaskFormFilling    TaskType = "FORM_FILLING"
	TaskInfoGathering  TaskType = "INFORMATION_GATHERING"
	TaskReview         TaskType = "REVIEW"
	TaskPayment        TaskType = "PAYMENT"
	TaskOther          TaskType = "OTHER"
)

type TaskSubmission struct {
	Text        string    `json:"text"`
	Files       []FileRef `json:"files,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type TaskFeedback struct {
	Text       string    `json:"text"`
	ProvidedBy string    `json:"provided_by"`
	ProvidedAt time.Time `json:"provided_at"`
	Rating     *int      `json:"rating,omitempty"`
}

// TaskRevision is a superseded submission together with the feedback that
// sent it back.
type TaskRevision struct {
	Submission TaskSubmission `json:"submission"`
	Feedback   *TaskFeedback  `json:"feedback,omitempty"`
	ArchivedAt time.Time      `json:"archived_at"`
}

type Task struct {
	ID               string     `json:"id" gorm:"primaryKey;size:36"`
	ServiceRequestID string     `json:"service_request_id" gorm:"not null;index:idx_task_sr_status;size:36"`
	TaskType         TaskType   `json:"task_type" gorm:"not null;size:30" validate:"required,task_type"`
	Title            string     `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description      string     `json:"description" gorm:"type:text" validate:"required"`
	Instructions     string     `json:"instructions" gorm:"type:text"`
	AssignedTo       string     `json:"assigned_to" gorm:"not null;index:idx_task_assignee;size:36"`
	AssignedBy       string     `json:"assigned_by" gorm:"not null;index;size:36"`
	Status           TaskStatus `json:"status" gorm:"not null;default:PENDING;index:idx_task_sr_status,priority:2;index:idx_task_assignee,priority:2;size:20"`
	Priority         Priority   `json:"priority" gorm:"default:MEDIUM;size:10" validate:"omitempty,priority"`
	DueDate          *time.Time `json:"due_date" gorm:"index:idx_task_assignee,priority:3"`

	Submission      *datatypes.JSONType[TaskSubmission]     `json:"submission,omitempty" gorm:"type:jsonb"`
	Feedback        *datatypes.JSONType[TaskFeedback]       `json:"feedback,omitempty" gorm:"type:jsonb"`
	RevisionHistory datatypes.JSONSlice[TaskRevision]       `json:"revision_history" gorm:"type:jsonb"`
	StatusHistory   datatypes.JSONSlice[StatusHistoryEntry] `json:"status_history" gorm:"type:jsonb"`

	CompletedAt *time.Time `json:"completed_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	ServiceRequest *ServiceRequest `json:"service_request,omitempty" gorm:"foreignKey:ServiceRequestID"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// CurrentSubmission unwraps the jsonb submission column, nil when the task
// has never been submitted.
func (t *Task) CurrentSubmission() *TaskSubmission {
	if t.Submission == nil {
		return nil
	}
	sub := t.Submission.Data()
	return &sub
}

func (t *Task) CurrentFeedback() *TaskFeedback {
	if t.Feedback == nil {
		return nil
	}
	fb := t.Feedback.Data()
	return &fb
}
