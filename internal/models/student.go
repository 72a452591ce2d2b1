package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StudentDocuments holds the six named document slots, each a URL returned by
// the file gateway.
type StudentDocuments struct {
	Transcripts    string `json:"transcripts,omitempty"`
	TestScores     string `json:"test_scores,omitempty"`
	SOP            string `json:"sop,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Resume         string `json:"resume,omitempty"`
	Passport       string `json:"passport,omitempty"`
}

type Student struct {
	ID     string `json:"id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"uniqueIndex;not null;size:36"`

	// Advisory relationships (user ids)
	AssignedAgent     *string `json:"assigned_agent" gorm:"index;size:36"`
	AssignedCounselor *string `json:"assigned_counselor" gorm:"index;size:36"`
	ReferredBy        *string `json:"referred_by" gorm:"index;size:36"`

	// Academic profile
	CurrentEducation *string  `json:"current_education" gorm:"size:100"`
	GPA              *float64 `json:"gpa"`
	TargetCountry    *string  `json:"target_country" gorm:"size:100"`
	TargetIntake     *string  `json:"target_intake" gorm:"size:50"`

	SelectedServices datatypes.JSONSlice[ServiceType]       `json:"selected_services" gorm:"type:jsonb"`
	Documents        datatypes.JSONType[StudentDocuments]   `json:"documents" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (Student) TableName() string {
	return "students"
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
