package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MessageType string

const (
	MessageText             MessageType = "TEXT"
	MessageFile             MessageType = "FILE"
	MessageSystem           MessageType = "SYSTEM"
	MessageTaskNotification MessageType = "TASK_NOTIFICATION"
)

type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type Message struct {
	ID               string      `json:"id" gorm:"primaryKey;size:36"`
	ServiceRequestID string      `json:"service_request_id" gorm:"not null;index;size:36"`
	SenderID         string      `json:"sender_id" gorm:"not null;index;size:36"`
	SenderRole       UserRole    `json:"sender_role" gorm:"not null;size:20"`
	RecipientID      *string     `json:"recipient_id,omitempty" gorm:"size:36"`
	Content          string      `json:"content" gorm:"type:text" validate:"required"`
	MessageType      MessageType `json:"message_type" gorm:"default:TEXT;size:20"`

	Attachments datatypes.JSONSlice[FileRef]     `json:"attachments" gorm:"type:jsonb"`
	ReadBy      datatypes.JSONSlice[ReadReceipt] `json:"read_by" gorm:"type:jsonb"`

	IsEdited  bool `json:"is_edited" gorm:"default:false"`
	IsDeleted bool `json:"-" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// ReadByUser reports whether the user already appears in the read receipts.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
