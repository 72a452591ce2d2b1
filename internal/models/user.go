package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleAgent      UserRole = "agent"
	RoleCounselor  UserRole = "counselor"
	RoleSuperAdmin UserRole = "super_admin"
)

type User struct {
	ID           string   `json:"id" gorm:"primaryKey;size:36"`
	FullName     string   `json:"full_name" gorm:"not null;size:100" validate:"required,min=1,max=100"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null;size:255" validate:"required,email"`
	PasswordHash string   `json:"-" gorm:"not null;size:255"`
	Role         UserRole `json:"role" gorm:"not null;index;size:20" validate:"required,user_role"`

	// Profile info
	PhoneNumber *string `json:"phone_number" gorm:"size:20"`
	AvatarURL   *string `json:"avatar_url" gorm:"size:500"`
	Country     *string `json:"country" gorm:"size:100"`

	// Status
	IsActive    bool       `json:"is_active" gorm:"default:true;index"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeSave case-folds the email so uniqueness holds regardless of how the
// address was entered.
func (u *User) BeforeSave(tx *gorm.DB) error {
	u.Email = NormalizeEmail(u.Email)
	return nil
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DashboardURL returns the role-specific landing path handed back on login.
func (u *User) DashboardURL() string {
	switch u.Role {
	case RoleAgent:
		return "/agent/dashboard"
	case RoleCounselor:
		return "/counselor/dashboard"
	case RoleSuperAdmin:
		return "/admin/dashboard"
	default:
		return "/dashboard"
	}
}
