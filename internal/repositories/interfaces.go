package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Role     *models.UserRole `json:"role"`
	IsActive *bool            `json:"is_active"`
	Search   string           `json:"search"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type ServiceRequestFilters struct {
	StudentID         *string                      `json:"student_id"`
	AssignedAgent     *string                      `json:"assigned_agent"`
	AssignedCounselor *string                      `json:"assigned_counselor"`
	Status            *models.ServiceRequestStatus `json:"status"`
	ServiceType       *models.ServiceType          `json:"service_type"`
	Priority          *models.Priority             `json:"priority"`
	Limit             int                          `json:"limit"`
	Offset            int                          `json:"offset"`
}

type TaskFilters struct {
	ServiceRequestID *string            `json:"service_request_id"`
	AssignedTo       *string            `json:"assigned_to"`
	AssignedBy       *string            `json:"assigned_by"`
	Status           *models.TaskStatus `json:"status"`
	DueBefore        *time.Time         `json:"due_before"`
	Limit            int                `json:"limit"`
	Offset           int                `json:"offset"`
}

type ApplicationFilters struct {
	StudentID *string                   `json:"student_id"`
	AgentID   *string                   `json:"agent_id"`
	Status    *models.ApplicationStatus `json:"status"`
	Limit     int                       `json:"limit"`
	Offset    int                       `json:"offset"`
}

type NotificationFilters struct {
	RecipientID *string                  `json:"recipient_id"`
	Type        *models.NotificationType `json:"type"`
	IsRead      *bool                    `json:"is_read"`
	IsArchived  *bool                    `json:"is_archived"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
}

type MessageFilters struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// TaskCounts feeds the task-completion cascade into case progress.
type TaskCounts struct {
	Total     int64 `json:"total"`
	Completed int64 `json:"completed"`
}

// ===== REPOSITORY INTERFACES =====

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	ListActive(ctx context.Context) ([]*models.User, error)
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id string) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
	Update(ctx context.Context, student *models.Student) error
}

type ServiceRequestRepository interface {
	Create(ctx context.Context, sr *models.ServiceRequest) error
	GetByID(ctx context.Context, id string) (*models.ServiceRequest, error)
	Update(ctx context.Context, sr *models.ServiceRequest) error
	// UpdateFromStatus persists the request only if the stored status still
	// matches expected; reports false when a concurrent writer won.
	UpdateFromStatus(ctx context.Context, sr *models.ServiceRequest, expected models.ServiceRequestStatus) (bool, error)
	List(ctx context.Context, filters ServiceRequestFilters) ([]*models.ServiceRequest, int64, error)
	HasOpenRequest(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceRequest, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id string) (*models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	UpdateFromStatus(ctx context.Context, task *models.Task, expected models.TaskStatus) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters TaskFilters) ([]*models.Task, int64, error)
	CountByServiceRequest(ctx context.Context, serviceRequestID string) (TaskCounts, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id string) (*models.Application, error)
	Update(ctx context.Context, app *models.Application) error
	UpdateFromStatus(ctx context.Context, app *models.Application, expected models.ApplicationStatus) (bool, error)
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, filters ApplicationFilters) ([]*models.Application, int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	CreateBatch(ctx context.Context, notifications []*models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	Update(ctx context.Context, notification *models.Notification) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters NotificationFilters) ([]*models.Notification, int64, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Update(ctx context.Context, message *models.Message) error
	ListByServiceRequest(ctx context.Context, serviceRequestID string, filters MessageFilters) ([]*models.Message, int64, error)
}

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLog, int64, error)
}

// Repository aggregates the per-entity repositories.
type Repository interface {
	Users() UserRepository
	Students() StudentRepository
	ServiceRequests() ServiceRequestRepository
	Tasks() TaskRepository
	Applications() ApplicationRepository
	Notifications() NotificationRepository
	Messages() MessageRepository
	Audit() AuditRepository

	// WithTx runs fn with a repository bound to a single transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
}

// IsNotFoundError reports whether err is the storage layer's missing-row error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
