package postgres

import (
	"context"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{db: db}
}

func (r *repository) Users() repositories.UserRepository {
	return NewUserPostgreSQL(r.db)
}

func (r *repository) Students() repositories.StudentRepository {
	return NewStudentPostgreSQL(r.db)
}

func (r *repository) ServiceRequests() repositories.ServiceRequestRepository {
	return NewServiceRequestPostgreSQL(r.db)
}

func (r *repository) Tasks() repositories.TaskRepository {
	return NewTaskPostgreSQL(r.db)
}

func (r *repository) Applications() repositories.ApplicationRepository {
	return NewApplicationPostgreSQL(r.db)
}

func (r *repository) Notifications() repositories.NotificationRepository {
	return NewNotificationPostgreSQL(r.db)
}

func (r *repository) Messages() repositories.MessageRepository {
	return NewMessagePostgreSQL(r.db)
}

func (r *repository) Audit() repositories.AuditRepository {
	return NewAuditPostgreSQL(r.db)
}

func (r *repository) WithTx(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// AutoMigrate creates or updates the schema for all entities.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.ServiceRequest{},
		&models.Task{},
		&models.Application{},
		&models.Notification{},
		&models.Message{},
		&models.AuditLog{},
	)
}

// applyPagination applies limit/offset with the service-wide defaults.
func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}
