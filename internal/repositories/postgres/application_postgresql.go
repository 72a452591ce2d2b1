package postgres

import (
	"context"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type ApplicationPostgreSQL struct {
	db *gorm.DB
}

func NewApplicationPostgreSQL(db *gorm.DB) repositories.ApplicationRepository {
	return &ApplicationPostgreSQL{db: db}
}

func (a *ApplicationPostgreSQL) Create(ctx context.Context, app *models.Application) error {
	return a.db.WithContext(ctx).Create(app).Error
}

// GetByID ignores soft-deleted rows so they behave like missing records.
func (a *ApplicationPostgreSQL) GetByID(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	err := a.db.WithContext(ctx).
		Preload("Student").
		First(&app, "id = ? AND is_deleted = ?", id, false).Error
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (a *ApplicationPostgreSQL) Update(ctx context.Context, app *models.Application) error {
	app.UpdatedAt = time.Now()
	return a.db.WithContext(ctx).Save(app).Error
}

func (a *ApplicationPostgreSQL) UpdateFromStatus(ctx context.Context, app *models.Application, expected models.ApplicationStatus) (bool, error) {
	app.UpdatedAt = time.Now()
	result := a.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ? AND is_deleted = ?", app.ID, expected, false).
		Select("*").
		Omit("created_at").
		Updates(app)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (a *ApplicationPostgreSQL) SoftDelete(ctx context.Context, id string) error {
	return a.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now()}).Error
}

func (a *ApplicationPostgreSQL) List(ctx context.Context, filters repositories.ApplicationFilters) ([]*models.Application, int64, error) {
	query := a.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("is_deleted = ?", false)

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.AgentID != nil {
		query = query.Where("agent_id = ?", *filters.AgentID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apps []*models.Application
	err := applyPagination(query, filters.Limit, filters.Offset).
		Preload("Student").
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, 0, err
	}

	return apps, total, nil
}
