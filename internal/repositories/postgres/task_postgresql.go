package postgres

import (
	"context"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type TaskPostgreSQL struct {
	db *gorm.DB
}

func NewTaskPostgreSQL(db *gorm.DB) repositories.TaskRepository {
	return &TaskPostgreSQL{db: db}
}

func (t *TaskPostgreSQL) Create(ctx context.Context, task *models.Task) error {
	return t.db.WithContext(ctx).Create(task).Error
}

func (t *TaskPostgreSQL) GetByID(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := t.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *TaskPostgreSQL) Update(ctx context.Context, task *models.Task) error {
	task.UpdatedAt = time.Now()
	return t.db.WithContext(ctx).Save(task).Error
}

func (t *TaskPostgreSQL) UpdateFromStatus(ctx context.Context, task *models.Task, expected models.TaskStatus) (bool, error) {
	task.UpdatedAt = time.Now()
	result := t.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND status = ?", task.ID, expected).
		Select("*").
		Omit("created_at").
		Updates(task)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (t *TaskPostgreSQL) Delete(ctx context.Context, id string) error {
	return t.db.WithContext(ctx).Delete(&models.Task{}, "id = ?", id).Error
}

func (t *TaskPostgreSQL) List(ctx context.Context, filters repositories.TaskFilters) ([]*models.Task, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Task{})

	if filters.ServiceRequestID != nil {
		query = query.Where("service_request_id = ?", *filters.ServiceRequestID)
	}
	if filters.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filters.AssignedTo)
	}
	if filters.AssignedBy != nil {
		query = query.Where("assigned_by = ?", *filters.AssignedBy)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DueBefore != nil {
		query = query.Where("due_date IS NOT NULL AND due_date < ?", *filters.DueBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tasks []*models.Task
	err := applyPagination(query, filters.Limit, filters.Offset).
		Order("due_date ASC NULLS LAST, created_at DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// CountByServiceRequest returns total and completed task counts for one case.
func (t *TaskPostgreSQL) CountByServiceRequest(ctx context.Context, serviceRequestID string) (repositories.TaskCounts, error) {
	var counts repositories.TaskCounts
	err := t.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("service_request_id = ?", serviceRequestID).
		Count(&counts.Total).Error
	if err != nil {
		return counts, err
	}
	err = t.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("service_request_id = ? AND status = ?", serviceRequestID, models.TaskCompleted).
		Count(&counts.Completed).Error
	return counts, err
}
