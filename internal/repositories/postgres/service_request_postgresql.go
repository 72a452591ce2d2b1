package postgres

import (
	"context"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type ServiceRequestPostgreSQL struct {
	db *gorm.DB
}

func NewServiceRequestPostgreSQL(db *gorm.DB) repositories.ServiceRequestRepository {
	return &ServiceRequestPostgreSQL{db: db}
}

func (s *ServiceRequestPostgreSQL) Create(ctx context.Context, sr *models.ServiceRequest) error {
	return s.db.WithContext(ctx).Create(sr).Error
}

func (s *ServiceRequestPostgreSQL) GetByID(ctx context.Context, id string) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := s.db.WithContext(ctx).
		Preload("Student").
		First(&sr, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sr, nil
}

func (s *ServiceRequestPostgreSQL) Update(ctx context.Context, sr *models.ServiceRequest) error {
	sr.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).Save(sr).Error
}

// UpdateFromStatus saves the full row guarded by a status compare-and-set so
// two concurrent transitions out of the same state cannot both win.
func (s *ServiceRequestPostgreSQL) UpdateFromStatus(ctx context.Context, sr *models.ServiceRequest, expected models.ServiceRequestStatus) (bool, error) {
	sr.UpdatedAt = time.Now()
	result := s.db.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ? AND status = ?", sr.ID, expected).
		Select("*").
		Omit("created_at").
		Updates(sr)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *ServiceRequestPostgreSQL) List(ctx context.Context, filters repositories.ServiceRequestFilters) ([]*models.ServiceRequest, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ServiceRequest{})

	if filters.StudentID != nil {
		query = query.Where("student_id = ?", *filters.StudentID)
	}
	if filters.AssignedAgent != nil {
		query = query.Where("assigned_agent = ?", *filters.AssignedAgent)
	}
	if filters.AssignedCounselor != nil {
		query = query.Where("assigned_counselor = ?", *filters.AssignedCounselor)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ServiceType != nil {
		query = query.Where("service_type = ?", *filters.ServiceType)
	}
	if filters.Priority != nil {
		query = query.Where("priority = ?", *filters.Priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []*models.ServiceRequest
	err := applyPagination(query, filters.Limit, filters.Offset).
		Preload("Student").
		Order("CASE priority WHEN 'URGENT' THEN 0 WHEN 'HIGH' THEN 1 WHEN 'MEDIUM' THEN 2 ELSE 3 END, deadline ASC NULLS LAST, created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// HasOpenRequest returns the student's non-terminal request of the given
// type, nil when none exists.
func (s *ServiceRequestPostgreSQL) HasOpenRequest(ctx context.Context, studentID string, serviceType models.ServiceType) (*models.ServiceRequest, error) {
	var sr models.ServiceRequest
	err := s.db.WithContext(ctx).
		Where("student_id = ? AND service_type = ? AND status NOT IN ?",
			studentID, serviceType,
			[]models.ServiceRequestStatus{models.SRCompleted, models.SRCancelled}).
		First(&sr).Error
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &sr, nil
}
