package postgres

import (
	"context"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type AuditPostgreSQL struct {
	db *gorm.DB
}

func NewAuditPostgreSQL(db *gorm.DB) repositories.AuditRepository {
	return &AuditPostgreSQL{db: db}
}

func (a *AuditPostgreSQL) Create(ctx context.Context, entry *models.AuditLog) error {
	return a.db.WithContext(ctx).Create(entry).Error
}

func (a *AuditPostgreSQL) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLog, int64, error) {
	query := a.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []*models.AuditLog
	err := applyPagination(query, limit, offset).
		Order("timestamp DESC").
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}
