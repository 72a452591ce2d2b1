package postgres

import (
	"context"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type MessagePostgreSQL struct {
	db *gorm.DB
}

func NewMessagePostgreSQL(db *gorm.DB) repositories.MessageRepository {
	return &MessagePostgreSQL{db: db}
}

func (m *MessagePostgreSQL) Create(ctx context.Context, message *models.Message) error {
	return m.db.WithContext(ctx).Create(message).Error
}

func (m *MessagePostgreSQL) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := m.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (m *MessagePostgreSQL) Update(ctx context.Context, message *models.Message) error {
	return m.db.WithContext(ctx).Save(message).Error
}

// ListByServiceRequest returns the thread in chronological order.
func (m *MessagePostgreSQL) ListByServiceRequest(ctx context.Context, serviceRequestID string, filters repositories.MessageFilters) ([]*models.Message, int64, error) {
	query := m.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("service_request_id = ?", serviceRequestID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []*models.Message
	err := applyPagination(query, filters.Limit, filters.Offset).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}
