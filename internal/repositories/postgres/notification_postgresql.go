package postgres

import (
	"context"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"gorm.io/gorm"
)

type NotificationPostgreSQL struct {
	db *gorm.DB
}

func NewNotificationPostgreSQL(db *gorm.DB) repositories.NotificationRepository {
	return &NotificationPostgreSQL{db: db}
}

func (n *NotificationPostgreSQL) Create(ctx context.Context, notification *models.Notification) error {
	return n.db.WithContext(ctx).Create(notification).Error
}

func (n *NotificationPostgreSQL) CreateBatch(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	return n.db.WithContext(ctx).CreateInBatches(notifications, 100).Error
}

func (n *NotificationPostgreSQL) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var notification models.Notification
	if err := n.db.WithContext(ctx).First(&notification, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (n *NotificationPostgreSQL) Update(ctx context.Context, notification *models.Notification) error {
	return n.db.WithContext(ctx).Save(notification).Error
}

func (n *NotificationPostgreSQL) Delete(ctx context.Context, id string) error {
	return n.db.WithContext(ctx).Delete(&models.Notification{}, "id = ?", id).Error
}

func (n *NotificationPostgreSQL) List(ctx context.Context, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	query := n.db.WithContext(ctx).Model(&models.Notification{})

	if filters.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filters.RecipientID)
	}
	if filters.Type != nil {
		query = query.Where("type = ?", *filters.Type)
	}
	if filters.IsRead != nil {
		query = query.Where("is_read = ?", *filters.IsRead)
	}
	if filters.IsArchived != nil {
		query = query.Where("is_archived = ?", *filters.IsArchived)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []*models.Notification
	err := applyPagination(query, filters.Limit, filters.Offset).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// MarkAllRead flips every unread notification for the recipient and returns
// how many rows changed.
func (n *NotificationPostgreSQL) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	now := time.Now()
	result := n.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

func (n *NotificationPostgreSQL) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var count int64
	err := n.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ? AND is_archived = ?", recipientID, false, false).
		Count(&count).Error
	return count, err
}
