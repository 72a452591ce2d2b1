package services

import (
	"context"
	"fmt"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/cache"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/realtime"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"gorm.io/datatypes"
)

// RealtimeEmitter is the slice of the realtime hub the services need.
type RealtimeEmitter interface {
	Emit(room, event string, data interface{})
	EmitToUsers(userIDs []string, event string, data interface{})
}

// NotificationService is the single entry point for creating notifications
// and managing their read state.
type NotificationService interface {
	// Deliver persists one notification and fans it out on the requested
	// channels. Email failure is recorded on the row, never returned.
	Deliver(ctx context.Context, req CreateNotificationRequest) (*DeliveryReport, error)

	// Broadcast resolves an admin broadcast target to a recipient set and
	// delivers to each.
	Broadcast(ctx context.Context, sentBy string, req BroadcastRequest) (*BroadcastReport, error)

	List(ctx context.Context, userID string, filters repositories.NotificationFilters) ([]*models.Notification, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, notificationID, userID string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	Archive(ctx context.Context, notificationID, userID string, archived bool) error
	Delete(ctx context.Context, notificationID, userID string) error
}

type notificationService struct {
	repo    repositories.Repository
	email   EmailSender
	emitter RealtimeEmitter
	unread  *cache.UnreadCounter
	logger  utils.Logger
}

func NewNotificationService(
	repo repositories.Repository,
	email EmailSender,
	emitter RealtimeEmitter,
	unread *cache.UnreadCounter,
	logger utils.Logger,
) NotificationService {
	return &notificationService{
		repo:    repo,
		email:   email,
		emitter: emitter,
		unread:  unread,
		logger:  logger,
	}
}

type CreateNotificationRequest struct {
	RecipientID     string                     `json:"recipient_id" validate:"required"`
	Type            models.NotificationType    `json:"type" validate:"required"`
	Channel         models.NotificationChannel `json:"channel" validate:"required,channel"`
	Title           string                     `json:"title" validate:"required,max=255"`
	Message         string                     `json:"message" validate:"required"`
	Priority        models.Priority            `json:"priority" validate:"omitempty,priority"`
	ActionURL       *string                    `json:"action_url,omitempty"`
	ActionText      *string                    `json:"action_text,omitempty"`
	RelatedEntities *models.RelatedEntities    `json:"related_entities,omitempty"`
	Metadata        map[string]interface{}     `json:"metadata,omitempty"`

	// Broadcast bookkeeping, set only by Broadcast.
	SentBy     *string                 `json:"sent_by,omitempty"`
	TargetType *models.BroadcastTarget `json:"target_type,omitempty"`
	TargetRole *models.UserRole        `json:"target_role,omitempty"`
}

// DeliveryReport tells the caller what actually happened on each channel.
type DeliveryReport struct {
	NotificationID string   `json:"notification_id"`
	Dashboard      bool     `json:"dashboard"`
	Email          bool     `json:"email"`
	Errors         []string `json:"errors,omitempty"`
}

type BroadcastRequest struct {
	TargetType   models.BroadcastTarget     `json:"target_type" validate:"required,broadcast_target"`
	TargetRole   *models.UserRole           `json:"target_role,omitempty" validate:"omitempty,user_role"`
	TargetUserID *string                    `json:"target_user_id,omitempty"`
	Title        string                     `json:"title" validate:"required,max=255"`
	Message      string                     `json:"message" validate:"required"`
	Channel      models.NotificationChannel `json:"channel" validate:"omitempty,channel"`
	Priority     models.Priority            `json:"priority" validate:"omitempty,priority"`
	ActionURL    *string                    `json:"action_url,omitempty"`
}

type BroadcastReport struct {
	Total           int      `json:"total"`
	Dashboard       int      `json:"dashboard"`
	Email           int      `json:"email"`
	Failed          int      `json:"failed"`
	NotificationIDs []string `json:"notification_ids"`
}

// ===== DELIVERY =====

func (s *notificationService) Deliver(ctx context.Context, req CreateNotificationRequest) (*DeliveryReport, error) {
	recipient, err := s.repo.Users().GetByID(ctx, req.RecipientID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}

	if req.Channel == "" {
		req.Channel = models.ChannelDashboard
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}

	notification := &models.Notification{
		RecipientID: req.RecipientID,
		Type:        req.Type,
		Channel:     req.Channel,
		Title:       req.Title,
		Message:     req.Message,
		Priority:    req.Priority,
		ActionURL:   req.ActionURL,
		ActionText:  req.ActionText,
		Metadata:    req.Metadata,
		SentBy:      req.SentBy,
		TargetType:  req.TargetType,
		TargetRole:  req.TargetRole,
	}
	if req.RelatedEntities != nil {
		related := datatypes.NewJSONType(*req.RelatedEntities)
		notification.RelatedEntities = &related
	}

	if err := s.repo.Notifications().Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	report := &DeliveryReport{NotificationID: notification.ID}

	if notification.WantsDashboard() {
		s.unread.Invalidate(ctx, req.RecipientID)
		s.emitter.Emit(realtime.UserRoom(req.RecipientID), realtime.EventNewNotification, notification)
		report.Dashboard = true
	}

	if notification.WantsEmail() {
		if err := s.email.Send(recipient.Email, notification.Title, notification.Message); err != nil {
			msg := err.Error()
			notification.EmailError = &msg
			report.Errors = append(report.Errors, msg)
			s.logger.Warn("notification email failed",
				"notification_id", notification.ID,
				"recipient_id", req.RecipientID,
				"error", err)
		} else {
			now := time.Now()
			notification.EmailSent = true
			notification.EmailSentAt = &now
			report.Email = true
		}
		if err := s.repo.Notifications().Update(ctx, notification); err != nil {
			s.logger.Error("failed to record email outcome",
				"notification_id", notification.ID, "error", err)
		}
	}

	return report, nil
}

func (s *notificationService) Broadcast(ctx context.Context, sentBy string, req BroadcastRequest) (*BroadcastReport, error) {
	recipients, err := s.resolveBroadcastRecipients(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Channel == "" {
		req.Channel = models.ChannelDashboard
	}

	report := &BroadcastReport{Total: len(recipients)}
	for _, recipient := range recipients {
		delivery, err := s.Deliver(ctx, CreateNotificationRequest{
			RecipientID: recipient.ID,
			Type:        models.NotificationAdminBroadcast,
			Channel:     req.Channel,
			Title:       req.Title,
			Message:     req.Message,
			Priority:    req.Priority,
			ActionURL:   req.ActionURL,
			SentBy:      &sentBy,
			TargetType:  &req.TargetType,
			TargetRole:  req.TargetRole,
		})
		if err != nil {
			report.Failed++
			s.logger.Warn("broadcast delivery failed",
				"recipient_id", recipient.ID, "error", err)
			continue
		}
		report.NotificationIDs = append(report.NotificationIDs, delivery.NotificationID)
		if delivery.Dashboard {
			report.Dashboard++
		}
		if delivery.Email {
			report.Email++
		}
	}

	// One event on the admin role channel so dashboards refresh.
	s.emitter.Emit(realtime.RoleRoom(models.RoleSuperAdmin), realtime.EventAdminNotification, map[string]interface{}{
		"title":       req.Title,
		"target_type": req.TargetType,
		"total":       report.Total,
		"sent_by":     sentBy,
	})

	return report, nil
}

func (s *notificationService) resolveBroadcastRecipients(ctx context.Context, req BroadcastRequest) ([]*models.User, error) {
	switch req.TargetType {
	case models.TargetAll:
		return s.repo.Users().ListActive(ctx)
	case models.TargetRole:
		if req.TargetRole == nil {
			return nil, ValidationErrors{*NewValidationError("target_role", "target_role is required for ROLE broadcasts", nil)}
		}
		return s.repo.Users().ListActiveByRole(ctx, *req.TargetRole)
	case models.TargetUser:
		if req.TargetUserID == nil {
			return nil, ValidationErrors{*NewValidationError("target_user_id", "target_user_id is required for USER broadcasts", nil)}
		}
		user, err := s.repo.Users().GetByID(ctx, *req.TargetUserID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
		return []*models.User{user}, nil
	default:
		return nil, ValidationErrors{*NewValidationError("target_type", "unknown broadcast target", req.TargetType)}
	}
}

// ===== MANAGEMENT =====

func (s *notificationService) List(ctx context.Context, userID string, filters repositories.NotificationFilters) ([]*models.Notification, int64, error) {
	filters.RecipientID = &userID
	return s.repo.Notifications().List(ctx, filters)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	if count, ok := s.unread.Get(ctx, userID); ok {
		return count, nil
	}
	count, err := s.repo.Notifications().CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	s.unread.Set(ctx, userID, count)
	return count, nil
}

// MarkAsRead is idempotent: re-reading an already-read notification returns
// it unchanged.
func (s *notificationService) MarkAsRead(ctx context.Context, notificationID, userID string) (*models.Notification, error) {
	notification, err := s.getOwned(ctx, notificationID, userID, "mark_read")
	if err != nil {
		return nil, err
	}

	if notification.IsRead {
		return notification, nil
	}

	now := time.Now()
	notification.IsRead = true
	notification.ReadAt = &now
	if err := s.repo.Notifications().Update(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to mark notification read: %w", err)
	}
	s.unread.Invalidate(ctx, userID)
	return notification, nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all notifications read: %w", err)
	}
	s.unread.Invalidate(ctx, userID)
	return updated, nil
}

func (s *notificationService) Archive(ctx context.Context, notificationID, userID string, archived bool) error {
	notification, err := s.getOwned(ctx, notificationID, userID, "archive")
	if err != nil {
		return err
	}
	if notification.IsArchived == archived {
		return nil
	}
	notification.IsArchived = archived
	if err := s.repo.Notifications().Update(ctx, notification); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	s.unread.Invalidate(ctx, userID)
	return nil
}

func (s *notificationService) Delete(ctx context.Context, notificationID, userID string) error {
	if _, err := s.getOwned(ctx, notificationID, userID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Notifications().Delete(ctx, notificationID); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	s.unread.Invalidate(ctx, userID)
	return nil
}

func (s *notificationService) getOwned(ctx context.Context, notificationID, userID, action string) (*models.Notification, error) {
	notification, err := s.repo.Notifications().GetByID(ctx, notificationID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	if notification.RecipientID != userID {
		return nil, NewPermissionError(userID, notificationID, "notification", action, "not owned by user")
	}
	return notification, nil
}
