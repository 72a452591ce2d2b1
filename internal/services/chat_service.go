package services

import (
	"context"
	"fmt"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/events"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"gorm.io/datatypes"
)

// ChatService is the per-case conversation between the student and their
// advisors. Access is gated on case participation; posting stays closed until
// an advisor is assigned, reading the history and roster does not.
type ChatService interface {
	ListMessages(ctx context.Context, actor *auth.Actor, serviceRequestID string, filters repositories.MessageFilters) ([]*models.Message, int64, error)
	SendMessage(ctx context.Context, actor *auth.Actor, serviceRequestID string, req SendMessageRequest) (*models.Message, error)
	MarkMessageRead(ctx context.Context, actor *auth.Actor, messageID string) (*models.Message, error)
	Participants(ctx context.Context, actor *auth.Actor, serviceRequestID string) ([]*models.User, error)
}

type chatService struct {
	repo      repositories.Repository
	validator *utils.Validator
	publisher events.Publisher
	logger    utils.Logger
}

func NewChatService(
	repo repositories.Repository,
	validator *utils.Validator,
	publisher events.Publisher,
	logger utils.Logger,
) ChatService {
	return &chatService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		logger:    logger,
	}
}

type SendMessageRequest struct {
	Content     string             `json:"content" validate:"required"`
	MessageType models.MessageType `json:"message_type" validate:"omitempty,message_type"`
	RecipientID *string            `json:"recipient_id,omitempty"`
	Attachments []models.FileRef   `json:"attachments,omitempty"`
}

func (s *chatService) ListMessages(ctx context.Context, actor *auth.Actor, serviceRequestID string, filters repositories.MessageFilters) ([]*models.Message, int64, error) {
	if _, err := s.gate(ctx, actor, serviceRequestID); err != nil {
		return nil, 0, err
	}
	return s.repo.Messages().ListByServiceRequest(ctx, serviceRequestID, filters)
}

func (s *chatService) SendMessage(ctx context.Context, actor *auth.Actor, serviceRequestID string, req SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	sr, err := s.gate(ctx, actor, serviceRequestID)
	if err != nil {
		return nil, err
	}
	if auth.ChatDisabled(sr) {
		return nil, ErrChatDisabled
	}

	if req.MessageType == "" {
		req.MessageType = models.MessageText
	}

	message := &models.Message{
		ServiceRequestID: sr.ID,
		SenderID:         actor.ID(),
		SenderRole:       actor.Role(),
		RecipientID:      req.RecipientID,
		Content:          req.Content,
		MessageType:      req.MessageType,
		Attachments:      datatypes.NewJSONSlice(req.Attachments),
	}
	if err := s.repo.Messages().Create(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	recipients := s.recipientIDs(ctx, sr, actor.ID())
	s.publish(ctx, events.NewDomainEvent(events.EventChatMessageSent, events.ChatMessageSentEvent{
		MessageID:        message.ID,
		ServiceRequestID: sr.ID,
		SenderID:         actor.ID(),
		SenderRole:       actor.Role(),
		MessageType:      message.MessageType,
		RecipientIDs:     recipients,
	}))

	return message, nil
}

// MarkMessageRead appends a read receipt; re-reading is a no-op.
func (s *chatService) MarkMessageRead(ctx context.Context, actor *auth.Actor, messageID string) (*models.Message, error) {
	message, err := s.repo.Messages().GetByID(ctx, messageID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	if _, err := s.gate(ctx, actor, message.ServiceRequestID); err != nil {
		return nil, err
	}

	if message.ReadByUser(actor.ID()) {
		return message, nil
	}

	message.ReadBy = append(message.ReadBy, models.ReadReceipt{
		UserID: actor.ID(),
		ReadAt: time.Now(),
	})
	if err := s.repo.Messages().Update(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to record read receipt: %w", err)
	}
	return message, nil
}

func (s *chatService) Participants(ctx context.Context, actor *auth.Actor, serviceRequestID string) ([]*models.User, error) {
	sr, err := s.gate(ctx, actor, serviceRequestID)
	if err != nil {
		return nil, err
	}

	var users []*models.User
	for _, id := range s.participantIDs(ctx, sr) {
		user, err := s.repo.Users().GetByID(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load chat participant", "user_id", id, "error", err)
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// gate resolves the case and rejects callers who are not on the conversation.
// The pending-assignment lock only blocks posting, so it lives in SendMessage.
func (s *chatService) gate(ctx context.Context, actor *auth.Actor, serviceRequestID string) (*models.ServiceRequest, error) {
	sr, err := s.repo.ServiceRequests().GetByID(ctx, serviceRequestID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrServiceRequestNotFound
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}

	if !auth.CheckChatAccess(actor, sr) {
		return nil, ErrNotParticipant
	}
	return sr, nil
}

// participantIDs lists the user IDs on the conversation: the student's user,
// the assigned counselor and the assigned agent.
func (s *chatService) participantIDs(ctx context.Context, sr *models.ServiceRequest) []string {
	var ids []string
	if sr.Student != nil {
		ids = append(ids, sr.Student.UserID)
	} else if student, err := s.repo.Students().GetByID(ctx, sr.StudentID); err == nil {
		ids = append(ids, student.UserID)
	} else {
		s.logger.Warn("failed to resolve student user", "student_id", sr.StudentID, "error", err)
	}
	if sr.AssignedCounselor != nil {
		ids = append(ids, *sr.AssignedCounselor)
	}
	if sr.AssignedAgent != nil {
		ids = append(ids, *sr.AssignedAgent)
	}
	return ids
}

func (s *chatService) recipientIDs(ctx context.Context, sr *models.ServiceRequest, senderID string) []string {
	var out []string
	for _, id := range s.participantIDs(ctx, sr) {
		if id != senderID {
			out = append(out, id)
		}
	}
	return out
}

func (s *chatService) publish(ctx context.Context, event *events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.Type, "error", err)
	}
}
