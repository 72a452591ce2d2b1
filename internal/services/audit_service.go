package services

import (
	"context"
	"encoding/json"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
)

// AuditService writes the append-only audit trail. Record never returns an
// error: a failed audit write must not fail the operation it describes.
type AuditService interface {
	Record(ctx context.Context, entry AuditEntry)
	ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLog, int64, error)
}

// AuditEntry carries the minimum material change, typically {"status": ...}.
type AuditEntry struct {
	Actor         *auth.Actor
	Action        models.AuditAction
	EntityType    string
	EntityID      string
	PreviousState interface{}
	NewState      interface{}
	Details       string
	IPAddress     *string
	UserAgent     *string
}

type auditService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewAuditService(repo repositories.Repository, logger utils.Logger) AuditService {
	return &auditService{repo: repo, logger: logger}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) {
	log := &models.AuditLog{
		ActorID:    entry.Actor.ID(),
		ActorRole:  entry.Actor.Role(),
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    entry.Details,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}
	log.PreviousState = marshalState(entry.PreviousState)
	log.NewState = marshalState(entry.NewState)

	if err := s.repo.Audit().Create(ctx, log); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err)
	}
}

func (s *auditService) ListByEntity(ctx context.Context, entityType, entityID string, limit, offset int) ([]*models.AuditLog, int64, error) {
	return s.repo.Audit().ListByEntity(ctx, entityType, entityID, limit, offset)
}

func marshalState(state interface{}) []byte {
	if state == nil {
		return nil
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	return raw
}
