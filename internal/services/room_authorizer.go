package services

import (
	"context"
	"fmt"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
)

// roomAuthorizer decides realtime room joins with the same predicates that
// gate the HTTP reads.
type roomAuthorizer struct {
	repo repositories.Repository
}

func NewRoomAuthorizer(repo repositories.Repository) *roomAuthorizer {
	return &roomAuthorizer{repo: repo}
}

func (a *roomAuthorizer) CanJoinRoom(ctx context.Context, actor *auth.Actor, roomPrefix, entityID string) error {
	switch roomPrefix {
	case "user":
		if entityID == actor.ID() || actor.IsSuperAdmin() {
			return nil
		}
		return ErrForbidden

	case "role":
		if entityID == string(actor.Role()) || actor.IsSuperAdmin() {
			return nil
		}
		return ErrForbidden

	case "student":
		return a.canJoinStudent(ctx, actor, entityID)

	case "service_request", "chat":
		sr, err := a.repo.ServiceRequests().GetByID(ctx, entityID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrServiceRequestNotFound
			}
			return fmt.Errorf("failed to get service request: %w", err)
		}
		if roomPrefix == "chat" {
			if !auth.CheckChatAccess(actor, sr) {
				return ErrNotParticipant
			}
			if auth.ChatDisabled(sr) {
				return ErrChatDisabled
			}
			return nil
		}
		if d := auth.CanReadServiceRequest(actor, sr); !d.Allowed {
			return NewPermissionError(actor.ID(), entityID, "service_request", "join_room", d.Reason)
		}
		return nil

	case "application":
		app, err := a.repo.Applications().GetByID(ctx, entityID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrApplicationNotFound
			}
			return fmt.Errorf("failed to get application: %w", err)
		}
		if d := auth.CanReadApplication(actor, app); !d.Allowed {
			return NewPermissionError(actor.ID(), entityID, "application", "join_room", d.Reason)
		}
		return nil
	}
	return ErrForbidden
}

func (a *roomAuthorizer) canJoinStudent(ctx context.Context, actor *auth.Actor, studentID string) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if actor.Role() == models.RoleStudent {
		if actor.Student != nil && actor.Student.ID == studentID {
			return nil
		}
		return ErrForbidden
	}

	student, err := a.repo.Students().GetByID(ctx, studentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrStudentNotFound
		}
		return fmt.Errorf("failed to get student: %w", err)
	}
	switch actor.Role() {
	case models.RoleAgent:
		if student.AssignedAgent != nil && *student.AssignedAgent == actor.ID() {
			return nil
		}
	case models.RoleCounselor:
		if student.AssignedCounselor != nil && *student.AssignedCounselor == actor.ID() {
			return nil
		}
	}
	return ErrForbidden
}
