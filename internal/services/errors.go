package services

import (
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/EduBridge-2025/advisory-service/internal/errors"
	"github.com/EduBridge-2025/advisory-service/internal/models"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrConflict         = errors.New("resource conflict")

	// Account errors
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrStudentNotFound    = errors.New("student profile not found")

	// Service request errors
	ErrServiceRequestNotFound = errors.New("service request not found")
	ErrDuplicateOpenRequest   = errors.New("student already has an open request of this type")
	ErrRequestNotAssignable   = errors.New("service request cannot be assigned in current status")
	ErrApprovalNotPending     = errors.New("agent approval is not pending")

	// Task errors
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskNotDeletable = errors.New("task can only be deleted while pending or in progress")
	ErrNotTaskAssignee  = errors.New("only the assignee can submit this task")
	ErrNoSubmission     = errors.New("task has no submission to review")

	// Application errors
	ErrApplicationNotFound = errors.New("application not found")
	ErrOfferNotReceived    = errors.New("application has no offer to accept")

	// Chat errors
	ErrChatDisabled    = errors.New("chat is disabled until a counselor is assigned")
	ErrNotParticipant  = errors.New("not a participant of this conversation")
	ErrMessageNotFound = errors.New("message not found")

	// Notification errors
	ErrNotificationNotFound = errors.New("notification not found")

	// File errors
	ErrFileTooLarge       = errors.New("file exceeds the size limit")
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrFileUploadFailed   = errors.New("file upload failed")
	ErrFileNotFound       = errors.New("file not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// TransitionError reports a rejected state machine transition along with the
// statuses that would have been accepted.
type TransitionError struct {
	Entity  string   `json:"entity"`
	Current string   `json:"current"`
	Target  string   `json:"target"`
	Allowed []string `json:"allowed_transitions"`
}

func (te *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s (allowed: %s)",
		te.Entity, te.Current, te.Target, strings.Join(te.Allowed, ", "))
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`

	// ApprovalStatus is set when an agent-initiated case blocked the owning
	// agent, so the response can surface the pending referral state.
	ApprovalStatus *models.AgentApprovalStatus `json:"approval_status,omitempty"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

func newServiceRequestTransitionError(current, target models.ServiceRequestStatus) *TransitionError {
	allowed := models.ServiceRequestNextStatuses(current)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &TransitionError{
		Entity:  "service_request",
		Current: string(current),
		Target:  string(target),
		Allowed: names,
	}
}

func newTaskTransitionError(current, target models.TaskStatus) *TransitionError {
	allowed := models.TaskNextStatuses(current)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &TransitionError{
		Entity:  "task",
		Current: string(current),
		Target:  string(target),
		Allowed: names,
	}
}

func newApplicationTransitionError(current, target models.ApplicationStatus) *TransitionError {
	allowed := models.ApplicationNextStatuses(current)
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return &TransitionError{
		Entity:  "application",
		Current: string(current),
		Target:  string(target),
		Allowed: names,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrServiceRequestNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrApplicationNotFound) ||
		errors.Is(err, ErrMessageNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrFileNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrNotParticipant) ||
		errors.Is(err, ErrNotTaskAssignee) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsTransition checks if error represents a rejected state transition
func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrDuplicateOpenRequest)
}
