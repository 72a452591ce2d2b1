package utils

import (
	"reflect"
	"strings"
	"time"

	apperrors "github.com/EduBridge-2025/advisory-service/internal/errors"
	"github.com/EduBridge-2025/advisory-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator with the domain enum rules
// registered.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	RegisterCustomValidators(v)
	return &Validator{validate: v}
}

// Validate runs struct validation and returns a ValidationErrors collection,
// or nil when the value passes.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if errs := apperrors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Custom validation functions

func ValidateUserRole(fl validator.FieldLevel) bool {
	switch models.UserRole(fl.Field().String()) {
	case models.RoleStudent, models.RoleAgent, models.RoleCounselor, models.RoleSuperAdmin:
		return true
	}
	return false
}

func ValidateServiceType(fl validator.FieldLevel) bool {
	value := models.ServiceType(fl.Field().String())
	for _, t := range models.AllServiceTypes {
		if t == value {
			return true
		}
	}
	return false
}

func ValidateServiceRequestStatus(fl validator.FieldLevel) bool {
	value := models.ServiceRequestStatus(fl.Field().String())
	for _, s := range models.AllServiceRequestStatuses {
		if s == value {
			return true
		}
	}
	return false
}

func ValidateTaskStatus(fl validator.FieldLevel) bool {
	value := models.TaskStatus(fl.Field().String())
	for _, s := range models.AllTaskStatuses {
		if s == value {
			return true
		}
	}
	return false
}

func ValidateTaskType(fl validator.FieldLevel) bool {
	switch models.TaskType(fl.Field().String()) {
	case models.TaskDocumentUpload, models.TaskFormFilling, models.TaskInfoGathering,
		models.TaskReview, models.TaskPayment, models.TaskOther:
		return true
	}
	return false
}

func ValidateApplicationStatus(fl validator.FieldLevel) bool {
	value := models.ApplicationStatus(fl.Field().String())
	for _, s := range models.AllApplicationStatuses {
		if s == value {
			return true
		}
	}
	return false
}

func ValidatePriority(fl validator.FieldLevel) bool {
	switch models.Priority(fl.Field().String()) {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent:
		return true
	}
	return false
}

func ValidateChannel(fl validator.FieldLevel) bool {
	switch models.NotificationChannel(fl.Field().String()) {
	case models.ChannelEmail, models.ChannelDashboard, models.ChannelBoth:
		return true
	}
	return false
}

func ValidateBroadcastTarget(fl validator.FieldLevel) bool {
	switch models.BroadcastTarget(fl.Field().String()) {
	case models.TargetAll, models.TargetRole, models.TargetUser:
		return true
	}
	return false
}

func ValidateMessageType(fl validator.FieldLevel) bool {
	switch models.MessageType(fl.Field().String()) {
	case models.MessageText, models.MessageFile, models.MessageSystem, models.MessageTaskNotification:
		return true
	}
	return false
}

// ValidateFutureDate accepts time.Time fields that lie in the future.
func ValidateFutureDate(fl validator.FieldLevel) bool {
	if t, ok := fl.Field().Interface().(time.Time); ok {
		return t.After(time.Now())
	}
	return false
}

// ValidateRatingRange bounds review ratings to 1..5.
func ValidateRatingRange(fl validator.FieldLevel) bool {
	rating := fl.Field().Int()
	return rating >= 1 && rating <= 5
}

// RegisterCustomValidators registers all custom validators
func RegisterCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("user_role", ValidateUserRole)
	validate.RegisterValidation("service_type", ValidateServiceType)
	validate.RegisterValidation("sr_status", ValidateServiceRequestStatus)
	validate.RegisterValidation("task_status", ValidateTaskStatus)
	validate.RegisterValidation("task_type", ValidateTaskType)
	validate.RegisterValidation("app_status", ValidateApplicationStatus)
	validate.RegisterValidation("priority", ValidatePriority)
	validate.RegisterValidation("channel", ValidateChannel)
	validate.RegisterValidation("broadcast_target", ValidateBroadcastTarget)
	validate.RegisterValidation("message_type", ValidateMessageType)
	validate.RegisterValidation("future_date", ValidateFutureDate)
	validate.RegisterValidation("rating_range", ValidateRatingRange)

	// Use json tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}
