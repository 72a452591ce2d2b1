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

// AuthService handles signup, login and account management.
type AuthService interface {
	Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Me(ctx context.Context, actor *auth.Actor) (*ProfileResponse, error)

	// CreateReferredStudent lets an agent open a student account tied to
	// themselves; the student logs in with the provided credentials.
	CreateReferredStudent(ctx context.Context, agent *auth.Actor, req ReferredStudentRequest) (*ProfileResponse, error)

	// CreateUser provisions any account. PasswordIsHashed stores the given
	// value verbatim so migrated hashes keep working.
	CreateUser(ctx context.Context, actor *auth.Actor, req AdminCreateUserRequest) (*ProfileResponse, error)

	// SetStudentDocument stores a file-gateway URL into one of the named
	// document slots on the caller's own student profile.
	SetStudentDocument(ctx context.Context, actor *auth.Actor, slot, url string) (*models.Student, error)

	ListUsers(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error)
	SetUserActive(ctx context.Context, actor *auth.Actor, userID string, active bool) error

	// UserLoader methods used by the auth middleware.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetStudentByUserID(ctx context.Context, userID string) (*models.Student, error)
}

type authService struct {
	repo      repositories.Repository
	tokens    *auth.TokenManager
	validator *utils.Validator
	audit     AuditService
	publisher events.Publisher
	logger    utils.Logger
}

func NewAuthService(
	repo repositories.Repository,
	tokens *auth.TokenManager,
	validator *utils.Validator,
	audit AuditService,
	publisher events.Publisher,
	logger utils.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		tokens:    tokens,
		validator: validator,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
	}
}

type SignupRequest struct {
	FullName    string          `json:"full_name" validate:"required,min=1,max=100"`
	Email       string          `json:"email" validate:"required,email"`
	Password    string          `json:"password" validate:"required,min=8"`
	Role        models.UserRole `json:"role" validate:"omitempty,user_role"`
	PhoneNumber *string         `json:"phone_number,omitempty"`
	Country     *string         `json:"country,omitempty"`

	// Student academic profile, applied when the role is student.
	CurrentEducation *string              `json:"current_education,omitempty"`
	GPA              *float64             `json:"gpa,omitempty"`
	TargetCountry    *string              `json:"target_country,omitempty"`
	TargetIntake     *string              `json:"target_intake,omitempty"`
	SelectedServices []models.ServiceType `json:"selected_services,omitempty" validate:"dive,service_type"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ReferredStudentRequest struct {
	FullName    string   `json:"full_name" validate:"required,min=1,max=100"`
	Email       string   `json:"email" validate:"required,email"`
	Password    string   `json:"password" validate:"required,min=8"`
	PhoneNumber *string  `json:"phone_number,omitempty"`
	Country     *string  `json:"country,omitempty"`
	GPA         *float64 `json:"gpa,omitempty"`
}

type AdminCreateUserRequest struct {
	FullName         string          `json:"full_name" validate:"required,min=1,max=100"`
	Email            string          `json:"email" validate:"required,email"`
	Password         string          `json:"password" validate:"required"`
	PasswordIsHashed bool            `json:"password_is_hashed"`
	Role             models.UserRole `json:"role" validate:"required,user_role"`
	PhoneNumber      *string         `json:"phone_number,omitempty"`
	Country          *string         `json:"country,omitempty"`
}

type AuthResponse struct {
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         *models.User `json:"user"`
	DashboardURL string       `json:"dashboard_url"`
}

type ProfileResponse struct {
	User    *models.User    `json:"user"`
	Student *models.Student `json:"student,omitempty"`
}

// ===== SIGNUP / LOGIN =====

func (s *authService) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.Role == "" {
		req.Role = models.RoleStudent
	}
	// Public signup never mints an admin account.
	if req.Role == models.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	exists, err := s.repo.Users().ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		PhoneNumber:  req.PhoneNumber,
		Country:      req.Country,
		IsActive:     true,
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if user.Role == models.RoleStudent {
			student := &models.Student{
				UserID:           user.ID,
				CurrentEducation: req.CurrentEducation,
				GPA:              req.GPA,
				TargetCountry:    req.TargetCountry,
				TargetIntake:     req.TargetIntake,
				SelectedServices: req.SelectedServices,
			}
			if err := tx.Students().Create(ctx, student); err != nil {
				return fmt.Errorf("failed to create student profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      &auth.Actor{User: user},
		Action:     models.AuditUserSignup,
		EntityType: "user",
		EntityID:   user.ID,
		NewState:   map[string]interface{}{"role": user.Role},
		Details:    "account created",
	})
	s.publish(ctx, events.NewDomainEvent(events.EventUserRegistered, events.UserRegisteredEvent{
		UserID: user.ID,
		Role:   user.Role,
	}))

	return s.issueToken(user)
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.repo.Users().Update(ctx, user); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      &auth.Actor{User: user},
		Action:     models.AuditUserLogin,
		EntityType: "user",
		EntityID:   user.ID,
		Details:    "login",
	})

	return s.issueToken(user)
}

func (s *authService) Me(ctx context.Context, actor *auth.Actor) (*ProfileResponse, error) {
	return &ProfileResponse{User: actor.User, Student: actor.Student}, nil
}

// ===== AGENT REFERRAL =====

func (s *authService) CreateReferredStudent(ctx context.Context, agent *auth.Actor, req ReferredStudentRequest) (*ProfileResponse, error) {
	if agent.Role() != models.RoleAgent && !agent.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exists, err := s.repo.Users().ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	agentID := agent.ID()
	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		PhoneNumber:  req.PhoneNumber,
		Country:      req.Country,
		IsActive:     true,
	}
	student := &models.Student{
		AssignedAgent: &agentID,
		ReferredBy:    &agentID,
		GPA:           req.GPA,
	}

	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		student.UserID = user.ID
		if err := tx.Students().Create(ctx, student); err != nil {
			return fmt.Errorf("failed to create student profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      agent,
		Action:     models.AuditStudentReferred,
		EntityType: "student",
		EntityID:   student.ID,
		NewState:   map[string]interface{}{"referred_by": agentID},
		Details:    "student account created by agent",
	})
	s.publish(ctx, events.NewDomainEvent(events.EventUserRegistered, events.UserRegisteredEvent{
		UserID:     user.ID,
		Role:       user.Role,
		ReferredBy: &agentID,
	}))

	return &ProfileResponse{User: user, Student: student}, nil
}

// ===== STUDENT PROFILE =====

func (s *authService) SetStudentDocument(ctx context.Context, actor *auth.Actor, slot, url string) (*models.Student, error) {
	if actor.Role() != models.RoleStudent || actor.Student == nil {
		return nil, ErrForbidden
	}
	if url == "" {
		return nil, ValidationErrors{{Field: "url", Message: "is required", Rule: "required"}}
	}

	student, err := s.repo.Students().GetByUserID(ctx, actor.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to load student profile: %w", err)
	}

	docs := student.Documents.Data()
	switch slot {
	case "transcripts":
		docs.Transcripts = url
	case "test_scores":
		docs.TestScores = url
	case "sop":
		docs.SOP = url
	case "recommendation":
		docs.Recommendation = url
	case "resume":
		docs.Resume = url
	case "passport":
		docs.Passport = url
	default:
		return nil, ValidationErrors{{Field: "slot", Message: "must be one of: transcripts, test_scores, sop, recommendation, resume, passport", Rule: "oneof"}}
	}
	student.Documents = datatypes.NewJSONType(docs)

	if err := s.repo.Students().Update(ctx, student); err != nil {
		return nil, fmt.Errorf("failed to update student profile: %w", err)
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditStudentDocument,
		EntityType: "student",
		EntityID:   student.ID,
		NewState:   map[string]interface{}{"slot": slot},
		Details:    "document slot updated",
	})
	return student, nil
}

// ===== ADMIN =====

func (s *authService) CreateUser(ctx context.Context, actor *auth.Actor, req AdminCreateUserRequest) (*ProfileResponse, error) {
	if !actor.IsSuperAdmin() {
		return nil, ErrForbidden
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if !req.PasswordIsHashed && len(req.Password) < 8 {
		return nil, ValidationErrors{{Field: "password", Message: "must be at least 8", Rule: "min"}}
	}

	exists, err := s.repo.Users().ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash := req.Password
	if !req.PasswordIsHashed {
		hash, err = auth.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
	}

	user := &models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		PhoneNumber:  req.PhoneNumber,
		Country:      req.Country,
		IsActive:     true,
	}

	var student *models.Student
	err = s.repo.WithTx(ctx, func(tx repositories.Repository) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		if user.Role == models.RoleStudent {
			student = &models.Student{UserID: user.ID}
			if err := tx.Students().Create(ctx, student); err != nil {
				return fmt.Errorf("failed to create student profile: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     models.AuditUserSignup,
		EntityType: "user",
		EntityID:   user.ID,
		NewState:   map[string]interface{}{"role": user.Role, "provisioned": true},
		Details:    "account provisioned by admin",
	})

	return &ProfileResponse{User: user, Student: student}, nil
}

func (s *authService) ListUsers(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return s.repo.Users().List(ctx, filters)
}

func (s *authService) SetUserActive(ctx context.Context, actor *auth.Actor, userID string, active bool) error {
	if !actor.IsSuperAdmin() {
		return ErrForbidden
	}
	user, err := s.repo.Users().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsActive == active {
		return nil
	}
	user.IsActive = active
	if err := s.repo.Users().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ===== MIDDLEWARE LOADER =====

func (s *authService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.Users().GetByID(ctx, id)
}

func (s *authService) GetStudentByUserID(ctx context.Context, userID string) (*models.Student, error) {
	return s.repo.Students().GetByUserID(ctx, userID)
}

// ===== HELPERS =====

func (s *authService) issueToken(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Generate(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify issued token: %w", err)
	}
	return &AuthResponse{
		Token:        token,
		ExpiresAt:    claims.ExpiresAt.Time,
		User:         user,
		DashboardURL: user.DashboardURL(),
	}, nil
}

func (s *authService) publish(ctx context.Context, event *events.DomainEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", "event_type", event.Type, "error", err)
	}
}
