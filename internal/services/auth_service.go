// internal/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/config"
	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

const resetTokenTTL = time.Hour

type AuthService struct {
	db                  *gorm.DB
	config              *config.Config
	applicationService  *ApplicationService
	auditService        *AuditService
	notificationService *NotificationService
}

type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,strong_password"`
	FirstName  string `json:"first_name" validate:"required,min=1,max=100"`
	LastName   string `json:"last_name" validate:"required,min=1,max=100"`
	MiddleName string `json:"middle_name,omitempty" validate:"omitempty,max=100"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=30"`
}

type RegisterWithApplicationRequest struct {
	RegisterRequest
	Application CreateApplicationRequest `json:"application" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=100"`
	MiddleName  *string `json:"middle_name,omitempty" validate:"omitempty,max=100"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Designation *string `json:"designation,omitempty" validate:"omitempty,max=100"`
}

type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

type RegistrationResult struct {
	AuthResult
	Application *models.Application `json:"application,omitempty"`
}

func NewAuthService(db *gorm.DB, cfg *config.Config, applicationService *ApplicationService, auditService *AuditService, notificationService *NotificationService) *AuthService {
	return &AuthService{
		db:                  db,
		config:              cfg,
		applicationService:  applicationService,
		auditService:        auditService,
		notificationService: notificationService,
	}
}

// Register creates an applicant account. A taken email is a conflict, not a
// validation failure.
func (s *AuthService) Register(req *RegisterRequest) (*AuthResult, error) {
	var user *models.User
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		created, err := s.registerTx(tx, req)
		if err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.finishRegistration(user)
}

// RegisterWithApplication creates the account and its first application in
// one transaction. A payload problem rolls back the account too.
func (s *AuthService) RegisterWithApplication(req *RegisterWithApplicationRequest) (*RegistrationResult, error) {
	var user *models.User
	var app *models.Application

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		created, err := s.registerTx(tx, &req.RegisterRequest)
		if err != nil {
			return err
		}
		user = created

		draft, err := s.applicationService.createDraftTx(tx, user.ID, &req.Application)
		if err != nil {
			return err
		}
		app = draft
		return nil
	})
	if err != nil {
		return nil, err
	}

	auth, err := s.finishRegistration(user)
	if err != nil {
		return nil, err
	}

	return &RegistrationResult{AuthResult: *auth, Application: app}, nil
}

func (s *AuthService) registerTx(tx *gorm.DB, req *RegisterRequest) (*models.User, error) {
	// Normalize before validating so padded or mixed-case emails pass the
	// format check and collapse to one canonical address.
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid registration request", utils.GetValidationErrors(err))
	}

	email := req.Email

	var count int64
	if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count > 0 {
		return nil, utils.ConflictError("an account with this email already exists")
	}

	user := &models.User{
		Email:      email,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		MiddleName: strings.TrimSpace(req.MiddleName),
		Phone:      strings.TrimSpace(req.Phone),
		Role:       models.UserRoleApplicant,
		Status:     models.UserStatusActive,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := tx.Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, utils.ConflictError("an account with this email already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.auditService.Record(tx, AuditEntry{
		ActorUserID: &user.ID,
		Action:      models.AuditUserRegistered,
		EntityType:  "User",
		EntityID:    &user.ID,
		After:       Snapshot(user),
	}); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *AuthService) finishRegistration(user *models.User) (*AuthResult, error) {
	token, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.config.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	go func() {
		if err := s.notificationService.SendWelcomeEmail(user); err != nil {
			logrus.WithError(err).Warn("Failed to send welcome email")
		}
	}()

	return &AuthResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a JWT. Suspended and deleted
// accounts cannot sign in.
func (s *AuthService) Login(req *LoginRequest) (*AuthResult, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid login request", utils.GetValidationErrors(err))
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.UnauthorizedError("invalid email or password")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, utils.UnauthorizedError("invalid email or password")
	}
	if user.Status != models.UserStatusActive {
		return nil, utils.ForbiddenError("account is not active")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login_at", now).Error; err != nil {
		logrus.WithError(err).Warn("Failed to record login time")
	}

	s.auditService.RecordAsync(AuditEntry{
		ActorUserID: &user.ID,
		Action:      models.AuditUserLogin,
		EntityType:  "User",
		EntityID:    &user.ID,
	})

	token, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.config.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &AuthResult{User: &user, Token: token}, nil
}

// GetByID returns the account behind a token subject.
func (s *AuthService) GetByID(userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// UpdateProfile applies partial profile changes for the calling user.
func (s *AuthService) UpdateProfile(userID uuid.UUID, req *UpdateProfileRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid profile request", utils.GetValidationErrors(err))
	}

	user, err := s.GetByID(userID)
	if err != nil {
		return nil, err
	}

	before := Snapshot(user)
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.MiddleName != nil {
		user.MiddleName = strings.TrimSpace(*req.MiddleName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Designation != nil {
		user.Designation = strings.TrimSpace(*req.Designation)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(user).Error; err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &user.ID,
			Action:      models.AuditUserUpdated,
			EntityType:  "User",
			EntityID:    &user.ID,
			Before:      before,
			After:       Snapshot(user),
		})
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// ForgotPassword issues a short-lived reset token. The response is identical
// whether or not the email exists.
func (s *AuthService) ForgotPassword(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !utils.IsValidEmail(email) {
		return utils.ValidationFailed("a valid email is required", nil)
	}

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("database error: %w", err)
	}

	token, err := utils.GenerateResetToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}

	expiresAt := time.Now().Add(resetTokenTTL)
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"reset_token":            token,
		"reset_token_expires_at": expiresAt,
	}).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.config.Frontend.BaseURL, token)
	go func() {
		if err := s.notificationService.SendPasswordReset(&user, resetURL); err != nil {
			logrus.WithError(err).Warn("Failed to send password reset email")
		}
	}()

	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(token, newPassword string) error {
	if token == "" {
		return utils.ValidationFailed("reset token is required", nil)
	}
	if err := utils.ValidateStruct(&struct {
		Password string `validate:"required,strong_password"`
	}{Password: newPassword}); err != nil {
		return utils.ValidationFailed("password does not meet requirements", utils.GetValidationErrors(err))
	}

	var user models.User
	err := s.db.Where("reset_token = ? AND reset_token_expires_at > ?", token, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.UnauthorizedError("invalid or expired reset token")
		}
		return fmt.Errorf("database error: %w", err)
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"password_hash":          user.PasswordHash,
			"reset_token":            "",
			"reset_token_expires_at": nil,
		}).Error; err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &user.ID,
			Action:      models.AuditUserUpdated,
			EntityType:  "User",
			EntityID:    &user.ID,
			Metadata:    models.JSONB{"event": "password_reset"},
		})
	})
	return err
}
