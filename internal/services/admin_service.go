// internal/services/admin_service.go
package services

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

// AdminService covers the staff-facing user directory and reporting.
type AdminService struct {
	db           *gorm.DB
	auditService *AuditService
}

type UserFilter struct {
	utils.PaginationParams
	Role   *models.UserRole
	Status *models.UserStatus
}

type CreateStaffRequest struct {
	Email       string          `json:"email" validate:"required,email"`
	Password    string          `json:"password" validate:"required,strong_password"`
	FirstName   string          `json:"first_name" validate:"required,min=1,max=100"`
	LastName    string          `json:"last_name" validate:"required,min=1,max=100"`
	Role        models.UserRole `json:"role" validate:"required,oneof=REVIEWER ADMIN"`
	Designation string          `json:"designation,omitempty" validate:"omitempty,max=100"`
}

func NewAdminService(db *gorm.DB, auditService *AuditService) *AdminService {
	return &AdminService{db: db, auditService: auditService}
}

// ListUsers returns the user directory.
func (s *AdminService) ListUsers(filter UserFilter) ([]models.User, int64, error) {
	query := s.db.Model(&models.User{})

	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "email", "last_login_at", "role", "status"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, total, nil
}

func (s *AdminService) GetUser(userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.Preload("Applications").First(&user, "id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// CreateStaff provisions a reviewer or admin account. Only SUPERADMIN may
// create ADMIN accounts; the handler enforces that.
func (s *AdminService) CreateStaff(actorID uuid.UUID, req *CreateStaffRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid staff request", utils.GetValidationErrors(err))
	}

	user := &models.User{
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Designation: strings.TrimSpace(req.Designation),
		Role:        req.Role,
		Status:      models.UserStatusActive,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isDuplicateKey(err) {
				return utils.ConflictError("an account with this email already exists")
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &actorID,
			Action:      models.AuditUserRegistered,
			EntityType:  "User",
			EntityID:    &user.ID,
			After:       Snapshot(user),
		})
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// UpdateUserStatus suspends, reactivates, or soft-deletes an account.
func (s *AdminService) UpdateUserStatus(userID uuid.UUID, status models.UserStatus, actorID uuid.UUID) (*models.User, error) {
	if userID == actorID {
		return nil, utils.InvalidState("you cannot change the status of your own account")
	}

	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("user")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	var action models.AuditAction
	switch status {
	case models.UserStatusSuspended:
		action = models.AuditUserSuspended
	case models.UserStatusActive:
		action = models.AuditUserReactivated
	case models.UserStatusDeleted:
		action = models.AuditUserDeleted
	default:
		return nil, utils.ValidationFailed("unknown user status", nil)
	}

	before := Snapshot(&user)
	user.Status = status

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
			Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update user status: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &actorID,
			Action:      action,
			EntityType:  "User",
			EntityID:    &user.ID,
			Before:      before,
			After:       Snapshot(&user),
		})
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// ExportApplicantsCSV renders the applicant directory as CSV for download.
func (s *AdminService) ExportApplicantsCSV() ([]byte, error) {
	var users []models.User
	role := models.UserRoleApplicant
	if err := s.db.Where("role = ?", role).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch applicants: %w", err)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "email", "first_name", "last_name", "phone", "status", "registered_at", "last_login_at"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	for _, u := range users {
		lastLogin := ""
		if u.LastLoginAt != nil {
			lastLogin = u.LastLoginAt.Format(time.RFC3339)
		}
		row := []string{
			u.ID.String(),
			u.Email,
			u.FirstName,
			u.LastName,
			u.Phone,
			string(u.Status),
			u.CreatedAt.Format(time.RFC3339),
			lastLogin,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	return buf.Bytes(), nil
}
