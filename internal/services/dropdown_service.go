// internal/services/dropdown_service.go
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

// DropdownService manages the curated option lists backing form selects.
type DropdownService struct {
	db           *gorm.DB
	auditService *AuditService
}

type UpsertDropdownRequest struct {
	Category models.DropdownCategory `json:"category" validate:"required"`
	Value    string                  `json:"value" validate:"required,max=100"`
	Label    string                  `json:"label" validate:"required,max=200"`
	SortKey  int                     `json:"sort_key"`
	Active   *bool                   `json:"active,omitempty"`
}

func NewDropdownService(db *gorm.DB, auditService *AuditService) *DropdownService {
	return &DropdownService{db: db, auditService: auditService}
}

// Upsert creates the option or updates the existing one with the same
// category and value.
func (s *DropdownService) Upsert(actorID uuid.UUID, req *UpsertDropdownRequest) (*models.DropdownOption, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid dropdown request", utils.GetValidationErrors(err))
	}

	value := strings.TrimSpace(req.Value)
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	var option models.DropdownOption
	err := s.db.Where("category = ? AND value = ?", req.Category, value).First(&option).Error
	created := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !created {
		return nil, fmt.Errorf("database error: %w", err)
	}

	action := models.AuditDropdownUpdated
	var before models.JSONB
	if created {
		action = models.AuditDropdownCreated
		option = models.DropdownOption{Category: req.Category, Value: value}
	} else {
		before = Snapshot(&option)
	}
	option.Label = strings.TrimSpace(req.Label)
	option.SortKey = req.SortKey
	option.Active = active

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(&option).Error; err != nil {
			return fmt.Errorf("failed to save dropdown option: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &actorID,
			Action:      action,
			EntityType:  "DropdownOption",
			EntityID:    &option.ID,
			Before:      before,
			After:       Snapshot(&option),
		})
	})
	if err != nil {
		return nil, err
	}

	return &option, nil
}

// List returns active options for a category, in sort order. An empty
// category returns every active option grouped by category.
func (s *DropdownService) List(category models.DropdownCategory, includeInactive bool) ([]models.DropdownOption, error) {
	query := s.db.Model(&models.DropdownOption{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if !includeInactive {
		query = query.Where("active = ?", true)
	}

	var options []models.DropdownOption
	if err := query.Order("category ASC, sort_key ASC, label ASC").Find(&options).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch dropdown options: %w", err)
	}
	return options, nil
}
