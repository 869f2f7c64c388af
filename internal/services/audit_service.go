// internal/services/audit_service.go
package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/models"
)

// AuditService is the append-only recorder for state-changing events. Writes
// that are part of a business transaction share its *gorm.DB so that a failed
// transition never leaves a stray audit row; side-effect events recorded
// after commit go through RecordAsync and never fail the caller.
type AuditService struct {
	db *gorm.DB
}

type AuditEntry struct {
	ActorUserID *uuid.UUID
	Action      models.AuditAction
	EntityType  string
	EntityID    *uuid.UUID
	Before      models.JSONB
	After       models.JSONB
	Metadata    models.JSONB
	IPAddress   string
	UserAgent   string
}

// ClientContext carries who performed a request and from where so public
// endpoints can attribute their audit rows.
type ClientContext struct {
	ActorUserID *uuid.UUID
	IPAddress   string
	UserAgent   string
}

type AuditFilter struct {
	Action      *models.AuditAction
	ActorUserID *uuid.UUID
	EntityType  string
	EntityID    *uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
	Limit       int
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends one entry using tx. Pass nil to write outside any
// transaction.
func (s *AuditService) Record(tx *gorm.DB, entry AuditEntry) error {
	if tx == nil {
		tx = s.db
	}

	row := &models.AuditLog{
		ActorUserID: entry.ActorUserID,
		Action:      entry.Action,
		EntityType:  entry.EntityType,
		EntityID:    entry.EntityID,
		Before:      entry.Before,
		After:       entry.After,
		Metadata:    entry.Metadata,
		IPAddress:   entry.IPAddress,
		UserAgent:   entry.UserAgent,
	}

	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// RecordAsync appends an entry in the background. Failures are logged and
// swallowed.
func (s *AuditService) RecordAsync(entry AuditEntry) {
	go func() {
		if err := s.Record(nil, entry); err != nil {
			logrus.WithError(err).WithField("action", entry.Action).Error("Failed to record audit entry")
		}
	}()
}

func (s *AuditService) List(filter AuditFilter) ([]models.AuditLog, error) {
	query := s.db.Model(&models.AuditLog{})

	if filter.Action != nil {
		query = query.Where("action = ?", *filter.Action)
	}
	if filter.ActorUserID != nil {
		query = query.Where("actor_user_id = ?", *filter.ActorUserID)
	}
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.StartDate != nil {
		query = query.Where("created_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("created_at <= ?", *filter.EndDate)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 2000 {
		limit = 500
	}

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch audit logs: %w", err)
	}
	return logs, nil
}

// Snapshot renders any entity into the opaque before/after shape stored on
// audit rows.
func Snapshot(v interface{}) models.JSONB {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out models.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
