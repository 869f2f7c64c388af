// internal/models/audit.go
package models

import (
	"github.com/google/uuid"
)

// AuditLog is append-only: rows are only ever inserted, never updated or
// deleted.
type AuditLog struct {
	BaseModel
	ActorUserID *uuid.UUID  `json:"actor_user_id" gorm:"type:uuid;index:idx_audit_logs_actor_action"`
	Action      AuditAction `json:"action" gorm:"size:50;not null;index:idx_audit_logs_actor_action"`
	EntityType  string      `json:"entity_type" gorm:"size:50;not null;index:idx_audit_logs_entity"`
	EntityID    *uuid.UUID  `json:"entity_id" gorm:"type:uuid;index:idx_audit_logs_entity"`
	Before      JSONB       `json:"before,omitempty" gorm:"type:jsonb"`
	After       JSONB       `json:"after,omitempty" gorm:"type:jsonb"`
	Metadata    JSONB       `json:"metadata,omitempty" gorm:"type:jsonb"`
	IPAddress   string      `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent   string      `json:"user_agent,omitempty" gorm:"type:text"`

	// Relationships
	Actor *User `json:"actor,omitempty" gorm:"foreignKey:ActorUserID"`
}
