// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type License struct {
	BaseModel
	ApplicationID    uuid.UUID     `json:"application_id" gorm:"type:uuid;not null;index"`
	LicenseNumber    string        `json:"license_number" gorm:"uniqueIndex;size:40;not null"`
	Type             ApplicationType `json:"type" gorm:"type:varchar(20);not null"`
	IssuedAt         time.Time     `json:"issued_at" gorm:"not null"`
	ExpiresAt        *time.Time    `json:"expires_at" gorm:"index"`
	Status           LicenseStatus `json:"status" gorm:"type:varchar(20);default:'ACTIVE';index"`
	VerificationHash string        `json:"verification_hash" gorm:"size:64;not null;index"`
	HolderName       string        `json:"holder_name" gorm:"size:200;not null"`
	HolderEmail      string        `json:"holder_email" gorm:"size:255;not null;index"`
	OrganizationName string        `json:"organization_name,omitempty" gorm:"size:200"`

	// Relationships
	RenewalRequests []RenewalRequest `json:"renewal_requests,omitempty" gorm:"foreignKey:LicenseID"`
}

type RenewalRequest struct {
	BaseModel
	LicenseID   uuid.UUID     `json:"license_id" gorm:"type:uuid;not null;index:idx_renewals_license_status"`
	UserID      uuid.UUID     `json:"user_id" gorm:"type:uuid;not null;index:idx_renewals_user_status"`
	Status      RenewalStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index:idx_renewals_license_status;index:idx_renewals_user_status"`
	Notes       string        `json:"notes,omitempty" gorm:"type:text"`
	RequestedAt time.Time     `json:"requested_at" gorm:"not null"`
	DecidedAt   *time.Time    `json:"decided_at"`

	// Relationships
	License   License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Requester User    `json:"requester,omitempty" gorm:"foreignKey:UserID"`
}
