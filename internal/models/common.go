// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL (stored as TEXT elsewhere)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// StringList is an ordered list of strings stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return nil
}

// Enums
type UserRole string

const (
	UserRoleApplicant  UserRole = "APPLICANT"
	UserRoleReviewer   UserRole = "REVIEWER"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleSuperAdmin UserRole = "SUPERADMIN"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
	UserStatusDeleted   UserStatus = "DELETED"
)

type ApplicationType string

const (
	ApplicationTypeProvider      ApplicationType = "PROVIDER"
	ApplicationTypeProfessional  ApplicationType = "PROFESSIONAL"
	ApplicationTypeEstablishment ApplicationType = "ESTABLISHMENT"
)

type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "PENDING"
	ApplicationStatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	ApplicationStatusApproved    ApplicationStatus = "APPROVED"
	ApplicationStatusRejected    ApplicationStatus = "REJECTED"
)

type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "ACTIVE"
	LicenseStatusExpired   LicenseStatus = "EXPIRED"
	LicenseStatusRevoked   LicenseStatus = "REVOKED"
	LicenseStatusSuspended LicenseStatus = "SUSPENDED"
)

type RenewalStatus string

const (
	RenewalStatusPending  RenewalStatus = "PENDING"
	RenewalStatusApproved RenewalStatus = "APPROVED"
	RenewalStatusRejected RenewalStatus = "REJECTED"
)

type DropdownCategory string

const (
	DropdownCategorySector           DropdownCategory = "SECTOR"
	DropdownCategoryEmployeeSize     DropdownCategory = "EMPLOYEE_SIZE"
	DropdownCategoryProfessionalType DropdownCategory = "PROFESSIONAL_TYPE"
	DropdownCategoryDesignation      DropdownCategory = "DESIGNATION"
	DropdownCategoryIDType           DropdownCategory = "ID_TYPE"
	DropdownCategoryServiceType      DropdownCategory = "SERVICE_TYPE"
)

// AuditAction enumerates every state-changing event the audit log records.
type AuditAction string

const (
	AuditUserRegistered  AuditAction = "USER_REGISTERED"
	AuditUserLogin       AuditAction = "USER_LOGIN"
	AuditUserUpdated     AuditAction = "USER_UPDATED"
	AuditUserSuspended   AuditAction = "USER_SUSPENDED"
	AuditUserReactivated AuditAction = "USER_REACTIVATED"
	AuditUserDeleted     AuditAction = "USER_DELETED"

	AuditApplicationCreated   AuditAction = "APPLICATION_CREATED"
	AuditApplicationUpdated   AuditAction = "APPLICATION_UPDATED"
	AuditApplicationSubmitted AuditAction = "APPLICATION_SUBMITTED"
	AuditApplicationReviewed  AuditAction = "APPLICATION_REVIEWED"
	AuditApplicationApproved  AuditAction = "APPLICATION_APPROVED"
	AuditApplicationRejected  AuditAction = "APPLICATION_REJECTED"
	AuditDocumentsRequested   AuditAction = "DOCUMENTS_REQUESTED"
	AuditDocumentUploaded     AuditAction = "DOCUMENT_UPLOADED"

	AuditLicenseGenerated       AuditAction = "LICENSE_GENERATED"
	AuditLicenseVerified        AuditAction = "LICENSE_VERIFIED"
	AuditLicenseStatusUpdated   AuditAction = "LICENSE_STATUS_UPDATED"
	AuditLicenseExpired         AuditAction = "LICENSE_EXPIRED"
	AuditLicenseRenewalRequest  AuditAction = "LICENSE_RENEWAL_REQUESTED"
	AuditLicenseRenewalApproved AuditAction = "LICENSE_RENEWAL_APPROVED"
	AuditLicenseRenewalRejected AuditAction = "LICENSE_RENEWAL_REJECTED"
	AuditLicenseRenewed         AuditAction = "LICENSE_RENEWED"

	AuditDropdownCreated AuditAction = "DROPDOWN_CREATED"
	AuditDropdownUpdated AuditAction = "DROPDOWN_UPDATED"
)
