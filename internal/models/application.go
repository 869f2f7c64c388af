// internal/models/application.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Application struct {
	BaseModel
	ApplicantUserID   uuid.UUID         `json:"applicant_user_id" gorm:"type:uuid;not null;index:idx_applications_applicant_status"`
	Type              ApplicationType   `json:"type" gorm:"type:varchar(20);not null;index:idx_applications_type_status"`
	Status            ApplicationStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index:idx_applications_applicant_status;index:idx_applications_type_status"`
	Data              JSONB             `json:"data" gorm:"type:jsonb;not null"`
	SubmittedAt       *time.Time        `json:"submitted_at"`
	DecidedAt         *time.Time        `json:"decided_at"`
	DecisionBy        *uuid.UUID        `json:"decision_by" gorm:"type:uuid"`
	DecisionComment   string            `json:"decision_comment,omitempty" gorm:"type:text"`
	ReviewerNotes     string            `json:"reviewer_notes,omitempty" gorm:"type:text"`
	DocumentsRequired StringList        `json:"documents_required,omitempty" gorm:"type:jsonb"`
	Region            string            `json:"region,omitempty" gorm:"size:100"`
	LicenseID         *uuid.UUID        `json:"license_id" gorm:"type:uuid"`

	// Relationships
	Applicant User       `json:"applicant,omitempty" gorm:"foreignKey:ApplicantUserID"`
	Decider   *User      `json:"decider,omitempty" gorm:"foreignKey:DecisionBy"`
	License   *License   `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Documents []Document `json:"documents,omitempty" gorm:"foreignKey:ApplicationID"`
}

// IsTerminal reports whether the application has been decided.
func (a *Application) IsTerminal() bool {
	return a.Status == ApplicationStatusApproved || a.Status == ApplicationStatusRejected
}

// OrganizationName derives the organization field for license issuance from
// the type-specific payload. Professionals carry no organization.
func (a *Application) OrganizationName() string {
	switch a.Type {
	case ApplicationTypeProvider:
		if v, ok := a.Data["companyName"].(string); ok {
			return v
		}
	case ApplicationTypeEstablishment:
		if v, ok := a.Data["establishmentName"].(string); ok {
			return v
		}
	}
	return ""
}

// Typed payload shapes, one per application type. The stored Data column is
// the JSON encoding of whichever shape matches Type.

type ProviderData struct {
	CompanyName        string `json:"companyName" validate:"required"`
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
	TIN                string `json:"tin" validate:"required"`
	EmployeeSize       string `json:"employeeSize,omitempty"`
	CompanyPhone       string `json:"companyPhone,omitempty"`
	CompanyEmail       string `json:"companyEmail,omitempty" validate:"omitempty,email"`
	PhysicalAddress    string `json:"physicalAddress" validate:"required"`
	PostalAddress      string `json:"postalAddress,omitempty"`
	Website            string `json:"website,omitempty"`
	CompanyDescription string `json:"companyDescription,omitempty"`
	CoreService        string `json:"coreBusinessService,omitempty"`
}

type ProfessionalData struct {
	ProfessionalType  string   `json:"professionalType" validate:"required,oneof=LOCAL FOREIGN"`
	IDType            string   `json:"idType" validate:"required"`
	IDNumber          string   `json:"idNumber" validate:"required"`
	Country           string   `json:"country,omitempty"`
	City              string   `json:"city,omitempty"`
	PhysicalAddress   string   `json:"physicalAddress" validate:"required"`
	YearsOfExperience int      `json:"yearsOfExperience,omitempty"`
	Qualifications    []string `json:"qualifications,omitempty"`
	Certifications    []string `json:"certifications,omitempty"`
	InstitutionName   string   `json:"institutionName,omitempty"`
	RegisteringAs     string   `json:"registeringAs" validate:"required"`
	OtherDetails      string   `json:"otherDetails,omitempty"`
}

type EstablishmentData struct {
	RegisteringAs      string `json:"registeringAs" validate:"required"`
	EstablishmentName  string `json:"establishmentName" validate:"required"`
	Sector             string `json:"sector,omitempty"`
	RegistrationNumber string `json:"registrationNumber" validate:"required"`
	TIN                string `json:"tin" validate:"required"`
	EmployeeSize       string `json:"employeeSize,omitempty"`
	EstablishmentPhone string `json:"establishmentPhone,omitempty"`
	EstablishmentEmail string `json:"establishmentEmail,omitempty" validate:"omitempty,email"`
	PhysicalAddress    string `json:"physicalAddress" validate:"required"`
	PostalAddress      string `json:"postalAddress,omitempty"`
	Website            string `json:"website,omitempty"`
	Description        string `json:"description,omitempty"`
	CoreService        string `json:"coreBusinessService,omitempty"`
}

// DecodePayload unmarshals raw payload data into the shape selected by the
// application type.
func DecodePayload(appType ApplicationType, data JSONB) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload interface{}
	switch appType {
	case ApplicationTypeProvider:
		payload = &ProviderData{}
	case ApplicationTypeProfessional:
		payload = &ProfessionalData{}
	case ApplicationTypeEstablishment:
		payload = &EstablishmentData{}
	default:
		return nil, fmt.Errorf("unknown application type %q", appType)
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
