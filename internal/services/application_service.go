// internal/services/application_service.go
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

type ApplicationService struct {
	db                  *gorm.DB
	licenseService      *LicenseService
	auditService        *AuditService
	notificationService *NotificationService
}

type CreateApplicationRequest struct {
	Type   models.ApplicationType `json:"type" validate:"required,oneof=PROVIDER PROFESSIONAL ESTABLISHMENT"`
	Data   models.JSONB           `json:"data" validate:"required"`
	Region string                 `json:"region,omitempty"`
}

type UpdateApplicationRequest struct {
	Data   models.JSONB `json:"data" validate:"required"`
	Region *string      `json:"region,omitempty"`
}

type ApproveOptions struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Comment   string     `json:"comment,omitempty"`
}

type ApplicationFilter struct {
	utils.PaginationParams
	Status          *models.ApplicationStatus
	Type            *models.ApplicationType
	ApplicantUserID *uuid.UUID
	Region          string
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
}

// ApprovalResult pairs the approved application with its license.
type ApprovalResult struct {
	Application *models.Application `json:"application"`
	License     *models.License     `json:"license"`
}

type ApplicationStats struct {
	Total      int64                              `json:"total"`
	ByStatus   map[models.ApplicationStatus]int64 `json:"by_status"`
	ByType     map[models.ApplicationType]int64   `json:"by_type"`
	ThisMonth  int64                              `json:"this_month"`
	DecidedAvg float64                            `json:"decided_avg_days"`
}

func NewApplicationService(db *gorm.DB, licenseService *LicenseService, auditService *AuditService, notificationService *NotificationService) *ApplicationService {
	return &ApplicationService{
		db:                  db,
		licenseService:      licenseService,
		auditService:        auditService,
		notificationService: notificationService,
	}
}

// CreateDraft opens a PENDING application for the applicant after validating
// the type-specific payload.
func (s *ApplicationService) CreateDraft(applicantID uuid.UUID, req *CreateApplicationRequest) (*models.Application, error) {
	var app *models.Application
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		created, err := s.createDraftTx(tx, applicantID, req)
		if err != nil {
			return err
		}
		app = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// createDraftTx is the transaction-scoped variant shared with combined
// registration.
func (s *ApplicationService) createDraftTx(tx *gorm.DB, applicantID uuid.UUID, req *CreateApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid application request", utils.GetValidationErrors(err))
	}
	if err := validateApplicationPayload(req.Type, req.Data); err != nil {
		return nil, err
	}

	app := &models.Application{
		ApplicantUserID: applicantID,
		Type:            req.Type,
		Status:          models.ApplicationStatusPending,
		Data:            req.Data,
		Region:          strings.TrimSpace(req.Region),
	}

	if err := tx.Create(app).Error; err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	if err := s.auditService.Record(tx, AuditEntry{
		ActorUserID: &applicantID,
		Action:      models.AuditApplicationCreated,
		EntityType:  "Application",
		EntityID:    &app.ID,
		After:       Snapshot(app),
	}); err != nil {
		return nil, err
	}

	return app, nil
}

// UpdateDraft replaces the payload of an application the applicant still
// owns. Once the application leaves PENDING it is frozen for the applicant.
func (s *ApplicationService) UpdateDraft(appID uuid.UUID, applicantID uuid.UUID, req *UpdateApplicationRequest) (*models.Application, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.ValidationFailed("invalid application request", utils.GetValidationErrors(err))
	}

	app, err := s.getOwned(appID, applicantID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, utils.InvalidState("only pending applications can be updated")
	}
	if err := validateApplicationPayload(app.Type, req.Data); err != nil {
		return nil, err
	}

	before := Snapshot(app)
	app.Data = req.Data
	if req.Region != nil {
		app.Region = strings.TrimSpace(*req.Region)
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &applicantID,
			Action:      models.AuditApplicationUpdated,
			EntityType:  "Application",
			EntityID:    &app.ID,
			Before:      before,
			After:       Snapshot(app),
		})
	})
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Submit stamps submittedAt on a PENDING application. The status does not
// change; submission marks the application ready for review, and repeat
// submissions refresh the timestamp.
func (s *ApplicationService) Submit(appID uuid.UUID, applicantID uuid.UUID) (*models.Application, error) {
	app, err := s.getOwned(appID, applicantID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, utils.InvalidState("only pending applications can be submitted")
	}

	before := Snapshot(app)
	now := time.Now()
	app.SubmittedAt = &now

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to submit application: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &applicantID,
			Action:      models.AuditApplicationSubmitted,
			EntityType:  "Application",
			EntityID:    &app.ID,
			Before:      before,
			After:       Snapshot(app),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyApplicant(app, func(user *models.User) error {
		return s.notificationService.SendApplicationSubmitted(user, app)
	})

	return app, nil
}

// SetUnderReview moves an undecided application to UNDER_REVIEW. Calling it
// again on an application already under review refreshes the reviewer notes.
func (s *ApplicationService) SetUnderReview(appID uuid.UUID, reviewerID uuid.UUID, notes string) (*models.Application, error) {
	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}
	if app.IsTerminal() {
		return nil, utils.InvalidState("application has already been decided")
	}

	before := Snapshot(app)
	app.Status = models.ApplicationStatusUnderReview
	if notes != "" {
		app.ReviewerNotes = notes
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &reviewerID,
			Action:      models.AuditApplicationReviewed,
			EntityType:  "Application",
			EntityID:    &app.ID,
			Before:      before,
			After:       Snapshot(app),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyApplicant(app, func(user *models.User) error {
		return s.notificationService.SendApplicationUnderReview(user, app)
	})

	return app, nil
}

// Approve decides the application and mints its license in one transaction.
// There is no status precondition: an application may be approved straight
// from PENDING, and approving again is a safe retry that converges on the
// already-minted license without repeating audits or emails.
func (s *ApplicationService) Approve(appID uuid.UUID, reviewerID uuid.UUID, opts ApproveOptions) (*ApprovalResult, error) {
	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}
	alreadyApproved := app.Status == models.ApplicationStatusApproved

	var applicant models.User
	if err := s.db.First(&applicant, "id = ?", app.ApplicantUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("applicant")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	before := Snapshot(app)
	now := time.Now()
	var license *models.License
	var minted bool

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		license, minted, err = s.licenseService.IssueForApplication(tx, app, &applicant, opts.ExpiresAt)
		if err != nil {
			return err
		}

		if !alreadyApproved {
			app.Status = models.ApplicationStatusApproved
			app.DecidedAt = &now
			app.DecisionBy = &reviewerID
			app.DecisionComment = opts.Comment
		}
		app.LicenseID = &license.ID

		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to approve application: %w", err)
		}

		if !alreadyApproved {
			if err := s.auditService.Record(tx, AuditEntry{
				ActorUserID: &reviewerID,
				Action:      models.AuditApplicationApproved,
				EntityType:  "Application",
				EntityID:    &app.ID,
				Before:      before,
				After:       Snapshot(app),
			}); err != nil {
				return err
			}
		}
		if minted {
			if err := s.auditService.Record(tx, AuditEntry{
				ActorUserID: &reviewerID,
				Action:      models.AuditLicenseGenerated,
				EntityType:  "License",
				EntityID:    &license.ID,
				After:       Snapshot(license),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if alreadyApproved {
		return &ApprovalResult{Application: app, License: license}, nil
	}

	s.activateApplicant(&applicant)

	go func() {
		if err := s.notificationService.SendApplicationApproved(&applicant, app, license); err != nil {
			logrus.WithError(err).Warn("Failed to send approval email")
		}
	}()

	return &ApprovalResult{Application: app, License: license}, nil
}

// Reject requires the application to be UNDER_REVIEW. The decision comment
// is optional.
func (s *ApplicationService) Reject(appID uuid.UUID, reviewerID uuid.UUID, comment string) (*models.Application, error) {
	comment = strings.TrimSpace(comment)

	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusUnderReview {
		return nil, utils.InvalidState("only applications under review can be rejected")
	}

	before := Snapshot(app)
	now := time.Now()
	app.Status = models.ApplicationStatusRejected
	app.DecidedAt = &now
	app.DecisionBy = &reviewerID
	app.DecisionComment = comment

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to reject application: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &reviewerID,
			Action:      models.AuditApplicationRejected,
			EntityType:  "Application",
			EntityID:    &app.ID,
			Before:      before,
			After:       Snapshot(app),
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyApplicant(app, func(user *models.User) error {
		return s.notificationService.SendApplicationRejected(user, app, comment)
	})

	return app, nil
}

// RequestDocuments records the list of documents a reviewer needs before the
// application can proceed and notifies the applicant.
func (s *ApplicationService) RequestDocuments(appID uuid.UUID, reviewerID uuid.UUID, documents []string, notes string) (*models.Application, error) {
	cleaned := make([]string, 0, len(documents))
	for _, d := range documents {
		if d = strings.TrimSpace(d); d != "" {
			cleaned = append(cleaned, d)
		}
	}
	if len(cleaned) == 0 {
		return nil, utils.ValidationFailed("at least one document must be named", nil)
	}

	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}
	if app.IsTerminal() {
		return nil, utils.InvalidState("application has already been decided")
	}

	before := Snapshot(app)
	app.DocumentsRequired = models.StringList(cleaned)
	if notes != "" {
		app.ReviewerNotes = notes
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(app).Error; err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &reviewerID,
			Action:      models.AuditDocumentsRequested,
			EntityType:  "Application",
			EntityID:    &app.ID,
			Before:      before,
			After:       Snapshot(app),
			Metadata:    models.JSONB{"documents": cleaned, "requested_at": time.Now().Format(time.RFC3339)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyApplicant(app, func(user *models.User) error {
		return s.notificationService.SendDocumentsRequested(user, app, cleaned)
	})

	return app, nil
}

// AttachDocument links an uploaded file to the application.
func (s *ApplicationService) AttachDocument(appID uuid.UUID, uploaderID uuid.UUID, doc *models.Document) (*models.Document, error) {
	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}

	doc.ApplicationID = app.ID
	doc.UploadedBy = uploaderID

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &uploaderID,
			Action:      models.AuditDocumentUploaded,
			EntityType:  "Document",
			EntityID:    &doc.ID,
			After:       Snapshot(doc),
		})
	})
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// GetByID returns an application with its relations. Applicants may only see
// their own; staff see everything.
func (s *ApplicationService) GetByID(appID uuid.UUID, requesterID uuid.UUID, requesterRole models.UserRole) (*models.Application, error) {
	var app models.Application
	err := s.db.Preload("Applicant").Preload("License").Preload("Documents").
		First(&app, "id = ?", appID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("application")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !isStaffRole(requesterRole) && app.ApplicantUserID != requesterID {
		return nil, utils.ForbiddenError("you do not have access to this application")
	}

	return &app, nil
}

// ListOwn returns the caller's applications, newest first.
func (s *ApplicationService) ListOwn(applicantID uuid.UUID, params utils.PaginationParams) ([]models.Application, int64, error) {
	filter := ApplicationFilter{PaginationParams: params, ApplicantUserID: &applicantID}
	return s.List(filter)
}

// List returns applications matching a filter.
func (s *ApplicationService) List(filter ApplicationFilter) ([]models.Application, int64, error) {
	query := s.db.Model(&models.Application{}).Preload("Applicant").Preload("License")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.ApplicantUserID != nil {
		query = query.Where("applicant_user_id = ?", *filter.ApplicantUserID)
	}
	if filter.Region != "" {
		query = query.Where("region = ?", filter.Region)
	}
	if filter.SubmittedAfter != nil {
		query = query.Where("submitted_at >= ?", *filter.SubmittedAfter)
	}
	if filter.SubmittedBefore != nil {
		query = query.Where("submitted_at <= ?", *filter.SubmittedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	allowedSortFields := []string{"created_at", "submitted_at", "decided_at", "status", "type"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch applications: %w", err)
	}

	return apps, total, nil
}

// Stats aggregates counts for the admin dashboard.
func (s *ApplicationService) Stats() (*ApplicationStats, error) {
	stats := &ApplicationStats{
		ByStatus: make(map[models.ApplicationStatus]int64),
		ByType:   make(map[models.ApplicationType]int64),
	}

	if err := s.db.Model(&models.Application{}).Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count applications: %w", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	if err := s.db.Model(&models.Application{}).
		Select("status as key, COUNT(*) as count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate by status: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[models.ApplicationStatus(b.Key)] = b.Count
	}

	var byType []bucket
	if err := s.db.Model(&models.Application{}).
		Select("type as key, COUNT(*) as count").Group("type").Scan(&byType).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate by type: %w", err)
	}
	for _, b := range byType {
		stats.ByType[models.ApplicationType(b.Key)] = b.Count
	}

	monthStart := time.Now().AddDate(0, 0, -30)
	if err := s.db.Model(&models.Application{}).
		Where("created_at >= ?", monthStart).Count(&stats.ThisMonth).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent applications: %w", err)
	}

	return stats, nil
}

func (s *ApplicationService) getByID(appID uuid.UUID) (*models.Application, error) {
	var app models.Application
	if err := s.db.First(&app, "id = ?", appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("application")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &app, nil
}

func (s *ApplicationService) getOwned(appID uuid.UUID, applicantID uuid.UUID) (*models.Application, error) {
	app, err := s.getByID(appID)
	if err != nil {
		return nil, err
	}
	if app.ApplicantUserID != applicantID {
		return nil, utils.ForbiddenError("you do not have access to this application")
	}
	return app, nil
}

// activateApplicant escalates a non-active applicant to ACTIVE after an
// approval. Runs outside the approval transaction; a failure here never
// rolls back the decision.
func (s *ApplicationService) activateApplicant(applicant *models.User) {
	if applicant.Status == models.UserStatusActive {
		return
	}

	before := Snapshot(applicant)
	applicant.Status = models.UserStatusActive
	if err := s.db.Model(&models.User{}).Where("id = ?", applicant.ID).
		Update("status", models.UserStatusActive).Error; err != nil {
		logrus.WithError(err).WithField("user", applicant.ID).Error("Failed to activate applicant after approval")
		return
	}

	s.auditService.RecordAsync(AuditEntry{
		Action:     models.AuditUserReactivated,
		EntityType: "User",
		EntityID:   &applicant.ID,
		Before:     before,
		After:      Snapshot(applicant),
	})
}

func (s *ApplicationService) notifyApplicant(app *models.Application, send func(*models.User) error) {
	go func() {
		var user models.User
		if err := s.db.First(&user, "id = ?", app.ApplicantUserID).Error; err != nil {
			logrus.WithError(err).Warn("Failed to load applicant for notification")
			return
		}
		if err := send(&user); err != nil {
			logrus.WithError(err).Warn("Failed to send application email")
		}
	}()
}

// validateApplicationPayload decodes the free-form payload into the typed
// shape for the application type and runs struct validation on it.
func validateApplicationPayload(appType models.ApplicationType, data models.JSONB) error {
	payload, err := models.DecodePayload(appType, data)
	if err != nil {
		return utils.ValidationFailed("malformed application data", nil)
	}
	if err := utils.ValidateStruct(payload); err != nil {
		return utils.ValidationFailed("invalid application data", utils.GetValidationErrors(err))
	}
	return nil
}

func isStaffRole(role models.UserRole) bool {
	return role == models.UserRoleReviewer || role == models.UserRoleAdmin || role == models.UserRoleSuperAdmin
}
