// internal/services/license_service.go
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

const licenseNumberAttempts = 5

type LicenseService struct {
	db                  *gorm.DB
	config              *config.Config
	auditService        *AuditService
	notificationService *NotificationService
}

type LicenseFilter struct {
	utils.PaginationParams
	Status        *models.LicenseStatus
	Type          *models.ApplicationType
	ExpiresBefore *time.Time
	ExpiresAfter  *time.Time
}

type RenewalFilter struct {
	utils.PaginationParams
	Status    *models.RenewalStatus
	LicenseID *uuid.UUID
	UserID    *uuid.UUID
}

type ApproveRenewalRequest struct {
	// NewExpiry is the base date the renewed validity period starts from.
	NewExpiry *time.Time `json:"new_expiry"`
	Notes     string     `json:"notes,omitempty"`
}

// RenewalDecision carries the outcome of an approved renewal: the superseding
// license, the retired one, and the decided request.
type RenewalDecision struct {
	NewLicense *models.License        `json:"new_license"`
	OldLicense *models.License        `json:"old_license"`
	Request    *models.RenewalRequest `json:"request"`
}

func NewLicenseService(db *gorm.DB, cfg *config.Config, auditService *AuditService, notificationService *NotificationService) *LicenseService {
	return &LicenseService{
		db:                  db,
		config:              cfg,
		auditService:        auditService,
		notificationService: notificationService,
	}
}

// IssueForApplication mints the license backing an approved application, or
// reuses the one minted by an earlier approval. The second return value is
// true only when a new license row was actually created; callers use it to
// suppress repeat audit events and emails on retry.
//
// Must run inside the approval transaction so the license insert and the
// application status write commit together.
func (s *LicenseService) IssueForApplication(tx *gorm.DB, app *models.Application, applicant *models.User, expiresAt *time.Time) (*models.License, bool, error) {
	var existing models.License
	err := tx.Where("application_id = ?", app.ID).Order("created_at DESC").First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("database error: %w", err)
	}

	holderEmail := strings.TrimSpace(applicant.Email)
	if !utils.IsValidEmail(holderEmail) {
		return nil, false, utils.ValidationFailed("valid holder email not found for license", nil)
	}
	holderName := applicant.FullName()
	if holderName == "" {
		holderName = "Holder"
	}

	issuedAt := time.Now()
	if expiresAt == nil {
		t := issuedAt.AddDate(0, s.config.License.ValidityMonths, 0)
		expiresAt = &t
	}

	license := &models.License{
		ApplicationID:    app.ID,
		Type:             app.Type,
		IssuedAt:         issuedAt,
		ExpiresAt:        expiresAt,
		Status:           models.LicenseStatusActive,
		HolderName:       holderName,
		HolderEmail:      holderEmail,
		OrganizationName: app.OrganizationName(),
	}

	if err := s.insertWithFreshNumber(tx, license); err != nil {
		if isDuplicateKey(err) {
			// Another approval won the application race; converge on its row.
			var raced models.License
			if ferr := tx.Where("application_id = ? AND status = ?", app.ID, models.LicenseStatusActive).
				First(&raced).Error; ferr == nil {
				return &raced, false, nil
			}
		}
		return nil, false, err
	}

	return license, true, nil
}

// insertWithFreshNumber retries number generation when the random component
// collides with an existing license.
func (s *LicenseService) insertWithFreshNumber(tx *gorm.DB, license *models.License) error {
	for attempt := 0; attempt < licenseNumberAttempts; attempt++ {
		number, err := utils.GenerateLicenseNumber(s.config.License.Prefix, string(license.Type))
		if err != nil {
			return fmt.Errorf("failed to generate license number: %w", err)
		}
		license.LicenseNumber = number
		license.VerificationHash = utils.GenerateVerificationHash(number)

		err = tx.Create(license).Error
		if err == nil {
			return nil
		}
		if !isDuplicateKey(err) {
			return fmt.Errorf("failed to create license: %w", err)
		}

		// A duplicate on the application constraint means a concurrent
		// approval, not a number collision; surface it to the caller.
		var count int64
		if cerr := tx.Model(&models.License{}).
			Where("application_id = ? AND status = ?", license.ApplicationID, models.LicenseStatusActive).
			Count(&count).Error; cerr == nil && count > 0 {
			return err
		}
	}
	return fmt.Errorf("failed to allocate a unique license number after %d attempts", licenseNumberAttempts)
}

// GetByID returns a license or NotFound.
func (s *LicenseService) GetByID(id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.First(&license, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("license")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// VerifyByNumber is the public verification lookup: no authentication, 404
// when absent. A checksum mismatch skips the database entirely.
func (s *LicenseService) VerifyByNumber(licenseNumber string, client ClientContext) (*models.License, error) {
	licenseNumber = strings.ToUpper(strings.TrimSpace(licenseNumber))
	if !utils.VerifyLicenseNumberChecksum(licenseNumber) {
		return nil, utils.NotFoundError("license")
	}

	var license models.License
	if err := s.db.Where("license_number = ?", licenseNumber).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("license")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	s.auditService.RecordAsync(AuditEntry{
		ActorUserID: client.ActorUserID,
		Action:      models.AuditLicenseVerified,
		EntityType:  "License",
		EntityID:    &license.ID,
		Metadata:    models.JSONB{"license_number": license.LicenseNumber},
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
	})

	return &license, nil
}

// UpdateStatus is the admin-driven transition. Any-to-any is allowed; every
// change is logged with a before/after snapshot.
func (s *LicenseService) UpdateStatus(licenseID uuid.UUID, status models.LicenseStatus, actorID uuid.UUID, notes string) (*models.License, error) {
	var license models.License
	if err := s.db.First(&license, "id = ?", licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("license")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	before := Snapshot(&license)
	license.Status = status

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Save(&license).Error; err != nil {
			return fmt.Errorf("failed to update license status: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &actorID,
			Action:      models.AuditLicenseStatusUpdated,
			EntityType:  "License",
			EntityID:    &license.ID,
			Before:      before,
			After:       Snapshot(&license),
			Metadata:    models.JSONB{"notes": notes},
		})
	})
	if err != nil {
		return nil, err
	}

	return &license, nil
}

// RequestRenewal creates a PENDING renewal request for a license the caller
// holds. Any current license status is acceptable.
func (s *LicenseService) RequestRenewal(licenseID uuid.UUID, userID uuid.UUID, notes string) (*models.RenewalRequest, error) {
	var license models.License
	if err := s.db.First(&license, "id = ?", licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundError("license")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	request := &models.RenewalRequest{
		LicenseID:   license.ID,
		UserID:      userID,
		Status:      models.RenewalStatusPending,
		Notes:       notes,
		RequestedAt: time.Now(),
	}

	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Create(request).Error; err != nil {
			return fmt.Errorf("failed to create renewal request: %w", err)
		}
		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &userID,
			Action:      models.AuditLicenseRenewalRequest,
			EntityType:  "License",
			EntityID:    &license.ID,
			After:       Snapshot(request),
		})
	})
	if err != nil {
		return nil, err
	}

	return request, nil
}

// ApproveRenewal supersedes the old license with a newly minted one. The new
// validity period starts at the supplied base date; the retired license is
// force-set to EXPIRED with no overlap window, and the owning application is
// repointed at the new license.
func (s *LicenseService) ApproveRenewal(renewalID uuid.UUID, actorID uuid.UUID, req *ApproveRenewalRequest) (*RenewalDecision, error) {
	if req == nil || req.NewExpiry == nil {
		return nil, utils.ValidationFailed("new_expiry is required", nil)
	}

	request, oldLicense, err := s.loadPendingRenewal(renewalID)
	if err != nil {
		return nil, err
	}

	baseDate := *req.NewExpiry
	newExpiry := baseDate.AddDate(0, s.config.License.ValidityMonths, 0)
	oldSnapshot := Snapshot(oldLicense)
	now := time.Now()

	newLicense := &models.License{
		ApplicationID:    oldLicense.ApplicationID,
		Type:             oldLicense.Type,
		IssuedAt:         baseDate,
		ExpiresAt:        &newExpiry,
		Status:           models.LicenseStatusActive,
		HolderName:       oldLicense.HolderName,
		HolderEmail:      oldLicense.HolderEmail,
		OrganizationName: oldLicense.OrganizationName,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// PENDING-scoped update acts as the compare-and-swap guard against a
		// concurrent decision on the same request.
		decidedAt := now
		res := tx.Model(&models.RenewalRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RenewalStatusPending).
			Updates(map[string]interface{}{"status": models.RenewalStatusApproved, "decided_at": decidedAt})
		if res.Error != nil {
			return fmt.Errorf("failed to decide renewal request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("renewal request already decided")
		}
		request.Status = models.RenewalStatusApproved
		request.DecidedAt = &decidedAt

		// Retire the old license before minting its replacement so the
		// one-active-license-per-application constraint holds throughout.
		oldLicense.Status = models.LicenseStatusExpired
		if err := tx.Model(&models.License{}).Where("id = ?", oldLicense.ID).
			Update("status", models.LicenseStatusExpired).Error; err != nil {
			return fmt.Errorf("failed to expire superseded license: %w", err)
		}

		if err := s.insertWithFreshNumber(tx, newLicense); err != nil {
			return err
		}

		if err := tx.Model(&models.Application{}).Where("id = ?", oldLicense.ApplicationID).
			Update("license_id", newLicense.ID).Error; err != nil {
			return fmt.Errorf("failed to repoint application license: %w", err)
		}

		entries := []AuditEntry{
			{
				ActorUserID: &actorID,
				Action:      models.AuditLicenseRenewalApproved,
				EntityType:  "License",
				EntityID:    &newLicense.ID,
				Before:      oldSnapshot,
				After:       Snapshot(newLicense),
			},
			{
				ActorUserID: &actorID,
				Action:      models.AuditLicenseGenerated,
				EntityType:  "License",
				EntityID:    &newLicense.ID,
				After:       Snapshot(newLicense),
			},
			{
				ActorUserID: &actorID,
				Action:      models.AuditLicenseExpired,
				EntityType:  "License",
				EntityID:    &oldLicense.ID,
				Before:      oldSnapshot,
				After:       Snapshot(oldLicense),
				Metadata:    models.JSONB{"superseded_by": newLicense.ID.String()},
			},
			{
				ActorUserID: &actorID,
				Action:      models.AuditLicenseRenewed,
				EntityType:  "License",
				EntityID:    &newLicense.ID,
				Metadata:    models.JSONB{"supersedes": oldLicense.ID.String()},
			},
		}
		for _, entry := range entries {
			if err := s.auditService.Record(tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.notificationService.SendRenewalApproved(oldLicense, newLicense); err != nil {
			logrus.WithError(err).Warn("Failed to send renewal approval email")
		}
	}()

	return &RenewalDecision{NewLicense: newLicense, OldLicense: oldLicense, Request: request}, nil
}

// RejectRenewal marks a PENDING request REJECTED.
func (s *LicenseService) RejectRenewal(renewalID uuid.UUID, actorID uuid.UUID, notes string) (*models.RenewalRequest, error) {
	request, license, err := s.loadPendingRenewal(renewalID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.RenewalRequest{}).
			Where("id = ? AND status = ?", request.ID, models.RenewalStatusPending).
			Updates(map[string]interface{}{"status": models.RenewalStatusRejected, "decided_at": now})
		if res.Error != nil {
			return fmt.Errorf("failed to decide renewal request: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("renewal request already decided")
		}
		request.Status = models.RenewalStatusRejected
		request.DecidedAt = &now

		return s.auditService.Record(tx, AuditEntry{
			ActorUserID: &actorID,
			Action:      models.AuditLicenseRenewalRejected,
			EntityType:  "License",
			EntityID:    &license.ID,
			After:       Snapshot(request),
			Metadata:    models.JSONB{"notes": notes},
		})
	})
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.notificationService.SendRenewalRejected(license, notes); err != nil {
			logrus.WithError(err).Warn("Failed to send renewal rejection email")
		}
	}()

	return request, nil
}

func (s *LicenseService) loadPendingRenewal(renewalID uuid.UUID) (*models.RenewalRequest, *models.License, error) {
	var request models.RenewalRequest
	if err := s.db.First(&request, "id = ?", renewalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NotFoundError("renewal request")
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	if request.Status != models.RenewalStatusPending {
		return nil, nil, utils.InvalidState("renewal request already decided")
	}

	var license models.License
	if err := s.db.First(&license, "id = ?", request.LicenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, utils.NotFoundError("license")
		}
		return nil, nil, fmt.Errorf("database error: %w", err)
	}

	return &request, &license, nil
}

// ExpireDueLicenses marks every license whose expiry has passed as EXPIRED
// and returns the number of licenses touched. Already-expired licenses are
// excluded by the status filter, so re-running against unchanged data is a
// no-op.
func (s *LicenseService) ExpireDueLicenses(now time.Time) (int, error) {
	var due []models.License
	if err := s.db.Where("expires_at IS NOT NULL AND expires_at <= ? AND status != ?", now, models.LicenseStatusExpired).
		Find(&due).Error; err != nil {
		return 0, fmt.Errorf("failed to query due licenses: %w", err)
	}

	expired := 0
	for i := range due {
		license := &due[i]
		before := Snapshot(license)
		license.Status = models.LicenseStatusExpired

		err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
			if err := tx.Model(&models.License{}).Where("id = ?", license.ID).
				Update("status", models.LicenseStatusExpired).Error; err != nil {
				return fmt.Errorf("failed to expire license: %w", err)
			}
			return s.auditService.Record(tx, AuditEntry{
				Action:     models.AuditLicenseExpired,
				EntityType: "License",
				EntityID:   &license.ID,
				Before:     before,
				After:      Snapshot(license),
			})
		})
		if err != nil {
			logrus.WithError(err).WithField("license", license.LicenseNumber).Error("Expiry sweep failed for license")
			continue
		}
		expired++

		lic := license
		go func() {
			if err := s.notificationService.SendLicenseExpired(lic); err != nil {
				logrus.WithError(err).Warn("Failed to send license expiry email")
			}
		}()
	}

	return expired, nil
}

// List returns licenses matching an admin filter.
func (s *LicenseService) List(filter LicenseFilter) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{})

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.ExpiresBefore != nil {
		query = query.Where("expires_at <= ?", *filter.ExpiresBefore)
	}
	if filter.ExpiresAfter != nil {
		query = query.Where("expires_at >= ?", *filter.ExpiresAfter)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"LOWER(license_number) LIKE ? OR LOWER(holder_name) LIKE ? OR LOWER(holder_email) LIKE ? OR LOWER(organization_name) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "issued_at", "expires_at", "status"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// ListByHolderEmail returns the licenses held by an account, matched by the
// holder email captured at issuance.
func (s *LicenseService) ListByHolderEmail(email string, params utils.PaginationParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{}).Where("holder_email = ?", strings.TrimSpace(email))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "issued_at", "expires_at"})
	query = utils.ApplyPagination(query, params)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// ListRenewals returns renewal requests matching a filter.
func (s *LicenseService) ListRenewals(filter RenewalFilter) ([]models.RenewalRequest, int64, error) {
	query := s.db.Model(&models.RenewalRequest{}).Preload("License")

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.LicenseID != nil {
		query = query.Where("license_id = ?", *filter.LicenseID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count renewal requests: %w", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "requested_at", "status"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var requests []models.RenewalRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch renewal requests: %w", err)
	}

	return requests, total, nil
}

// isDuplicateKey reports whether err is a unique-constraint violation.
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
