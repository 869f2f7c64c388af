// internal/services/application_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

type ApplicationServiceTestSuite struct {
	suite.Suite
	svc       *testServices
	applicant *models.User
	reviewer  *models.User
}

func (s *ApplicationServiceTestSuite) SetupTest() {
	s.svc = newTestServices(s.T())
	s.applicant = createTestUser(s.T(), s.svc.db, "applicant@example.com", models.UserRoleApplicant)
	s.reviewer = createTestUser(s.T(), s.svc.db, "reviewer@example.com", models.UserRoleReviewer)
}

func (s *ApplicationServiceTestSuite) createProviderApp() *models.Application {
	app, err := s.svc.application.CreateDraft(s.applicant.ID, &CreateApplicationRequest{
		Type: models.ApplicationTypeProvider,
		Data: providerPayload(),
	})
	s.Require().NoError(err)
	return app
}

func (s *ApplicationServiceTestSuite) TestCreateDraftStartsPending() {
	app := s.createProviderApp()

	s.Equal(models.ApplicationStatusPending, app.Status)
	s.Nil(app.SubmittedAt)
	s.Nil(app.DecidedAt)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditApplicationCreated))
}

func (s *ApplicationServiceTestSuite) TestCreateDraftRejectsBadPayload() {
	_, err := s.svc.application.CreateDraft(s.applicant.ID, &CreateApplicationRequest{
		Type: models.ApplicationTypeProvider,
		Data: models.JSONB{"companyName": "No Registration Ltd"},
	})

	s.True(utils.IsCode(err, utils.CodeValidation))
}

func (s *ApplicationServiceTestSuite) TestSubmitStampsTimestampKeepsPending() {
	app := s.createProviderApp()

	submitted, err := s.svc.application.Submit(app.ID, s.applicant.ID)
	s.Require().NoError(err)

	s.Equal(models.ApplicationStatusPending, submitted.Status)
	s.NotNil(submitted.SubmittedAt)
}

func (s *ApplicationServiceTestSuite) TestSubmitByNonOwnerForbidden() {
	app := s.createProviderApp()

	_, err := s.svc.application.Submit(app.ID, s.reviewer.ID)
	s.True(utils.IsCode(err, utils.CodeForbidden))
}

func (s *ApplicationServiceTestSuite) TestFullLifecycleToApproval() {
	app := s.createProviderApp()

	_, err := s.svc.application.Submit(app.ID, s.applicant.ID)
	s.Require().NoError(err)

	underReview, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "checking registry")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusUnderReview, underReview.Status)

	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)

	s.Equal(models.ApplicationStatusApproved, result.Application.Status)
	s.NotNil(result.Application.DecidedAt)
	s.Equal(s.reviewer.ID, *result.Application.DecisionBy)
	s.Require().NotNil(result.License)
	s.Equal(result.License.ID, *result.Application.LicenseID)

	license := result.License
	s.Equal(models.LicenseStatusActive, license.Status)
	s.Equal(app.ID, license.ApplicationID)
	s.Equal("applicant@example.com", license.HolderEmail)
	s.Equal("Ama Mensah", license.HolderName)
	s.Equal("Acme Health Services", license.OrganizationName)
	s.True(utils.VerifyLicenseNumberChecksum(license.LicenseNumber))
	s.Equal(utils.GenerateVerificationHash(license.LicenseNumber), license.VerificationHash)
	s.Require().NotNil(license.ExpiresAt)
	s.WithinDuration(time.Now().AddDate(0, 12, 0), *license.ExpiresAt, time.Minute)

	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditApplicationApproved))
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseGenerated))
}

func (s *ApplicationServiceTestSuite) TestApproveFromPendingAllowed() {
	app := s.createProviderApp()

	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusApproved, result.Application.Status)
}

func (s *ApplicationServiceTestSuite) TestApproveTwiceConverges() {
	app := s.createProviderApp()

	first, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)

	// A retried approval is not an error: it returns the already-minted
	// license and records no further decision audits.
	second, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)
	s.Equal(first.License.ID, second.License.ID)
	s.Equal(first.License.LicenseNumber, second.License.LicenseNumber)

	var licenses []models.License
	s.Require().NoError(s.svc.db.Where("application_id = ?", app.ID).Find(&licenses).Error)
	s.Len(licenses, 1)

	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditApplicationApproved))
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseGenerated))
}

func (s *ApplicationServiceTestSuite) TestApproveWithCustomExpiry() {
	app := s.createProviderApp()
	expiry := time.Now().AddDate(0, 6, 0).Truncate(time.Second)

	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{ExpiresAt: &expiry})
	s.Require().NoError(err)
	s.Require().NotNil(result.License.ExpiresAt)
	s.WithinDuration(expiry, *result.License.ExpiresAt, time.Second)
}

func (s *ApplicationServiceTestSuite) TestApproveRequiresValidHolderEmail() {
	// Bypass registration validation to simulate a legacy record.
	s.Require().NoError(s.svc.db.Model(&models.User{}).
		Where("id = ?", s.applicant.ID).Update("email", "not-an-email").Error)

	app := s.createProviderApp()
	_, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.True(utils.IsCode(err, utils.CodeValidation))

	// The failed issuance must roll back the application decision.
	var fresh models.Application
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", app.ID).Error)
	s.Equal(models.ApplicationStatusPending, fresh.Status)
	s.Nil(fresh.LicenseID)
	s.EqualValues(0, countAudits(s.T(), s.svc.db, models.AuditApplicationApproved))
}

func (s *ApplicationServiceTestSuite) TestRejectRequiresUnderReview() {
	app := s.createProviderApp()

	_, err := s.svc.application.Reject(app.ID, s.reviewer.ID, "incomplete records")
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *ApplicationServiceTestSuite) TestRejectWithoutComment() {
	app := s.createProviderApp()
	_, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "")
	s.Require().NoError(err)

	rejected, err := s.svc.application.Reject(app.ID, s.reviewer.ID, "  ")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusRejected, rejected.Status)
	s.Empty(rejected.DecisionComment)
}

func (s *ApplicationServiceTestSuite) TestRejectUnderReview() {
	app := s.createProviderApp()
	_, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "")
	s.Require().NoError(err)

	rejected, err := s.svc.application.Reject(app.ID, s.reviewer.ID, "registration number not found")
	s.Require().NoError(err)

	s.Equal(models.ApplicationStatusRejected, rejected.Status)
	s.Equal("registration number not found", rejected.DecisionComment)
	s.NotNil(rejected.DecidedAt)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditApplicationRejected))
}

func (s *ApplicationServiceTestSuite) TestUpdateDraftAfterDecisionRejected() {
	app := s.createProviderApp()
	_, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)

	_, err = s.svc.application.UpdateDraft(app.ID, s.applicant.ID, &UpdateApplicationRequest{
		Data: providerPayload(),
	})
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *ApplicationServiceTestSuite) TestUpdateDraftUnderReviewRejected() {
	app := s.createProviderApp()
	_, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "")
	s.Require().NoError(err)

	// The payload freezes the moment a reviewer picks the application up.
	_, err = s.svc.application.UpdateDraft(app.ID, s.applicant.ID, &UpdateApplicationRequest{
		Data: providerPayload(),
	})
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *ApplicationServiceTestSuite) TestSetUnderReviewRefreshesNotes() {
	app := s.createProviderApp()

	_, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "first pass")
	s.Require().NoError(err)

	refreshed, err := s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "second pass, registry confirmed")
	s.Require().NoError(err)
	s.Equal(models.ApplicationStatusUnderReview, refreshed.Status)
	s.Equal("second pass, registry confirmed", refreshed.ReviewerNotes)
}

func (s *ApplicationServiceTestSuite) TestSetUnderReviewAfterDecisionRejected() {
	app := s.createProviderApp()
	_, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)

	_, err = s.svc.application.SetUnderReview(app.ID, s.reviewer.ID, "")
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *ApplicationServiceTestSuite) TestRequestDocuments() {
	app := s.createProviderApp()

	updated, err := s.svc.application.RequestDocuments(app.ID, s.reviewer.ID,
		[]string{"Business registration certificate", "Tax clearance"}, "see registry mismatch")
	s.Require().NoError(err)

	s.Equal(models.StringList{"Business registration certificate", "Tax clearance"}, updated.DocumentsRequired)
	s.Equal("see registry mismatch", updated.ReviewerNotes)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditDocumentsRequested))
}

func (s *ApplicationServiceTestSuite) TestProfessionalLicenseHasNoOrganization() {
	app, err := s.svc.application.CreateDraft(s.applicant.ID, &CreateApplicationRequest{
		Type: models.ApplicationTypeProfessional,
		Data: professionalPayload(),
	})
	s.Require().NoError(err)

	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)
	s.Empty(result.License.OrganizationName)
	s.Contains(result.License.LicenseNumber, "-PRO-")
}

func TestApplicationServiceSuite(t *testing.T) {
	suite.Run(t, new(ApplicationServiceTestSuite))
}
