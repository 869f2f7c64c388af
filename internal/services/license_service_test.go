// internal/services/license_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

type LicenseServiceTestSuite struct {
	suite.Suite
	svc       *testServices
	applicant *models.User
	reviewer  *models.User
}

func (s *LicenseServiceTestSuite) SetupTest() {
	s.svc = newTestServices(s.T())
	s.applicant = createTestUser(s.T(), s.svc.db, "holder@example.com", models.UserRoleApplicant)
	s.reviewer = createTestUser(s.T(), s.svc.db, "staff@example.com", models.UserRoleReviewer)
}

// approvedLicense walks an application through approval and returns the
// minted license.
func (s *LicenseServiceTestSuite) approvedLicense() (*models.Application, *models.License) {
	app, err := s.svc.application.CreateDraft(s.applicant.ID, &CreateApplicationRequest{
		Type: models.ApplicationTypeProvider,
		Data: providerPayload(),
	})
	s.Require().NoError(err)

	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)
	return result.Application, result.License
}

func (s *LicenseServiceTestSuite) TestVerifyByNumberFindsLicense() {
	_, license := s.approvedLicense()

	found, err := s.svc.license.VerifyByNumber(license.LicenseNumber, ClientContext{})
	s.Require().NoError(err)
	s.Equal(license.ID, found.ID)
	s.Equal(license.VerificationHash, found.VerificationHash)
}

func (s *LicenseServiceTestSuite) TestVerifyByNumberUnknownIsNotFound() {
	_, err := s.svc.license.VerifyByNumber("LIC-2026-PRV-123456-AB", ClientContext{})
	s.True(utils.IsCode(err, utils.CodeNotFound))
}

func (s *LicenseServiceTestSuite) TestVerifyByNumberBadChecksumIsNotFound() {
	_, license := s.approvedLicense()

	// Corrupt the checksum suffix, keep the shape.
	tampered := license.LicenseNumber[:len(license.LicenseNumber)-2] + "ZZ"
	_, err := s.svc.license.VerifyByNumber(tampered, ClientContext{})
	s.True(utils.IsCode(err, utils.CodeNotFound))
}

func (s *LicenseServiceTestSuite) TestUpdateStatusAnyTransition() {
	_, license := s.approvedLicense()

	updated, err := s.svc.license.UpdateStatus(license.ID, models.LicenseStatusSuspended, s.reviewer.ID, "pending investigation")
	s.Require().NoError(err)
	s.Equal(models.LicenseStatusSuspended, updated.Status)

	// Straight back from SUSPENDED to ACTIVE is allowed.
	updated, err = s.svc.license.UpdateStatus(license.ID, models.LicenseStatusActive, s.reviewer.ID, "cleared")
	s.Require().NoError(err)
	s.Equal(models.LicenseStatusActive, updated.Status)

	s.EqualValues(2, countAudits(s.T(), s.svc.db, models.AuditLicenseStatusUpdated))
}

func (s *LicenseServiceTestSuite) TestRenewalApprovalSupersedesLicense() {
	app, oldLicense := s.approvedLicense()

	request, err := s.svc.license.RequestRenewal(oldLicense.ID, s.applicant.ID, "still operating")
	s.Require().NoError(err)
	s.Equal(models.RenewalStatusPending, request.Status)

	baseDate := time.Now().AddDate(0, 1, 0).Truncate(time.Second)
	decision, err := s.svc.license.ApproveRenewal(request.ID, s.reviewer.ID, &ApproveRenewalRequest{
		NewExpiry: &baseDate,
	})
	s.Require().NoError(err)

	// The replacement starts its validity period at the supplied base date.
	newLicense := decision.NewLicense
	s.Equal(models.LicenseStatusActive, newLicense.Status)
	s.WithinDuration(baseDate, newLicense.IssuedAt, time.Second)
	s.Require().NotNil(newLicense.ExpiresAt)
	s.WithinDuration(baseDate.AddDate(0, 12, 0), *newLicense.ExpiresAt, time.Second)

	s.NotEqual(oldLicense.ID, newLicense.ID)
	s.NotEqual(oldLicense.LicenseNumber, newLicense.LicenseNumber)
	s.Equal(oldLicense.HolderEmail, newLicense.HolderEmail)
	s.Equal(oldLicense.OrganizationName, newLicense.OrganizationName)

	// The superseded license is force-expired with no overlap window.
	var retired models.License
	s.Require().NoError(s.svc.db.First(&retired, "id = ?", oldLicense.ID).Error)
	s.Equal(models.LicenseStatusExpired, retired.Status)

	// The application now points at the replacement.
	var fresh models.Application
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", app.ID).Error)
	s.Require().NotNil(fresh.LicenseID)
	s.Equal(newLicense.ID, *fresh.LicenseID)

	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseRenewalApproved))
	s.EqualValues(2, countAudits(s.T(), s.svc.db, models.AuditLicenseGenerated))
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseExpired))
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseRenewed))
}

func (s *LicenseServiceTestSuite) TestRenewalApprovalRequiresNewExpiry() {
	_, license := s.approvedLicense()
	request, err := s.svc.license.RequestRenewal(license.ID, s.applicant.ID, "")
	s.Require().NoError(err)

	_, err = s.svc.license.ApproveRenewal(request.ID, s.reviewer.ID, &ApproveRenewalRequest{})
	s.True(utils.IsCode(err, utils.CodeValidation))

	// The request must stay pending after the failed decision.
	var fresh models.RenewalRequest
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", request.ID).Error)
	s.Equal(models.RenewalStatusPending, fresh.Status)
}

func (s *LicenseServiceTestSuite) TestRenewalDecidedTwiceRejected() {
	_, license := s.approvedLicense()
	request, err := s.svc.license.RequestRenewal(license.ID, s.applicant.ID, "")
	s.Require().NoError(err)

	baseDate := time.Now()
	_, err = s.svc.license.ApproveRenewal(request.ID, s.reviewer.ID, &ApproveRenewalRequest{NewExpiry: &baseDate})
	s.Require().NoError(err)

	_, err = s.svc.license.ApproveRenewal(request.ID, s.reviewer.ID, &ApproveRenewalRequest{NewExpiry: &baseDate})
	s.True(utils.IsCode(err, utils.CodeInvalidState))

	_, err = s.svc.license.RejectRenewal(request.ID, s.reviewer.ID, "changed my mind")
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *LicenseServiceTestSuite) TestRejectRenewal() {
	_, license := s.approvedLicense()
	request, err := s.svc.license.RequestRenewal(license.ID, s.applicant.ID, "")
	s.Require().NoError(err)

	rejected, err := s.svc.license.RejectRenewal(request.ID, s.reviewer.ID, "outstanding sanctions")
	s.Require().NoError(err)
	s.Equal(models.RenewalStatusRejected, rejected.Status)
	s.NotNil(rejected.DecidedAt)

	// The license itself is untouched.
	var fresh models.License
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", license.ID).Error)
	s.Equal(models.LicenseStatusActive, fresh.Status)
}

func (s *LicenseServiceTestSuite) TestExpirySweepIsIdempotent() {
	_, license := s.approvedLicense()

	// Backdate the expiry so the sweep picks it up.
	past := time.Now().AddDate(0, 0, -1)
	s.Require().NoError(s.svc.db.Model(&models.License{}).
		Where("id = ?", license.ID).Update("expires_at", past).Error)

	count, err := s.svc.license.ExpireDueLicenses(time.Now())
	s.Require().NoError(err)
	s.Equal(1, count)

	var fresh models.License
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", license.ID).Error)
	s.Equal(models.LicenseStatusExpired, fresh.Status)

	// A second sweep over unchanged data touches nothing.
	count, err = s.svc.license.ExpireDueLicenses(time.Now())
	s.Require().NoError(err)
	s.Equal(0, count)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditLicenseExpired))
}

func (s *LicenseServiceTestSuite) TestExpirySweepSkipsFutureAndRevoked() {
	_, active := s.approvedLicense()

	revokedUser := createTestUser(s.T(), s.svc.db, "revoked@example.com", models.UserRoleApplicant)
	app, err := s.svc.application.CreateDraft(revokedUser.ID, &CreateApplicationRequest{
		Type: models.ApplicationTypeProvider,
		Data: providerPayload(),
	})
	s.Require().NoError(err)
	result, err := s.svc.application.Approve(app.ID, s.reviewer.ID, ApproveOptions{})
	s.Require().NoError(err)

	past := time.Now().AddDate(0, 0, -1)
	s.Require().NoError(s.svc.db.Model(&models.License{}).Where("id = ?", result.License.ID).
		Updates(map[string]interface{}{"expires_at": past, "status": models.LicenseStatusRevoked}).Error)

	count, err := s.svc.license.ExpireDueLicenses(time.Now())
	s.Require().NoError(err)

	// The revoked lapsed license is swept; the future-dated one is not.
	s.Equal(1, count)

	var fresh models.License
	s.Require().NoError(s.svc.db.First(&fresh, "id = ?", active.ID).Error)
	s.Equal(models.LicenseStatusActive, fresh.Status)
}

func (s *LicenseServiceTestSuite) TestListByHolderEmail() {
	_, license := s.approvedLicense()

	licenses, total, err := s.svc.license.ListByHolderEmail("holder@example.com", utils.PaginationParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.EqualValues(1, total)
	s.Require().Len(licenses, 1)
	s.Equal(license.ID, licenses[0].ID)
}

func TestLicenseServiceSuite(t *testing.T) {
	suite.Run(t, new(LicenseServiceTestSuite))
}
