// internal/services/admin_service_test.go
package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

type AdminServiceTestSuite struct {
	suite.Suite
	svc   *testServices
	admin *models.User
}

func (s *AdminServiceTestSuite) SetupTest() {
	s.svc = newTestServices(s.T())
	s.admin = createTestUser(s.T(), s.svc.db, "admin@example.com", models.UserRoleAdmin)
}

func (s *AdminServiceTestSuite) TestListUsersFilters() {
	createTestUser(s.T(), s.svc.db, "a@example.com", models.UserRoleApplicant)
	createTestUser(s.T(), s.svc.db, "b@example.com", models.UserRoleApplicant)
	createTestUser(s.T(), s.svc.db, "r@example.com", models.UserRoleReviewer)

	role := models.UserRoleApplicant
	users, total, err := s.svc.admin.ListUsers(UserFilter{
		PaginationParams: utils.PaginationParams{Page: 1, Limit: 10},
		Role:             &role,
	})
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(users, 2)
}

func (s *AdminServiceTestSuite) TestSuspendAndReactivate() {
	target := createTestUser(s.T(), s.svc.db, "target@example.com", models.UserRoleApplicant)

	suspended, err := s.svc.admin.UpdateUserStatus(target.ID, models.UserStatusSuspended, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(models.UserStatusSuspended, suspended.Status)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditUserSuspended))

	restored, err := s.svc.admin.UpdateUserStatus(target.ID, models.UserStatusActive, s.admin.ID)
	s.Require().NoError(err)
	s.Equal(models.UserStatusActive, restored.Status)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditUserReactivated))
}

func (s *AdminServiceTestSuite) TestCannotChangeOwnStatus() {
	_, err := s.svc.admin.UpdateUserStatus(s.admin.ID, models.UserStatusSuspended, s.admin.ID)
	s.True(utils.IsCode(err, utils.CodeInvalidState))
}

func (s *AdminServiceTestSuite) TestCreateStaff() {
	user, err := s.svc.admin.CreateStaff(s.admin.ID, &CreateStaffRequest{
		Email:     "newreviewer@example.com",
		Password:  "Sup3rSecret!",
		FirstName: "Efua",
		LastName:  "Boateng",
		Role:      models.UserRoleReviewer,
	})
	s.Require().NoError(err)
	s.Equal(models.UserRoleReviewer, user.Role)

	_, err = s.svc.admin.CreateStaff(s.admin.ID, &CreateStaffRequest{
		Email:     "newreviewer@example.com",
		Password:  "Sup3rSecret!",
		FirstName: "Efua",
		LastName:  "Boateng",
		Role:      models.UserRoleReviewer,
	})
	s.True(utils.IsCode(err, utils.CodeConflict))
}

func (s *AdminServiceTestSuite) TestExportApplicantsCSV() {
	createTestUser(s.T(), s.svc.db, "csv1@example.com", models.UserRoleApplicant)
	createTestUser(s.T(), s.svc.db, "csv2@example.com", models.UserRoleApplicant)

	data, err := s.svc.admin.ExportApplicantsCSV()
	s.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	s.Len(lines, 3) // header + 2 applicants
	s.Contains(lines[0], "email")
	s.Contains(string(data), "csv1@example.com")
	// Staff accounts stay out of the applicant export.
	s.NotContains(string(data), "admin@example.com")
}

func (s *AdminServiceTestSuite) TestDropdownUpsert() {
	option, err := s.svc.dropdown.Upsert(s.admin.ID, &UpsertDropdownRequest{
		Category: models.DropdownCategorySector,
		Value:    "HEALTHCARE",
		Label:    "Healthcare",
		SortKey:  1,
	})
	s.Require().NoError(err)
	s.True(option.Active)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditDropdownCreated))

	// Same category+value updates in place.
	inactive := false
	updated, err := s.svc.dropdown.Upsert(s.admin.ID, &UpsertDropdownRequest{
		Category: models.DropdownCategorySector,
		Value:    "HEALTHCARE",
		Label:    "Healthcare Services",
		SortKey:  2,
		Active:   &inactive,
	})
	s.Require().NoError(err)
	s.Equal(option.ID, updated.ID)
	s.Equal("Healthcare Services", updated.Label)
	s.False(updated.Active)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditDropdownUpdated))

	// Inactive options drop out of the default listing.
	options, err := s.svc.dropdown.List(models.DropdownCategorySector, false)
	s.Require().NoError(err)
	s.Empty(options)

	options, err = s.svc.dropdown.List(models.DropdownCategorySector, true)
	s.Require().NoError(err)
	s.Len(options, 1)
}

func TestAdminServiceSuite(t *testing.T) {
	suite.Run(t, new(AdminServiceTestSuite))
}
