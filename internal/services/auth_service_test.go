// internal/services/auth_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

type AuthServiceTestSuite struct {
	suite.Suite
	svc *testServices
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.svc = newTestServices(s.T())
}

func registerRequest(email string) *RegisterRequest {
	return &RegisterRequest{
		Email:     email,
		Password:  "Sup3rSecret!",
		FirstName: "Kofi",
		LastName:  "Owusu",
	}
}

func (s *AuthServiceTestSuite) TestRegisterCreatesApplicant() {
	result, err := s.svc.auth.Register(registerRequest("new@example.com"))
	s.Require().NoError(err)

	s.Equal("new@example.com", result.User.Email)
	s.Equal(models.UserRoleApplicant, result.User.Role)
	s.Equal(models.UserStatusActive, result.User.Status)
	s.NotEmpty(result.Token)
	s.EqualValues(1, countAudits(s.T(), s.svc.db, models.AuditUserRegistered))
}

func (s *AuthServiceTestSuite) TestRegisterNormalizesEmail() {
	result, err := s.svc.auth.Register(registerRequest("  Mixed.Case@Example.COM "))
	s.Require().NoError(err)
	s.Equal("mixed.case@example.com", result.User.Email)
}

func (s *AuthServiceTestSuite) TestRegisterDuplicateEmailConflicts() {
	_, err := s.svc.auth.Register(registerRequest("dupe@example.com"))
	s.Require().NoError(err)

	_, err = s.svc.auth.Register(registerRequest("dupe@example.com"))
	s.True(utils.IsCode(err, utils.CodeConflict))
}

func (s *AuthServiceTestSuite) TestRegisterWeakPasswordRejected() {
	req := registerRequest("weak@example.com")
	req.Password = "short"
	_, err := s.svc.auth.Register(req)
	s.True(utils.IsCode(err, utils.CodeValidation))
}

func (s *AuthServiceTestSuite) TestLogin() {
	_, err := s.svc.auth.Register(registerRequest("login@example.com"))
	s.Require().NoError(err)

	result, err := s.svc.auth.Login(&LoginRequest{Email: "login@example.com", Password: "Sup3rSecret!"})
	s.Require().NoError(err)
	s.NotEmpty(result.Token)

	claims, err := utils.ValidateJWT(result.Token)
	s.Require().NoError(err)
	s.Equal(result.User.ID.String(), claims.UserID)
	s.Equal(string(models.UserRoleApplicant), claims.Role)
}

func (s *AuthServiceTestSuite) TestLoginWrongPasswordUnauthorized() {
	_, err := s.svc.auth.Register(registerRequest("wrongpw@example.com"))
	s.Require().NoError(err)

	_, err = s.svc.auth.Login(&LoginRequest{Email: "wrongpw@example.com", Password: "NotThePassword1!"})
	s.True(utils.IsCode(err, utils.CodeUnauthorized))
}

func (s *AuthServiceTestSuite) TestLoginSuspendedForbidden() {
	result, err := s.svc.auth.Register(registerRequest("frozen@example.com"))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.db.Model(&models.User{}).
		Where("id = ?", result.User.ID).Update("status", models.UserStatusSuspended).Error)

	_, err = s.svc.auth.Login(&LoginRequest{Email: "frozen@example.com", Password: "Sup3rSecret!"})
	s.True(utils.IsCode(err, utils.CodeForbidden))
}

func (s *AuthServiceTestSuite) TestRegisterWithApplication() {
	result, err := s.svc.auth.RegisterWithApplication(&RegisterWithApplicationRequest{
		RegisterRequest: *registerRequest("combo@example.com"),
		Application: CreateApplicationRequest{
			Type: models.ApplicationTypeProvider,
			Data: providerPayload(),
		},
	})
	s.Require().NoError(err)

	s.Require().NotNil(result.Application)
	s.Equal(result.User.ID, result.Application.ApplicantUserID)
	s.Equal(models.ApplicationStatusPending, result.Application.Status)
}

func (s *AuthServiceTestSuite) TestRegisterWithApplicationRollsBackOnBadPayload() {
	_, err := s.svc.auth.RegisterWithApplication(&RegisterWithApplicationRequest{
		RegisterRequest: *registerRequest("atomic@example.com"),
		Application: CreateApplicationRequest{
			Type: models.ApplicationTypeProvider,
			Data: models.JSONB{"companyName": "Missing Fields Ltd"},
		},
	})
	s.True(utils.IsCode(err, utils.CodeValidation))

	// The account creation must roll back with the rejected application.
	var count int64
	s.Require().NoError(s.svc.db.Model(&models.User{}).
		Where("email = ?", "atomic@example.com").Count(&count).Error)
	s.EqualValues(0, count)
}

func (s *AuthServiceTestSuite) TestPasswordResetFlow() {
	result, err := s.svc.auth.Register(registerRequest("reset@example.com"))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.auth.ForgotPassword("reset@example.com"))

	var user models.User
	s.Require().NoError(s.svc.db.First(&user, "id = ?", result.User.ID).Error)
	s.Require().NotEmpty(user.ResetToken)

	s.Require().NoError(s.svc.auth.ResetPassword(user.ResetToken, "An0therSecret!"))

	_, err = s.svc.auth.Login(&LoginRequest{Email: "reset@example.com", Password: "An0therSecret!"})
	s.NoError(err)

	// The token is single use.
	err = s.svc.auth.ResetPassword(user.ResetToken, "YetAn0ther!x")
	s.True(utils.IsCode(err, utils.CodeUnauthorized))
}

func (s *AuthServiceTestSuite) TestForgotPasswordUnknownEmailSilent() {
	s.NoError(s.svc.auth.ForgotPassword("nobody@example.com"))
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}
