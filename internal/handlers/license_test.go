// internal/handlers/license_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/accredix/accredix-backend/internal/config"
	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/services"
)

type VerificationTestSuite struct {
	suite.Suite
	db      *gorm.DB
	router  *gin.Engine
	license *models.License
}

func (s *VerificationTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(database.RunMigrations(db))
	s.db = db

	cfg := &config.Config{
		License: config.LicenseConfig{Prefix: "LIC", ValidityMonths: 12},
	}

	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(cfg)
	licenseService := services.NewLicenseService(db, cfg, auditService, notificationService)
	applicationService := services.NewApplicationService(db, licenseService, auditService, notificationService)
	authService := services.NewAuthService(db, cfg, applicationService, auditService, notificationService)

	handler := NewLicenseHandler(licenseService, authService)

	s.router = gin.New()
	s.router.GET("/v1/verify/:licenseNumber", handler.Verify)

	// Seed one approved application with its license.
	applicant := &models.User{
		Email:     "seed@example.com",
		FirstName: "Seed",
		LastName:  "Holder",
		Role:      models.UserRoleApplicant,
		Status:    models.UserStatusActive,
	}
	s.Require().NoError(applicant.SetPassword("Sup3rSecret!"))
	s.Require().NoError(db.Create(applicant).Error)

	reviewer := &models.User{
		Email:     "rev@example.com",
		FirstName: "Rev",
		LastName:  "Iewer",
		Role:      models.UserRoleReviewer,
		Status:    models.UserStatusActive,
	}
	s.Require().NoError(reviewer.SetPassword("Sup3rSecret!"))
	s.Require().NoError(db.Create(reviewer).Error)

	app, err := applicationService.CreateDraft(applicant.ID, &services.CreateApplicationRequest{
		Type: models.ApplicationTypeProvider,
		Data: models.JSONB{
			"companyName":        "Seed Services Ltd",
			"registrationNumber": "REG-1",
			"tin":                "TIN-1",
			"physicalAddress":    "1 Test Lane",
		},
	})
	s.Require().NoError(err)

	result, err := applicationService.Approve(app.ID, reviewer.ID, services.ApproveOptions{})
	s.Require().NoError(err)
	s.license = result.License
}

func (s *VerificationTestSuite) get(path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *VerificationTestSuite) TestVerifyKnownLicense() {
	w := s.get("/v1/verify/" + s.license.LicenseNumber)
	s.Equal(http.StatusOK, w.Code)

	var response struct {
		Success bool `json:"success"`
		Data    struct {
			LicenseNumber    string `json:"license_number"`
			Status           string `json:"status"`
			HolderName       string `json:"holder_name"`
			OrganizationName string `json:"organization_name"`
			VerificationHash string `json:"verification_hash"`
		} `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))

	s.True(response.Success)
	s.Equal(s.license.LicenseNumber, response.Data.LicenseNumber)
	s.Equal("ACTIVE", response.Data.Status)
	s.Equal("Seed Holder", response.Data.HolderName)
	s.Equal("Seed Services Ltd", response.Data.OrganizationName)
	s.Len(response.Data.VerificationHash, 64)
}

func (s *VerificationTestSuite) TestVerifyUnknownLicenseIs404() {
	w := s.get("/v1/verify/LIC-2026-PRV-999999-FF")
	s.Equal(http.StatusNotFound, w.Code)

	var response struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	s.False(response.Success)
	s.Equal("NOT_FOUND", response.Error.Code)
}

func (s *VerificationTestSuite) TestVerifyGarbageIs404() {
	w := s.get("/v1/verify/definitely-not-a-license")
	s.Equal(http.StatusNotFound, w.Code)
}

func TestVerificationSuite(t *testing.T) {
	suite.Run(t, new(VerificationTestSuite))
}
