// internal/services/services_test.go
package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/accredix/accredix-backend/internal/config"
	"github.com/accredix/accredix-backend/internal/database"
	"github.com/accredix/accredix-backend/internal/models"
)

// newTestDB opens an isolated in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps the in-memory database alive for the test.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(db))

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:      "test-secret",
			AccessTokenTTL: 1,
		},
		License: config.LicenseConfig{
			Prefix:         "LIC",
			ValidityMonths: 12,
		},
		Frontend: config.FrontendConfig{BaseURL: "http://localhost:3000"},
	}
}

type testServices struct {
	db           *gorm.DB
	audit        *AuditService
	notification *NotificationService
	license      *LicenseService
	application  *ApplicationService
	auth         *AuthService
	admin        *AdminService
	dropdown     *DropdownService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	db := newTestDB(t)
	cfg := testConfig()

	audit := NewAuditService(db)
	notification := NewNotificationService(cfg)
	license := NewLicenseService(db, cfg, audit, notification)
	application := NewApplicationService(db, license, audit, notification)
	auth := NewAuthService(db, cfg, application, audit, notification)

	return &testServices{
		db:           db,
		audit:        audit,
		notification: notification,
		license:      license,
		application:  application,
		auth:         auth,
		admin:        NewAdminService(db, audit),
		dropdown:     NewDropdownService(db, audit),
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Email:     email,
		FirstName: "Ama",
		LastName:  "Mensah",
		Role:      role,
		Status:    models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("Sup3rSecret!"))
	require.NoError(t, db.Create(user).Error)
	return user
}

func providerPayload() models.JSONB {
	return models.JSONB{
		"companyName":        "Acme Health Services",
		"registrationNumber": "REG-2024-0042",
		"tin":                "TIN-99881",
		"physicalAddress":    "12 Harbor Road",
	}
}

func professionalPayload() models.JSONB {
	return models.JSONB{
		"professionalType": "LOCAL",
		"idType":           "NATIONAL_ID",
		"idNumber":         "GHA-123456789",
		"physicalAddress":  "4 Hill Street",
		"registeringAs":    "Nurse",
	}
}

// countAudits tallies persisted audit entries for an action. Only entries
// written inside transactions are reliable here; async entries may not have
// landed yet.
func countAudits(t *testing.T, db *gorm.DB, action models.AuditAction) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}
