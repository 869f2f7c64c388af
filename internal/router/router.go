// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/accredix/accredix-backend/internal/config"
	"github.com/accredix/accredix-backend/internal/handlers"
	"github.com/accredix/accredix-backend/internal/middleware"
	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

// Initialize wires services, handlers, and routes onto a gin engine.
func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(cfg)

	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("S3 unavailable, documents will use local placeholder storage")
		storageService = services.NewLocalStorageService(cfg)
	}

	licenseService := services.NewLicenseService(db, cfg, auditService, notificationService)
	applicationService := services.NewApplicationService(db, licenseService, auditService, notificationService)
	authService := services.NewAuthService(db, cfg, applicationService, auditService, notificationService)
	adminService := services.NewAdminService(db, auditService)
	dropdownService := services.NewDropdownService(db, auditService)

	authHandler := handlers.NewAuthHandler(authService)
	applicationHandler := handlers.NewApplicationHandler(applicationService, storageService)
	licenseHandler := handlers.NewLicenseHandler(licenseService, authService)
	adminHandler := handlers.NewAdminHandler(adminService, auditService)
	dropdownHandler := handlers.NewDropdownHandler(dropdownService)
	supportHandler := handlers.NewSupportHandler(notificationService)

	utils.SetJWTSecret(cfg.JWT.SecretKey)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Frontend.BaseURL))
	r.Use(middleware.GeneralRateLimit())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	v1 := r.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/register-with-application", authHandler.RegisterWithApplication)
			auth.POST("/login", authHandler.Login)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.GET("/me", middleware.AuthRequired(), authHandler.Me)
			auth.PATCH("/me", middleware.AuthRequired(), authHandler.UpdateMe)
		}

		// Public verification: anyone can check a license number. Client
		// metadata and any token that happens to be present feed the
		// verification audit trail.
		verify := v1.Group("/verify")
		verify.Use(middleware.VerifyRateLimit(), middleware.OptionalAuth(), middleware.ClientMeta())
		{
			verify.GET("/:licenseNumber", licenseHandler.Verify)
		}

		v1.GET("/dropdowns", dropdownHandler.List)
		v1.POST("/support/contact", supportHandler.Contact)

		applications := v1.Group("/applications")
		applications.Use(middleware.AuthRequired())
		{
			applications.POST("", applicationHandler.Create)
			applications.GET("", applicationHandler.ListOwn)
			applications.GET("/:id", applicationHandler.Get)
			applications.PATCH("/:id", applicationHandler.Update)
			applications.POST("/:id/submit", applicationHandler.Submit)
			applications.POST("/:id/documents", middleware.UploadRateLimit(), applicationHandler.UploadDocument)
		}

		licenses := v1.Group("/licenses")
		licenses.Use(middleware.AuthRequired())
		{
			licenses.GET("", licenseHandler.ListOwn)
			licenses.POST("/:id/renewals", licenseHandler.RequestRenewal)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.StaffRequired())
		{
			adminApplications := admin.Group("/applications")
			{
				adminApplications.GET("", applicationHandler.List)
				adminApplications.GET("/stats", applicationHandler.Stats)
				adminApplications.POST("/:id/review", applicationHandler.SetUnderReview)
				adminApplications.POST("/:id/approve", applicationHandler.Approve)
				adminApplications.POST("/:id/reject", applicationHandler.Reject)
				adminApplications.POST("/:id/request-documents", applicationHandler.RequestDocuments)
			}

			adminLicenses := admin.Group("/licenses")
			{
				adminLicenses.GET("", licenseHandler.List)
				adminLicenses.GET("/:id", licenseHandler.Get)
				adminLicenses.PATCH("/:id/status", middleware.AdminRequired(), licenseHandler.UpdateStatus)
			}

			adminRenewals := admin.Group("/renewals")
			{
				adminRenewals.GET("", licenseHandler.ListRenewals)
				adminRenewals.POST("/:id/approve", licenseHandler.ApproveRenewal)
				adminRenewals.POST("/:id/reject", licenseHandler.RejectRenewal)
			}

			adminUsers := admin.Group("/users")
			adminUsers.Use(middleware.AdminRequired())
			{
				adminUsers.GET("", adminHandler.ListUsers)
				adminUsers.GET("/export", adminHandler.ExportApplicants)
				adminUsers.GET("/:id", adminHandler.GetUser)
				adminUsers.POST("", adminHandler.CreateStaff)
				adminUsers.PATCH("/:id/status", adminHandler.UpdateUserStatus)
			}

			admin.GET("/audit-logs", middleware.AdminRequired(), adminHandler.ListAuditLogs)
			admin.PUT("/dropdowns", middleware.AdminRequired(), dropdownHandler.Upsert)
		}
	}

	return r
}
