// internal/handlers/license.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

type LicenseHandler struct {
	licenseService *services.LicenseService
	authService    *services.AuthService
}

func NewLicenseHandler(licenseService *services.LicenseService, authService *services.AuthService) *LicenseHandler {
	return &LicenseHandler{
		licenseService: licenseService,
		authService:    authService,
	}
}

// GET /verify/:licenseNumber
//
// Public endpoint: no authentication, returns the license or 404. The
// response carries the verification hash so callers can pin the result.
// Caller identity, when a token happens to be present, and client metadata
// flow into the verification audit row.
func (h *LicenseHandler) Verify(c *gin.Context) {
	client := services.ClientContext{
		IPAddress: c.GetString("client_ip"),
		UserAgent: c.GetString("user_agent"),
	}
	if userIDStr, exists := utils.GetUserIDFromContext(c); exists {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			client.ActorUserID = &userID
		}
	}

	license, err := h.licenseService.VerifyByNumber(c.Param("licenseNumber"), client)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"license_number":    license.LicenseNumber,
		"status":            license.Status,
		"type":              license.Type,
		"holder_name":       license.HolderName,
		"organization_name": license.OrganizationName,
		"issued_at":         license.IssuedAt,
		"expires_at":        license.ExpiresAt,
		"verification_hash": license.VerificationHash,
	})
}

// GET /licenses
func (h *LicenseHandler) ListOwn(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	user, err := h.authService.GetByID(userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	params := utils.GetPaginationParams(c)
	licenses, total, err := h.licenseService.ListByHolderEmail(user.Email, params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params))
}

// POST /licenses/:id/renewals
func (h *LicenseHandler) RequestRenewal(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.licenseService.RequestRenewal(licenseID, userID, req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, request)
}

// --- admin operations ---

// GET /admin/licenses
func (h *LicenseHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.LicenseFilter{PaginationParams: params}

	if status := c.Query("status"); status != "" {
		s := models.LicenseStatus(status)
		filter.Status = &s
	}
	if licType := c.Query("type"); licType != "" {
		t := models.ApplicationType(licType)
		filter.Type = &t
	}
	if before := c.Query("expires_before"); before != "" {
		if t, err := time.Parse(time.RFC3339, before); err == nil {
			filter.ExpiresBefore = &t
		}
	}
	if after := c.Query("expires_after"); after != "" {
		if t, err := time.Parse(time.RFC3339, after); err == nil {
			filter.ExpiresAfter = &t
		}
	}

	licenses, total, err := h.licenseService.List(filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(licenses, total, params))
}

// GET /admin/licenses/:id
func (h *LicenseHandler) Get(c *gin.Context) {
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	license, err := h.licenseService.GetByID(licenseID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// PATCH /admin/licenses/:id/status
func (h *LicenseHandler) UpdateStatus(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}
	licenseID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.LicenseStatus `json:"status" binding:"required"`
		Notes  string               `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	license, err := h.licenseService.UpdateStatus(licenseID, req.Status, actorID, req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, license)
}

// GET /admin/renewals
func (h *LicenseHandler) ListRenewals(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.RenewalFilter{PaginationParams: params}

	if status := c.Query("status"); status != "" {
		s := models.RenewalStatus(status)
		filter.Status = &s
	}

	requests, total, err := h.licenseService.ListRenewals(filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(requests, total, params))
}

// POST /admin/renewals/:id/approve
func (h *LicenseHandler) ApproveRenewal(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}
	renewalID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.ApproveRenewalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	decision, err := h.licenseService.ApproveRenewal(renewalID, actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, decision)
}

// POST /admin/renewals/:id/reject
func (h *LicenseHandler) RejectRenewal(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}
	renewalID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	request, err := h.licenseService.RejectRenewal(renewalID, actorID, req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, request)
}
