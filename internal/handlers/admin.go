// internal/handlers/admin.go
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

type AdminHandler struct {
	adminService *services.AdminService
	auditService *services.AuditService
}

func NewAdminHandler(adminService *services.AdminService, auditService *services.AuditService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		auditService: auditService,
	}
}

// GET /admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.UserFilter{PaginationParams: params}

	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := models.UserStatus(status)
		filter.Status = &s
	}

	users, total, err := h.adminService.ListUsers(filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(users, total, params))
}

// GET /admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.adminService.GetUser(userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, user)
}

// POST /admin/users
func (h *AdminHandler) CreateStaff(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	// Only a superadmin may mint admin accounts.
	if req.Role == models.UserRoleAdmin && userRole(c) != models.UserRoleSuperAdmin {
		utils.ForbiddenResponse(c, "Only a superadmin can create admin accounts")
		return
	}

	user, err := h.adminService.CreateStaff(actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, user)
}

// PATCH /admin/users/:id/status
func (h *AdminHandler) UpdateUserStatus(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status models.UserStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	user, err := h.adminService.UpdateUserStatus(userID, req.Status, actorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, user)
}

// GET /admin/users/export
func (h *AdminHandler) ExportApplicants(c *gin.Context) {
	data, err := h.adminService.ExportApplicantsCSV()
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	filename := "applicants-" + time.Now().Format("2006-01-02") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv", data)
}

// GET /admin/audit-logs
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	filter := services.AuditFilter{
		EntityType: c.Query("entity_type"),
	}

	if action := c.Query("action"); action != "" {
		a := models.AuditAction(action)
		filter.Action = &a
	}
	if actor := c.Query("actor_user_id"); actor != "" {
		if id, err := uuid.Parse(actor); err == nil {
			filter.ActorUserID = &id
		}
	}
	if entity := c.Query("entity_id"); entity != "" {
		if id, err := uuid.Parse(entity); err == nil {
			filter.EntityID = &id
		}
	}
	if from := c.Query("start_date"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.StartDate = &t
		}
	}
	if to := c.Query("end_date"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.EndDate = &t
		}
	}

	logs, err := h.auditService.List(filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, logs)
}
