// internal/handlers/application.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
	storageService     *services.StorageService
}

func NewApplicationHandler(applicationService *services.ApplicationService, storageService *services.StorageService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
		storageService:     storageService,
	}
}

// POST /applications
func (h *ApplicationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	app, err := h.applicationService.CreateDraft(userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, app)
}

// GET /applications
func (h *ApplicationHandler) ListOwn(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	apps, total, err := h.applicationService.ListOwn(userID, params)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(apps, total, params))
}

// GET /applications/:id
func (h *ApplicationHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	app, err := h.applicationService.GetByID(appID, userID, userRole(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// PATCH /applications/:id
func (h *ApplicationHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.UpdateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	app, err := h.applicationService.UpdateDraft(appID, userID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// POST /applications/:id/submit
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	app, err := h.applicationService.Submit(appID, userID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// POST /applications/:id/documents
func (h *ApplicationHandler) UploadDocument(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, "A file is required", nil)
		return
	}
	defer file.Close()

	result, err := h.storageService.UploadFile(file, header, services.DocumentUploadOptions())
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	doc := &models.Document{
		Name:       header.Filename,
		StorageKey: result.Key,
		URL:        result.URL,
		MimeType:   result.MimeType,
		Size:       result.Size,
	}
	doc, err = h.applicationService.AttachDocument(appID, userID, doc)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.CreatedResponse(c, doc)
}

// --- reviewer operations ---

// GET /admin/applications
func (h *ApplicationHandler) List(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.ApplicationFilter{PaginationParams: params}

	if status := c.Query("status"); status != "" {
		s := models.ApplicationStatus(status)
		filter.Status = &s
	}
	if appType := c.Query("type"); appType != "" {
		t := models.ApplicationType(appType)
		filter.Type = &t
	}
	filter.Region = c.Query("region")
	if from := c.Query("submitted_after"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			filter.SubmittedAfter = &t
		}
	}
	if to := c.Query("submitted_before"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			filter.SubmittedBefore = &t
		}
	}

	apps, total, err := h.applicationService.List(filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.PaginatedResponse(c, utils.CreatePaginationResult(apps, total, params))
}

// POST /admin/applications/:id/review
func (h *ApplicationHandler) SetUnderReview(c *gin.Context) {
	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
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

	app, err := h.applicationService.SetUnderReview(appID, reviewerID, req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// POST /admin/applications/:id/approve
func (h *ApplicationHandler) Approve(c *gin.Context) {
	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.ApproveOptions
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	result, err := h.applicationService.Approve(appID, reviewerID, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// POST /admin/applications/:id/reject
func (h *ApplicationHandler) Reject(c *gin.Context) {
	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Comment string `json:"comment,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	app, err := h.applicationService.Reject(appID, reviewerID, req.Comment)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// POST /admin/applications/:id/request-documents
func (h *ApplicationHandler) RequestDocuments(c *gin.Context) {
	reviewerID, ok := requireUserID(c)
	if !ok {
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Documents []string `json:"documents"`
		Notes     string   `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	app, err := h.applicationService.RequestDocuments(appID, reviewerID, req.Documents, req.Notes)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, app)
}

// GET /admin/applications/stats
func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.applicationService.Stats()
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}
