// internal/handlers/dropdown.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

type DropdownHandler struct {
	dropdownService *services.DropdownService
}

func NewDropdownHandler(dropdownService *services.DropdownService) *DropdownHandler {
	return &DropdownHandler{dropdownService: dropdownService}
}

// GET /dropdowns
func (h *DropdownHandler) List(c *gin.Context) {
	category := models.DropdownCategory(c.Query("category"))
	includeInactive := c.Query("include_inactive") == "true"

	options, err := h.dropdownService.List(category, includeInactive)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, options)
}

// PUT /admin/dropdowns
func (h *DropdownHandler) Upsert(c *gin.Context) {
	actorID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req services.UpsertDropdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	option, err := h.dropdownService.Upsert(actorID, &req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, option)
}
