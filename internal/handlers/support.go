// internal/handlers/support.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/accredix/accredix-backend/internal/services"
	"github.com/accredix/accredix-backend/internal/utils"
)

type SupportHandler struct {
	notificationService *services.NotificationService
}

func NewSupportHandler(notificationService *services.NotificationService) *SupportHandler {
	return &SupportHandler{notificationService: notificationService}
}

// POST /support/contact
func (h *SupportHandler) Contact(c *gin.Context) {
	var req struct {
		Name    string `json:"name" binding:"required"`
		Email   string `json:"email" binding:"required,email"`
		Message string `json:"message" binding:"required,max=5000"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid request body", err.Error())
		return
	}

	if err := h.notificationService.SendSupportMessage(req.Name, req.Email, req.Message); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "Your message has been sent"})
}
