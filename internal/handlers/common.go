// internal/handlers/common.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/accredix/accredix-backend/internal/models"
	"github.com/accredix/accredix-backend/internal/utils"
)

// requireUserID pulls the authenticated user out of the gin context. The
// false return means a response has already been written.
func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, "Invalid token subject")
		return uuid.Nil, false
	}

	return userID, true
}

func userRole(c *gin.Context) models.UserRole {
	role, _ := utils.GetUserRoleFromContext(c)
	return models.UserRole(role)
}

// parseIDParam parses a :param path segment as a UUID.
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}
