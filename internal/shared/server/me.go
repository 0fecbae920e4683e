package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"protected-docs/internal/shared/server/middleware"
	"protected-docs/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", meHandler)
}

func meHandler(c *gin.Context) {
	subject := middleware.AdminSubjectFromContext(c)
	if subject == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}

	response := gin.H{
		"subject": subject,
		"role":    "admin",
	}
	if email := middleware.AdminEmailFromContext(c); email != "" {
		response["email"] = email
	}

	respond.JSON(c, http.StatusOK, response)
}
