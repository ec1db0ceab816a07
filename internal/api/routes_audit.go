package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/handlers"
)

func registerAuditRoutes(api *gin.RouterGroup, auditHandler *handlers.AuditHandler) {
	api.GET("/organizations/:orgID/audit", auditHandler.List)
}
