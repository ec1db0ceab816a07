package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/handlers"
)

func registerOrganizationRoutes(api *gin.RouterGroup, orgHandler *handlers.OrganizationHandler, memberHandler *handlers.MemberHandler) {
	orgs := api.Group("/organizations")
	{
		orgs.GET("", orgHandler.List)
		orgs.POST("", orgHandler.Create)
		orgs.GET("/:orgID", orgHandler.Get)
		orgs.PATCH("/:orgID", orgHandler.Update)

		orgs.GET("/:orgID/members", memberHandler.List)
		orgs.POST("/:orgID/members", memberHandler.Add)
		orgs.POST("/:orgID/members/request", memberHandler.Request)
		orgs.PATCH("/:orgID/members/:userID/role", memberHandler.ChangeRole)
		orgs.PATCH("/:orgID/members/:userID/approval", memberHandler.SetApproval)
		orgs.DELETE("/:orgID/members/:userID", memberHandler.Remove)
	}
}
