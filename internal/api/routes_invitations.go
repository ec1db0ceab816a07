package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/handlers"
)

func registerInvitationRoutes(api *gin.RouterGroup, invitationHandler *handlers.InvitationHandler) {
	orgInvites := api.Group("/organizations/:orgID/invitations")
	{
		orgInvites.GET("", invitationHandler.List)
		orgInvites.POST("", invitationHandler.Create)
		orgInvites.POST("/:inviteID/resend", invitationHandler.Resend)
		orgInvites.DELETE("/:inviteID", invitationHandler.Revoke)
	}

	api.POST("/invitations/accept", invitationHandler.Accept)
}
