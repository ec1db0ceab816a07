package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/middleware"
	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/internal/services"
	appErrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

// InvitationHandler issues and redeems organization invitations.
type InvitationHandler struct {
	invites *services.InvitationService
	guard   *services.AuthorizationGuard
}

func NewInvitationHandler(invites *services.InvitationService, guard *services.AuthorizationGuard) *InvitationHandler {
	return &InvitationHandler{invites: invites, guard: guard}
}

type createInvitationRequest struct {
	Email string `json:"email" validate:"required,mailbox,max=320"`
	Role  string `json:"role" validate:"required,membership_role"`
}

type acceptInvitationRequest struct {
	Token string `json:"token" validate:"required,max=256"`
}

// GET /api/organizations/:orgID/invitations
func (h *InvitationHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	ctx := requestContext(c)
	member, err := h.guard.IsApprovedMember(ctx, orgID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !member {
		response.Error(c, appErrors.ErrNotAuthorized.WithMessage("Only approved members can view invitations"))
		return
	}

	invitations, err := h.invites.ListInvites(ctx, orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitations)
}

// POST /api/organizations/:orgID/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	var body createInvitationRequest
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := models.ParseRole(body.Role)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	result, err := h.invites.Invite(requestContext(c), orgID, userID, body.Email, role)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Success(c, status, result)
}

// POST /api/organizations/:orgID/invitations/:inviteID/resend
func (h *InvitationHandler) Resend(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}
	inviteID, ok := pathParam(c, "inviteID", "Invitation ID")
	if !ok {
		return
	}

	result, err := h.invites.ResendInvite(requestContext(c), orgID, inviteID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// DELETE /api/organizations/:orgID/invitations/:inviteID
func (h *InvitationHandler) Revoke(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}
	inviteID, ok := pathParam(c, "inviteID", "Invitation ID")
	if !ok {
		return
	}

	invitation, err := h.invites.Revoke(requestContext(c), inviteID, userID, orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invitation)
}

// GET /api/invitations/lookup?token=
func (h *InvitationHandler) Lookup(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewBadRequest("Invitation token is required"))
		return
	}

	view, err := h.invites.GetInviteByToken(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, view)
}

// POST /api/invitations/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var body acceptInvitationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.invites.Accept(requestContext(c), body.Token, userID, c.GetString(middleware.CtxUserEmailKey))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}
