package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/internal/services"
	appErrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

// MemberHandler exposes the membership roster of an organization.
type MemberHandler struct {
	members *services.MembershipService
	guard   *services.AuthorizationGuard
}

func NewMemberHandler(members *services.MembershipService, guard *services.AuthorizationGuard) *MemberHandler {
	return &MemberHandler{members: members, guard: guard}
}

type addMemberRequest struct {
	UserID string `json:"user_id" validate:"required,max=64"`
	Role   string `json:"role" validate:"required,membership_role"`
}

type changeRoleRequest struct {
	Role string `json:"role" validate:"required,membership_role"`
}

type approvalRequest struct {
	Approved *bool `json:"approved" validate:"required"`
}

// GET /api/organizations/:orgID/members
func (h *MemberHandler) List(c *gin.Context) {
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
		response.Error(c, appErrors.ErrNotAuthorized.WithMessage("Only approved members can view the member list"))
		return
	}

	members, err := h.members.GetMembers(ctx, orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// POST /api/organizations/:orgID/members
func (h *MemberHandler) Add(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	var body addMemberRequest
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := models.ParseRole(body.Role)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	membership, err := h.members.AddMember(requestContext(c), orgID, userID, services.AddMemberInput{
		UserID: body.UserID,
		Role:   role,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, membership)
}

// POST /api/organizations/:orgID/members/request
func (h *MemberHandler) Request(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	membership, created, err := h.members.RequestMembership(requestContext(c), orgID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, membership)
}

// PATCH /api/organizations/:orgID/members/:userID/role
func (h *MemberHandler) ChangeRole(c *gin.Context) {
	requesterID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}
	targetID, ok := pathParam(c, "userID", "User ID")
	if !ok {
		return
	}

	var body changeRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}
	role, err := models.ParseRole(body.Role)
	if err != nil {
		response.Error(c, appErrors.NewBadRequest(err.Error()))
		return
	}

	membership, err := h.members.ChangeRole(requestContext(c), orgID, targetID, role, requesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}

// PATCH /api/organizations/:orgID/members/:userID/approval
func (h *MemberHandler) SetApproval(c *gin.Context) {
	requesterID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}
	targetID, ok := pathParam(c, "userID", "User ID")
	if !ok {
		return
	}

	var body approvalRequest
	if !bindAndValidate(c, &body) {
		return
	}

	membership, err := h.members.SetApproval(requestContext(c), orgID, targetID, *body.Approved, requesterID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, membership)
}

// DELETE /api/organizations/:orgID/members/:userID
func (h *MemberHandler) Remove(c *gin.Context) {
	requesterID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}
	targetID, ok := pathParam(c, "userID", "User ID")
	if !ok {
		return
	}

	if err := h.members.RemoveMember(requestContext(c), orgID, targetID, requesterID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}
