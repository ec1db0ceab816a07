package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/services"
	"github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

type OrganizationHandler struct {
	svc *services.OrganizationService
}

func NewOrganizationHandler(svc *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{svc: svc}
}

type createOrganizationRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Website     string `json:"website" validate:"omitempty,url,max=512"`
	City        string `json:"city" validate:"omitempty,max=128"`
}

type updateOrganizationRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Website     *string `json:"website" validate:"omitempty,url,max=512"`
	City        *string `json:"city" validate:"omitempty,max=128"`
}

// GET /api/organizations
func (h *OrganizationHandler) List(c *gin.Context) {
	page, perPage := pagination(c, 20, 100)

	orgs, total, err := h.svc.List(requestContext(c), services.ListOrganizationsOptions{
		Page:     page,
		PageSize: perPage,
		Query:    c.Query("q"),
		City:     c.Query("city"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, orgs, response.NewMeta(page, perPage, total))
}

// GET /api/organizations/:orgID
func (h *OrganizationHandler) Get(c *gin.Context) {
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	org, err := h.svc.GetByID(requestContext(c), orgID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}

// POST /api/organizations
func (h *OrganizationHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var body createOrganizationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		response.Error(c, errors.NewBadRequest("name is required"))
		return
	}

	org, err := h.svc.Create(requestContext(c), userID, services.CreateOrganizationInput{
		Name:        name,
		Description: strings.TrimSpace(body.Description),
		Website:     strings.TrimSpace(body.Website),
		City:        strings.TrimSpace(body.City),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, org)
}

// PATCH /api/organizations/:orgID
func (h *OrganizationHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	var body updateOrganizationRequest
	if !bindAndValidate(c, &body) {
		return
	}

	org, err := h.svc.Update(requestContext(c), orgID, userID, services.UpdateOrganizationInput{
		Name:        body.Name,
		Description: body.Description,
		Website:     body.Website,
		City:        body.City,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, org)
}
