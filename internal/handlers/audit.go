package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecohubkosova/ecohub/internal/services"
	"github.com/ecohubkosova/ecohub/pkg/response"
)

type AuditHandler struct {
	svc   *services.AuditService
	guard *services.AuthorizationGuard
}

func NewAuditHandler(svc *services.AuditService, guard *services.AuthorizationGuard) *AuditHandler {
	return &AuditHandler{svc: svc, guard: guard}
}

// GET /api/organizations/:orgID/audit
func (h *AuditHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	orgID, ok := pathParam(c, "orgID", "Organization ID")
	if !ok {
		return
	}

	ctx := requestContext(c)
	if err := h.guard.RequireApprovedAdmin(ctx, orgID, userID); err != nil {
		response.Error(c, err)
		return
	}

	page, perPage := pagination(c, 50, 200)

	var filters services.AuditFilters
	filters.ActorID = strings.TrimSpace(c.Query("actor_id"))
	filters.Action = strings.TrimSpace(c.Query("action"))
	filters.Result = strings.TrimSpace(c.Query("result"))
	filters.Resource = strings.TrimSpace(c.Query("resource"))

	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}

	logs, total, err := h.svc.List(ctx, orgID, services.AuditListOptions{Page: page, PageSize: perPage, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(page, perPage, total))
}
