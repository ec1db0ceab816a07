package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecohubkosova/ecohub/internal/handlers/testutil"
	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/internal/services"
)

func TestAuditHandler_ListIsAdminOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	org := env.SeedOrganization("Green Cycle", "admin-1")
	env.SeedMember(org.ID, "viewer-1", models.RoleViewer, true)
	adminToken := env.Token("admin-1", "admin-1@example.com")

	createInvitation(t, env, org.ID, "new@example.com", "VIEWER", adminToken)

	path := "/api/organizations/" + org.ID + "/audit"
	w := env.Request(http.MethodGet, path, nil, env.Token("viewer-1", "viewer-1@example.com"))
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())

	w = env.Request(http.MethodGet, path+"?action="+services.AuditInviteCreate, nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var logs []models.AuditLog
	testutil.DecodeInto(t, resp.Data, &logs)
	require.Len(t, logs, 1)
	require.Equal(t, services.AuditInviteCreate, logs[0].Action)
	require.NotNil(t, logs[0].ActorID)
	require.Equal(t, "admin-1", *logs[0].ActorID)
	require.Equal(t, 1, resp.Meta.Total)
}
