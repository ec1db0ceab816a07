package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecohubkosova/ecohub/internal/handlers/testutil"
	"github.com/ecohubkosova/ecohub/internal/models"
)

func TestOrganizationHandler_CreateMakesCreatorAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("founder", "founder@example.com")

	w := env.Request(http.MethodPost, "/api/organizations", map[string]any{
		"name": "Green Cycle",
		"city": "Prishtina",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var org models.Organization
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &org)
	require.NotEmpty(t, org.ID)
	require.Equal(t, "Green Cycle", org.Name)

	var membership models.Membership
	require.NoError(t, env.DB.Where("organization_id = ? AND user_id = ?", org.ID, "founder").First(&membership).Error)
	require.True(t, membership.IsApprovedAdmin())
}

func TestOrganizationHandler_CreateValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("founder", "founder@example.com")

	w := env.Request(http.MethodPost, "/api/organizations", map[string]any{"name": ""}, token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "name is required")
}

func TestOrganizationHandler_RequiresAuthentication(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/organizations", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Request(http.MethodGet, "/api/organizations", nil, "not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrganizationHandler_ListPaginates(t *testing.T) {
	env := testutil.NewEnv(t)
	env.SeedOrganization("Alpha Recycling", "admin-a")
	env.SeedOrganization("Beta Compost", "admin-b")
	env.SeedOrganization("Gamma Solar", "admin-c")
	token := env.Token("reader", "reader@example.com")

	w := env.Request(http.MethodGet, "/api/organizations?page=1&per_page=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := testutil.DecodeResponse(t, w)
	var orgs []models.Organization
	testutil.DecodeInto(t, resp.Data, &orgs)
	require.Len(t, orgs, 2)
	require.Equal(t, "Alpha Recycling", orgs[0].Name)
	require.NotNil(t, resp.Meta)
	require.Equal(t, 3, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)

	w = env.Request(http.MethodGet, "/api/organizations?q=compost", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &orgs)
	require.Len(t, orgs, 1)
	require.Equal(t, "Beta Compost", orgs[0].Name)
}

func TestOrganizationHandler_GetUnknownReturnsNotFound(t *testing.T) {
	env := testutil.NewEnv(t)
	token := env.Token("reader", "reader@example.com")

	w := env.Request(http.MethodGet, "/api/organizations/does-not-exist", nil, token)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	require.Equal(t, "NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestOrganizationHandler_UpdateRequiresAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	org := env.SeedOrganization("Green Cycle", "admin-1")
	env.SeedMember(org.ID, "editor-1", models.RoleEditor, true)

	w := env.Request(http.MethodPatch, "/api/organizations/"+org.ID, map[string]any{"city": "Prizren"},
		env.Token("editor-1", "editor-1@example.com"))
	require.Equal(t, http.StatusForbidden, w.Code, w.Body.String())
	require.Equal(t, "NOT_AUTHORIZED", testutil.DecodeResponse(t, w).Error.Code)

	w = env.Request(http.MethodPatch, "/api/organizations/"+org.ID, map[string]any{"city": "Prizren"},
		env.Token("admin-1", "admin-1@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated models.Organization
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &updated)
	require.Equal(t, "Prizren", updated.City)
}
