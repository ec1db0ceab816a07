package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
)

func TestAuthorizationGuardIsApprovedAdmin(t *testing.T) {
	db := openServiceTestDB(t)
	org := seedOrganization(t, db, "Green Cycle")
	other := seedOrganization(t, db, "Eco Hub")

	seedMember(t, db, org.ID, "alice", models.RoleAdmin, true)
	seedMember(t, db, org.ID, "bob", models.RoleAdmin, false)
	seedMember(t, db, org.ID, "carol", models.RoleEditor, true)
	seedMember(t, db, other.ID, "dave", models.RoleAdmin, true)

	guard, err := NewAuthorizationGuard(db)
	require.NoError(t, err)

	ctx := context.Background()
	cases := []struct {
		userID string
		want   bool
	}{
		{"alice", true},
		{"bob", false},
		{"carol", false},
		{"dave", false},
		{"", false},
	}
	for _, tc := range cases {
		ok, err := guard.IsApprovedAdmin(ctx, org.ID, tc.userID)
		require.NoError(t, err)
		require.Equal(t, tc.want, ok, "user %q", tc.userID)
	}

	require.NoError(t, guard.RequireApprovedAdmin(ctx, org.ID, "alice"))
	require.ErrorIs(t, guard.RequireApprovedAdmin(ctx, org.ID, "carol"), apperrors.ErrNotAuthorized)
}

func TestAuthorizationGuardReflectsCurrentState(t *testing.T) {
	db := openServiceTestDB(t)
	org := seedOrganization(t, db, "Green Cycle")
	membership := seedMember(t, db, org.ID, "alice", models.RoleAdmin, true)

	guard, err := NewAuthorizationGuard(db)
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := guard.IsApprovedAdmin(ctx, org.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Model(membership).Update("role", models.RoleViewer).Error)

	ok, err = guard.IsApprovedAdmin(ctx, org.ID, "alice")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthorizationGuardIsApprovedMember(t *testing.T) {
	db := openServiceTestDB(t)
	org := seedOrganization(t, db, "Green Cycle")
	seedMember(t, db, org.ID, "alice", models.RoleViewer, true)
	seedMember(t, db, org.ID, "bob", models.RoleViewer, false)

	guard, err := NewAuthorizationGuard(db)
	require.NoError(t, err)

	ok, err := guard.IsApprovedMember(context.Background(), org.ID, "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = guard.IsApprovedMember(context.Background(), org.ID, "bob")
	require.NoError(t, err)
	require.False(t, ok)
}
