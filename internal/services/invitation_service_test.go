package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/pkg/crypto"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
)

type invitationFixture struct {
	db     *gorm.DB
	svc    *InvitationService
	clock  *manualClock
	mailer *recordingMailer
	org    *models.Organization
}

func newInvitationFixture(t *testing.T, opts ...InvitationOption) *invitationFixture {
	t.Helper()

	db := openServiceTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)

	clock := newManualClock()
	mailer := &recordingMailer{}
	base := []InvitationOption{
		WithInvitationClock(clock.Now),
		WithInvitationTTL(24 * time.Hour),
		WithInvitationBaseURL("https://ecohub.example/invitations/accept/"),
		WithInvitationAudit(audit),
	}
	svc, err := NewInvitationService(db, mailer, append(base, opts...)...)
	require.NoError(t, err)

	org := seedOrganization(t, db, "org-1")
	seedMember(t, db, org.ID, "alice", models.RoleAdmin, true)

	return &invitationFixture{db: db, svc: svc, clock: clock, mailer: mailer, org: org}
}

func (f *invitationFixture) countPending(t *testing.T, email string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, f.db.Model(&models.Invitation{}).
		Where("organization_id = ? AND email = ? AND status = ?", f.org.ID, email, models.InvitationPending).
		Count(&count).Error)
	return count
}

func TestInvitationServiceInviteIsIdempotent(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	first, err := f.svc.Invite(ctx, f.org.ID, "alice", "New@Example.com", models.RoleEditor)
	require.NoError(t, err)
	require.True(t, first.Created)
	require.NotEmpty(t, first.Token)
	require.Equal(t, "new@example.com", first.Invitation.Email)
	require.Equal(t, models.RoleEditor, first.Invitation.Role)
	require.Equal(t, f.org.ID, first.Invitation.OrganizationID)
	require.Equal(t, crypto.HashToken(first.Token), first.Invitation.TokenHash)
	require.True(t, strings.HasPrefix(first.Link, "https://ecohub.example/invitations/accept?token="))

	second, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Empty(t, second.Token)
	require.Equal(t, first.Invitation.ID, second.Invitation.ID)

	require.Equal(t, int64(1), f.countPending(t, "new@example.com"))

	invites, err := f.svc.ListInvites(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.Equal(t, models.InvitationPending, invites[0].Status)

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, []string{"new@example.com"}, sent[0].To)
	require.Contains(t, sent[0].Body, first.Link)
}

func TestInvitationServiceInviteValidation(t *testing.T) {
	f := newInvitationFixture(t)
	seedMember(t, f.db, f.org.ID, "carol", models.RoleEditor, true)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.org.ID, "carol", "new@example.com", models.RoleViewer)
	require.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	// Non-admins are refused before their input is inspected.
	_, err = f.svc.Invite(ctx, f.org.ID, "carol", "not-an-email", models.Role("OWNER"))
	require.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.svc.Invite(ctx, f.org.ID, "alice", "not-an-email", models.RoleViewer)
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.Role("OWNER"))
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.svc.Invite(ctx, "missing-org", "alice", "new@example.com", models.RoleViewer)
	require.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	require.Equal(t, int64(0), f.countPending(t, "new@example.com"))
}

func TestInvitationServiceTokensAreDistinct(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	seen := map[string]struct{}{}
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		result, err := f.svc.Invite(ctx, f.org.ID, "alice", email, models.RoleViewer)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(result.Token), 43, "token must carry at least 256 bits")
		require.NotContains(t, result.Token, email)
		_, dup := seen[result.Token]
		require.False(t, dup)
		seen[result.Token] = struct{}{}
	}
}

func TestInvitationServiceAcceptEmailMismatch(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	_, err = f.svc.Accept(ctx, invite.Token, "mallory", "wrong@example.com")
	require.ErrorIs(t, err, apperrors.ErrEmailMismatch)

	require.Equal(t, int64(1), countMembers(t, f.db, f.org.ID))
	require.Equal(t, int64(1), f.countPending(t, "new@example.com"))
}

func TestInvitationServiceAcceptCreatesMembershipOnce(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	result, err := f.svc.Accept(ctx, invite.Token, "newbie", "NEW@example.com")
	require.NoError(t, err)
	require.False(t, result.Reconciled)
	require.Equal(t, models.InvitationAccepted, result.Invitation.Status)
	require.Equal(t, models.RoleEditor, result.Membership.Role)
	require.True(t, result.Membership.Approved)

	member := loadMember(t, f.db, f.org.ID, "newbie")
	require.Equal(t, models.RoleEditor, member.Role)
	require.True(t, member.Approved)

	var stored models.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invite.Invitation.ID).Error)
	require.Equal(t, models.InvitationAccepted, stored.Status)
	require.NotNil(t, stored.AcceptedBy)
	require.Equal(t, "newbie", *stored.AcceptedBy)

	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	require.Equal(t, int64(2), countMembers(t, f.db, f.org.ID))

	invites, err := f.svc.ListInvites(ctx, f.org.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	require.Equal(t, models.InvitationAccepted, invites[0].Status)
}

func TestInvitationServiceConcurrentAcceptClaimsOnce(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleViewer)
	require.NoError(t, err)

	const callers = 5
	var (
		wg   sync.WaitGroup
		errs = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrInvalidState)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, int64(2), countMembers(t, f.db, f.org.ID))
}

func TestInvitationServiceAcceptReconcilesExistingMember(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()
	seedMember(t, f.db, f.org.ID, "bob", models.RoleViewer, true)

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "bob@example.com", models.RoleAdmin)
	require.NoError(t, err)

	result, err := f.svc.Accept(ctx, invite.Token, "bob", "bob@example.com")
	require.NoError(t, err)
	require.True(t, result.Reconciled)
	require.Equal(t, models.RoleViewer, result.Membership.Role)

	require.Equal(t, int64(2), countMembers(t, f.db, f.org.ID))
	require.Equal(t, models.RoleViewer, loadMember(t, f.db, f.org.ID, "bob").Role)
	require.Equal(t, int64(0), f.countPending(t, "bob@example.com"))
}

func TestInvitationServiceAcceptApprovesPendingRequest(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	members, err := NewMembershipService(f.db, nil)
	require.NoError(t, err)
	requested, created, err := members.RequestMembership(ctx, f.org.ID, "bob")
	require.NoError(t, err)
	require.True(t, created)
	require.False(t, requested.Approved)

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "bob@example.com", models.RoleEditor)
	require.NoError(t, err)

	result, err := f.svc.Accept(ctx, invite.Token, "bob", "bob@example.com")
	require.NoError(t, err)
	require.True(t, result.Reconciled)
	require.True(t, result.Membership.Approved)
	require.Equal(t, models.RoleEditor, result.Membership.Role)

	stored := loadMember(t, f.db, f.org.ID, "bob")
	require.True(t, stored.Approved)
	require.Equal(t, models.RoleEditor, stored.Role)
	require.Equal(t, int64(2), countMembers(t, f.db, f.org.ID))
}

func TestInvitationServiceRevoke(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()
	seedMember(t, f.db, f.org.ID, "carol", models.RoleEditor, true)
	other := seedOrganization(t, f.db, "org-2")
	seedMember(t, f.db, other.ID, "alice", models.RoleAdmin, true)

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	_, err = f.svc.Revoke(ctx, invite.Invitation.ID, "carol", f.org.ID)
	require.ErrorIs(t, err, apperrors.ErrNotAuthorized)

	_, err = f.svc.Revoke(ctx, invite.Invitation.ID, "alice", other.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	revoked, err := f.svc.Revoke(ctx, invite.Invitation.ID, "alice", f.org.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationRevoked, revoked.Status)
	require.NotNil(t, revoked.RevokedAt)

	again, err := f.svc.Revoke(ctx, invite.Invitation.ID, "alice", f.org.ID)
	require.NoError(t, err)
	require.Equal(t, models.InvitationRevoked, again.Status)

	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)

	invites, err := f.svc.ListInvites(ctx, f.org.ID)
	require.NoError(t, err)
	require.Empty(t, invites)

	// A revoked invitation frees the address for a new one.
	fresh, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleViewer)
	require.NoError(t, err)
	require.True(t, fresh.Created)
	require.NotEqual(t, invite.Invitation.ID, fresh.Invitation.ID)
}

func TestInvitationServiceRevokeAcceptedIsInvalid(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.NoError(t, err)

	_, err = f.svc.Revoke(ctx, invite.Invitation.ID, "alice", f.org.ID)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInvitationServiceGetInviteByToken(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	view, err := f.svc.GetInviteByToken(ctx, invite.Token)
	require.NoError(t, err)
	require.Equal(t, "org-1", view.OrganizationName)
	require.Equal(t, invite.Invitation.ID, view.Invitation.ID)

	_, err = f.svc.GetInviteByToken(ctx, "unknown-token")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.GetInviteByToken(ctx, "")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.Revoke(ctx, invite.Invitation.ID, "alice", f.org.ID)
	require.NoError(t, err)

	_, err = f.svc.GetInviteByToken(ctx, invite.Token)
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInvitationServiceExpiryIsCheckedLazily(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	require.NotNil(t, invite.Invitation.ExpiresAt)

	f.clock.Advance(24 * time.Hour)

	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
	require.True(t, errors.Is(err, ErrInvitationExpired))

	var stored models.Invitation
	require.NoError(t, f.db.First(&stored, "id = ?", invite.Invitation.ID).Error)
	require.Equal(t, models.InvitationExpired, stored.Status)
	require.Equal(t, int64(1), countMembers(t, f.db, f.org.ID))

	fresh, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	require.True(t, fresh.Created)
}

func TestInvitationServiceExpiredPendingIsReplacedOnInvite(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	first, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)

	second, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	require.True(t, second.Created)
	require.NotEqual(t, first.Invitation.ID, second.Invitation.ID)
	require.Equal(t, int64(1), f.countPending(t, "new@example.com"))
}

func TestInvitationServiceWithoutTTLNeverExpires(t *testing.T) {
	f := newInvitationFixture(t, WithInvitationTTL(0))
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleViewer)
	require.NoError(t, err)
	require.Nil(t, invite.Invitation.ExpiresAt)

	f.clock.Advance(365 * 24 * time.Hour)

	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.NoError(t, err)
}

func TestInvitationServiceExpireStale(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	_, err := f.svc.Invite(ctx, f.org.ID, "alice", "old@example.com", models.RoleViewer)
	require.NoError(t, err)

	f.clock.Advance(12 * time.Hour)
	_, err = f.svc.Invite(ctx, f.org.ID, "alice", "recent@example.com", models.RoleViewer)
	require.NoError(t, err)

	f.clock.Advance(13 * time.Hour)
	expired, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), expired)

	require.Equal(t, int64(0), f.countPending(t, "old@example.com"))
	require.Equal(t, int64(1), f.countPending(t, "recent@example.com"))
}

func TestInvitationServiceResendRotatesToken(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Hour)

	resent, err := f.svc.ResendInvite(ctx, f.org.ID, invite.Invitation.ID, "alice")
	require.NoError(t, err)
	require.NotEqual(t, invite.Token, resent.Token)
	require.True(t, resent.Invitation.ExpiresAt.After(*invite.Invitation.ExpiresAt))
	require.Len(t, f.mailer.Sent(), 2)

	_, err = f.svc.GetInviteByToken(ctx, invite.Token)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	f.clock.Advance(10 * time.Hour)
	_, err = f.svc.Accept(ctx, resent.Token, "newbie", "new@example.com")
	require.NoError(t, err)

	_, err = f.svc.ResendInvite(ctx, f.org.ID, invite.Invitation.ID, "alice")
	require.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestInvitationServiceDeliveryFailureDoesNotFailInvite(t *testing.T) {
	f := newInvitationFixture(t)
	f.mailer.err = errors.New("smtp unavailable")

	result, err := f.svc.Invite(context.Background(), f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	require.True(t, result.Created)
	require.Len(t, f.mailer.Sent(), 1)
}

func TestInvitationServiceAuditTrail(t *testing.T) {
	f := newInvitationFixture(t)
	ctx := context.Background()

	invite, err := f.svc.Invite(ctx, f.org.ID, "alice", "new@example.com", models.RoleEditor)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, invite.Token, "newbie", "new@example.com")
	require.NoError(t, err)

	var actions []string
	require.NoError(t, f.db.Model(&models.AuditLog{}).
		Where("organization_id = ?", f.org.ID).
		Order("action ASC").
		Pluck("action", &actions).Error)
	require.Equal(t, []string{AuditInviteAccept, AuditInviteCreate}, actions)
}
