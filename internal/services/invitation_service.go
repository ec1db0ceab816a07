package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/pkg/crypto"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/logger"
	"github.com/ecohubkosova/ecohub/pkg/mail"
	"github.com/ecohubkosova/ecohub/pkg/metrics"
	"github.com/ecohubkosova/ecohub/pkg/validator"
)

const (
	defaultInvitationTTL        = 7 * 24 * time.Hour
	defaultInvitationTokenBytes = crypto.MinTokenBytes
)

var (
	// ErrInvitationNotFound indicates no invitation matches the token or identifier.
	ErrInvitationNotFound = apperrors.New(apperrors.ErrNotFound.Code, "Invitation not found", http.StatusNotFound)
	// ErrInvitationExpired reports a pending invitation whose time window has passed.
	ErrInvitationExpired = apperrors.New(apperrors.ErrInvalidState.Code, "Invitation has expired", http.StatusGone)
)

// InvitationOption customises InvitationService behaviour.
type InvitationOption func(*InvitationService)

// WithInvitationBaseURL configures the base URL used to build acceptance links.
func WithInvitationBaseURL(baseURL string) InvitationOption {
	return func(s *InvitationService) {
		s.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithInvitationTTL overrides the invitation lifetime. Zero disables expiry.
func WithInvitationTTL(d time.Duration) InvitationOption {
	return func(s *InvitationService) {
		if d >= 0 {
			s.ttl = d
		}
	}
}

// WithInvitationTokenBytes adjusts the random token length in bytes.
func WithInvitationTokenBytes(size int) InvitationOption {
	return func(s *InvitationService) {
		if size >= crypto.MinTokenBytes {
			s.tokenBytes = size
		}
	}
}

// WithInvitationClock injects a custom clock primarily for testing.
func WithInvitationClock(clock func() time.Time) InvitationOption {
	return func(s *InvitationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInvitationAudit records invitation events in the organization audit log.
func WithInvitationAudit(audit *AuditService) InvitationOption {
	return func(s *InvitationService) {
		s.auditService = audit
	}
}

// InviteResult is returned by Invite and ResendInvite. Token is only set when a new token
// was minted; it is never stored and cannot be recovered later.
type InviteResult struct {
	Invitation *models.Invitation `json:"invitation"`
	Token      string             `json:"token,omitempty"`
	Link       string             `json:"link,omitempty"`
	Created    bool               `json:"created"`
}

// InvitationView is the public projection returned by a token lookup.
type InvitationView struct {
	Invitation       *models.Invitation `json:"invitation"`
	OrganizationName string             `json:"organization_name"`
}

// AcceptResult describes a redeemed invitation.
type AcceptResult struct {
	Invitation *models.Invitation `json:"invitation"`
	Membership *models.Membership `json:"membership"`
	// Reconciled is set when the user already had a membership row; a pending request is approved.
	Reconciled bool `json:"reconciled"`
}

// InvitationService issues, lists, revokes and redeems organization invitations.
type InvitationService struct {
	db           *gorm.DB
	mailer       mail.Mailer
	auditService *AuditService
	baseURL      string
	ttl          time.Duration
	tokenBytes   int
	now          func() time.Time
	log          *zap.Logger
}

// NewInvitationService constructs an InvitationService. mailer may be nil, in which case
// tokens are only returned to the caller.
func NewInvitationService(db *gorm.DB, mailer mail.Mailer, opts ...InvitationOption) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}

	service := &InvitationService{
		db:         db,
		mailer:     mailer,
		ttl:        defaultInvitationTTL,
		tokenBytes: defaultInvitationTokenBytes,
		now:        utcNow,
		log:        logger.WithModule("invitation"),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Invite offers membership of organizationID to email with the given role. Inviting an address
// that already has a pending invitation returns that invitation with Created=false.
func (s *InvitationService) Invite(ctx context.Context, organizationID, inviterUserID, email string, role models.Role) (*InviteResult, error) {
	ctx = ensureContext(ctx)

	// Authorization precedes input validation; the check repeats under the lock.
	if err := requireApprovedAdmin(s.db.WithContext(ctx), organizationID, inviterUserID); err != nil {
		return nil, asServiceError(s.log, "invite", err)
	}

	email = normalizeEmail(email)
	if err := validator.ValidateEmail(email); err != nil {
		return nil, apperrors.NewBadRequest("a valid email address is required")
	}
	if !role.Valid() {
		return nil, apperrors.NewBadRequest("role must be one of ADMIN, EDITOR or VIEWER")
	}

	var (
		result  = &InviteResult{}
		orgName string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := requireApprovedAdmin(tx, organizationID, inviterUserID); err != nil {
			return err
		}

		existing, err := s.pendingFor(tx, organizationID, email)
		if err != nil {
			return err
		}
		if existing != nil {
			result.Invitation = existing
			return nil
		}

		name, err := organizationName(tx, organizationID)
		if err != nil {
			return err
		}
		orgName = name

		token, err := crypto.GenerateToken(s.tokenBytes)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		now := s.now()
		invitation := &models.Invitation{
			BaseModel:      models.BaseModel{CreatedAt: now, UpdatedAt: now},
			OrganizationID: organizationID,
			Email:          email,
			Role:           role,
			TokenHash:      crypto.HashToken(token),
			Status:         models.InvitationPending,
			InvitedBy:      strings.TrimSpace(inviterUserID),
			ExpiresAt:      s.expiresAt(now),
		}
		if err := tx.Create(invitation).Error; err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}

		result.Invitation = invitation
		result.Token = token
		result.Link = s.acceptLink(token)
		result.Created = true
		return nil
	})

	if err != nil && isUniqueConstraintError(err) {
		// A concurrent invite for the same address won the partial unique index.
		existing, lookupErr := s.pendingFor(s.db.WithContext(ctx), organizationID, email)
		if lookupErr == nil && existing != nil {
			return &InviteResult{Invitation: existing}, nil
		}
	}
	if err != nil {
		return nil, asServiceError(s.log, "invite", err)
	}

	if !result.Created {
		s.log.Debug("pending invitation already exists",
			zap.String("organization_id", organizationID),
			zap.String("invitation_id", result.Invitation.ID),
		)
		return result, nil
	}

	metrics.InvitationTransitions.WithLabelValues(string(models.InvitationPending)).Inc()
	s.deliver(ctx, orgName, result)

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        inviterUserID,
		Action:         AuditInviteCreate,
		Resource:       result.Invitation.ID,
		Metadata:       map[string]any{"email": email, "role": string(role)},
	})
	return result, nil
}

// ListInvites returns an organization's PENDING and ACCEPTED invitations, newest first.
func (s *InvitationService) ListInvites(ctx context.Context, organizationID string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND status IN ?", strings.TrimSpace(organizationID),
			[]models.InvitationStatus{models.InvitationPending, models.InvitationAccepted}).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, asServiceError(s.log, "list_invites", err)
	}
	return invitations, nil
}

// Revoke cancels a pending invitation of organizationID. Revoking an already revoked
// invitation succeeds without change.
func (s *InvitationService) Revoke(ctx context.Context, invitationID, requesterUserID, organizationID string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	var (
		invitation models.Invitation
		changed    bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
			return err
		}

		err := tx.Where("id = ? AND organization_id = ?", strings.TrimSpace(invitationID), strings.TrimSpace(organizationID)).
			First(&invitation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		if err != nil {
			return fmt.Errorf("load invitation: %w", err)
		}

		switch invitation.Status {
		case models.InvitationRevoked:
			return nil
		case models.InvitationPending:
		default:
			return apperrors.ErrInvalidState
		}

		now := s.now()
		result := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{"status": models.InvitationRevoked, "revoked_at": now, "updated_at": now})
		if result.Error != nil {
			return fmt.Errorf("revoke invitation: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrInvalidState
		}

		invitation.Status = models.InvitationRevoked
		invitation.RevokedAt = &now
		changed = true
		return nil
	})
	if err != nil {
		return nil, asServiceError(s.log, "revoke", err)
	}

	if changed {
		metrics.InvitationTransitions.WithLabelValues(string(models.InvitationRevoked)).Inc()
		recordAudit(s.auditService, ctx, AuditEntry{
			OrganizationID: organizationID,
			ActorID:        requesterUserID,
			Action:         AuditInviteRevoke,
			Resource:       invitation.ID,
			Metadata:       map[string]any{"email": invitation.Email},
		})
	}
	return &invitation, nil
}

// GetInviteByToken resolves a bearer token to its pending invitation. No authorization is
// applied; holding the token is the credential.
func (s *InvitationService) GetInviteByToken(ctx context.Context, token string) (*InvitationView, error) {
	ctx = ensureContext(ctx)

	invitation, err := s.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}

	view := &InvitationView{Invitation: invitation}
	if invitation.Organization != nil {
		view.OrganizationName = invitation.Organization.Name
	}
	return view, nil
}

// Accept redeems token for the authenticated user. The claim of the invitation and the
// membership insert commit together; a user who is already a member keeps their membership
// and the invitation is still marked accepted.
func (s *InvitationService) Accept(ctx context.Context, token, userID, userEmail string) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	invitation, err := s.loadRedeemable(ctx, token)
	if err != nil {
		return nil, err
	}
	if normalizeEmail(userEmail) != normalizeEmail(invitation.Email) {
		metrics.MembershipOperations.WithLabelValues("accept", "email_mismatch").Inc()
		return nil, apperrors.ErrEmailMismatch
	}

	result := &AcceptResult{Invitation: invitation}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, invitation.OrganizationID); err != nil {
			return err
		}

		now := s.now()
		claim := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"status":      models.InvitationAccepted,
				"accepted_at": now,
				"accepted_by": userID,
				"updated_at":  now,
			})
		if claim.Error != nil {
			return fmt.Errorf("claim invitation: %w", claim.Error)
		}
		if claim.RowsAffected == 0 {
			return apperrors.ErrInvalidState
		}
		invitation.Status = models.InvitationAccepted
		invitation.AcceptedAt = &now
		invitation.AcceptedBy = &userID

		existing, err := findMembership(tx, invitation.OrganizationID, userID)
		if err == nil {
			// A pending membership request is settled by the invitation.
			if !existing.Approved {
				if err := tx.Model(existing).Updates(map[string]any{
					"approved": true,
					"role":     invitation.Role,
				}).Error; err != nil {
					return fmt.Errorf("approve membership request: %w", err)
				}
				existing.Approved = true
				existing.Role = invitation.Role
			}
			result.Membership = existing
			result.Reconciled = true
			return nil
		}
		if !errors.Is(err, ErrMembershipNotFound) {
			return err
		}

		membership := &models.Membership{
			OrganizationID: invitation.OrganizationID,
			UserID:         userID,
			Role:           invitation.Role,
			Approved:       true,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("create membership: %w", err)
		}
		result.Membership = membership
		return nil
	})

	metrics.MembershipOperations.WithLabelValues("accept", resultLabel(err)).Inc()
	if err != nil {
		return nil, asServiceError(s.log, "accept", err)
	}

	metrics.InvitationTransitions.WithLabelValues(string(models.InvitationAccepted)).Inc()
	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: invitation.OrganizationID,
		ActorID:        userID,
		Action:         AuditInviteAccept,
		Resource:       invitation.ID,
		Metadata:       map[string]any{"role": string(invitation.Role), "reconciled": result.Reconciled},
	})
	return result, nil
}

// ResendInvite rotates the token of a pending invitation, restarts its expiry window and
// delivers it again. The previous token stops working.
func (s *InvitationService) ResendInvite(ctx context.Context, organizationID, invitationID, requesterUserID string) (*InviteResult, error) {
	ctx = ensureContext(ctx)

	var (
		invitation models.Invitation
		result     = &InviteResult{}
		orgName    string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
			return err
		}

		err := tx.Where("id = ? AND organization_id = ?", strings.TrimSpace(invitationID), strings.TrimSpace(organizationID)).
			First(&invitation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvitationNotFound
		}
		if err != nil {
			return fmt.Errorf("load invitation: %w", err)
		}
		if !invitation.IsPending() {
			return apperrors.ErrInvalidState
		}

		name, err := organizationName(tx, organizationID)
		if err != nil {
			return err
		}
		orgName = name

		token, err := crypto.GenerateToken(s.tokenBytes)
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}

		now := s.now()
		updates := map[string]any{
			"token_hash": crypto.HashToken(token),
			"expires_at": s.expiresAt(now),
			"updated_at": now,
		}
		rotate := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(updates)
		if rotate.Error != nil {
			return fmt.Errorf("rotate token: %w", rotate.Error)
		}
		if rotate.RowsAffected == 0 {
			return apperrors.ErrInvalidState
		}

		invitation.TokenHash = crypto.HashToken(token)
		invitation.ExpiresAt = s.expiresAt(now)
		result.Invitation = &invitation
		result.Token = token
		result.Link = s.acceptLink(token)
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, asServiceError(s.log, "resend_invite", err)
	}

	s.deliver(ctx, orgName, result)
	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        requesterUserID,
		Action:         AuditInviteResend,
		Resource:       invitation.ID,
		Metadata:       map[string]any{"email": invitation.Email},
	})
	return result, nil
}

// ExpireStale marks every pending invitation whose expiry has passed as EXPIRED.
func (s *InvitationService) ExpireStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	result := s.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.InvitationPending, now).
		Updates(map[string]any{"status": models.InvitationExpired, "updated_at": now})
	if result.Error != nil {
		return 0, asServiceError(s.log, "expire_stale", result.Error)
	}
	if result.RowsAffected > 0 {
		metrics.InvitationTransitions.WithLabelValues(string(models.InvitationExpired)).Add(float64(result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// loadRedeemable finds the invitation for token and checks that it can still be redeemed.
// A pending invitation found past its expiry is moved to EXPIRED on the way out.
func (s *InvitationService) loadRedeemable(ctx context.Context, token string) (*models.Invitation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).
		Preload("Organization").
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, asServiceError(s.log, "load_invitation", err)
	}

	if !invitation.IsPending() {
		return nil, apperrors.ErrInvalidState
	}

	now := s.now()
	if invitation.ExpiredAt(now) {
		if err := s.db.WithContext(ctx).
			Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{"status": models.InvitationExpired, "updated_at": now}).Error; err != nil {
			return nil, asServiceError(s.log, "expire_invitation", err)
		}
		metrics.InvitationTransitions.WithLabelValues(string(models.InvitationExpired)).Inc()
		return nil, ErrInvitationExpired
	}

	return &invitation, nil
}

// pendingFor returns the pending invitation for (organization, email), expiring it first when
// its window has passed so a fresh invitation can take its place.
func (s *InvitationService) pendingFor(db *gorm.DB, organizationID, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := db.Where("organization_id = ? AND email = ? AND status = ?", organizationID, email, models.InvitationPending).
		First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending invitation: %w", err)
	}

	now := s.now()
	if !invitation.ExpiredAt(now) {
		return &invitation, nil
	}

	if err := db.Model(&models.Invitation{}).
		Where("id = ?", invitation.ID).
		Updates(map[string]any{"status": models.InvitationExpired, "updated_at": now}).Error; err != nil {
		return nil, fmt.Errorf("expire invitation: %w", err)
	}
	metrics.InvitationTransitions.WithLabelValues(string(models.InvitationExpired)).Inc()
	return nil, nil
}

func (s *InvitationService) expiresAt(now time.Time) *time.Time {
	if s.ttl <= 0 {
		return nil
	}
	expires := now.Add(s.ttl)
	return &expires
}

func (s *InvitationService) acceptLink(token string) string {
	if s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s?token=%s", s.baseURL, url.QueryEscape(token))
}

// deliver hands the invitation to the mailer. Delivery failures are logged and never fail
// the invitation itself.
func (s *InvitationService) deliver(ctx context.Context, organizationName string, result *InviteResult) {
	if s.mailer == nil || result == nil || result.Token == "" {
		return
	}

	link := result.Link
	if link == "" {
		link = result.Token
	}

	message := mail.Message{
		To:      []string{result.Invitation.Email},
		Subject: fmt.Sprintf("You're invited to join %s on ECO HUB KOSOVA", organizationName),
		Body:    invitationBody(organizationName, string(result.Invitation.Role), link, result.Invitation.ExpiresAt),
	}

	if err := s.mailer.Send(ctx, message); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("invitation delivery failed",
			zap.String("organization_id", result.Invitation.OrganizationID),
			zap.String("invitation_id", result.Invitation.ID),
			zap.Error(err),
		)
	}
}

func invitationBody(organizationName, role, link string, expiresAt *time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\nYou have been invited to join %s on ECO HUB KOSOVA as %s.\n", organizationName, strings.ToLower(role))
	fmt.Fprintf(&b, "Sign in with this email address and use the following link to accept:\n%s\n\n", link)
	if expiresAt != nil {
		fmt.Fprintf(&b, "The invitation is valid until %s.\n", expiresAt.UTC().Format("2 January 2006 15:04 MST"))
	}
	b.WriteString("If you did not expect this email, you can ignore it.\n")
	return b.String()
}

func organizationName(db *gorm.DB, organizationID string) (string, error) {
	var org models.Organization
	err := db.Select("id", "name").First(&org, "id = ?", organizationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrOrganizationNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load organization: %w", err)
	}
	return org.Name, nil
}
