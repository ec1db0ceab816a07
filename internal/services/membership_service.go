package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/logger"
	"github.com/ecohubkosova/ecohub/pkg/metrics"
)

var (
	// ErrMembershipNotFound indicates the user is not a member of the organization.
	ErrMembershipNotFound = apperrors.New(apperrors.ErrNotFound.Code, "Membership not found", http.StatusNotFound)
	// ErrMembershipExists signals the user already belongs to the organization.
	ErrMembershipExists = apperrors.New(apperrors.ErrConflict.Code, "User is already a member of the organization", http.StatusConflict)
)

// MemberView is a membership joined with the member's display details.
type MemberView struct {
	UserID      string      `json:"user_id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	Role        models.Role `json:"role"`
	Approved    bool        `json:"approved"`
	JoinedAt    time.Time   `json:"joined_at"`
}

// MembershipService manages who belongs to an organization and with which role.
type MembershipService struct {
	db           *gorm.DB
	auditService *AuditService
	log          *zap.Logger
}

// NewMembershipService constructs a MembershipService instance.
func NewMembershipService(db *gorm.DB, auditService *AuditService) (*MembershipService, error) {
	if db == nil {
		return nil, errors.New("membership service: db is required")
	}
	return &MembershipService{
		db:           db,
		auditService: auditService,
		log:          logger.WithModule("membership"),
	}, nil
}

// GetMembers lists every membership of an organization with user display details.
func (s *MembershipService) GetMembers(ctx context.Context, organizationID string) ([]MemberView, error) {
	ctx = ensureContext(ctx)

	var members []MemberView
	err := s.db.WithContext(ctx).
		Table("memberships AS m").
		Select("m.user_id, m.role, m.approved, m.created_at AS joined_at, " +
			"COALESCE(u.email, '') AS email, COALESCE(u.display_name, '') AS display_name").
		Joins("LEFT JOIN users u ON u.id = m.user_id").
		Where("m.organization_id = ?", strings.TrimSpace(organizationID)).
		Order("m.created_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, asServiceError(s.log, "get_members", err)
	}
	if members == nil {
		members = []MemberView{}
	}
	return members, nil
}

// GetMembership loads a single membership row.
func (s *MembershipService) GetMembership(ctx context.Context, organizationID, userID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	membership, err := findMembership(s.db.WithContext(ctx), organizationID, userID)
	if err != nil {
		return nil, asServiceError(s.log, "get_membership", err)
	}
	return membership, nil
}

// ChangeRole sets targetUserID's role. The requester must be an approved ADMIN, also when
// changing their own role, and the organization must keep an approved ADMIN afterwards.
func (s *MembershipService) ChangeRole(ctx context.Context, organizationID, targetUserID string, newRole models.Role, requesterUserID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	if !newRole.Valid() {
		return nil, apperrors.NewBadRequest("role must be one of ADMIN, EDITOR or VIEWER")
	}

	var (
		target  *models.Membership
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
			return err
		}

		var err error
		target, err = findMembership(tx, organizationID, targetUserID)
		if err != nil {
			return err
		}
		if target.Role == newRole {
			return nil
		}
		if newRole != models.RoleAdmin {
			if err := ensureAdminRemains(tx, target); err != nil {
				return err
			}
		}

		if err := tx.Model(target).Update("role", newRole).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		target.Role = newRole
		changed = true
		return nil
	})

	s.observeChange("change_role", changed, err)
	if err != nil {
		return nil, asServiceError(s.log, "change_role", err)
	}
	if !changed {
		return target, nil
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        requesterUserID,
		Action:         AuditMemberRoleChange,
		Resource:       target.UserID,
		Metadata:       map[string]any{"role": string(newRole)},
	})
	return target, nil
}

// RemoveMember deletes targetUserID's membership. Members may always remove themselves;
// removing anyone else requires an approved ADMIN. The last approved ADMIN cannot leave.
func (s *MembershipService) RemoveMember(ctx context.Context, organizationID, targetUserID, requesterUserID string) error {
	ctx = ensureContext(ctx)

	self := strings.TrimSpace(targetUserID) == strings.TrimSpace(requesterUserID)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}
		if !self {
			if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
				return err
			}
		}

		target, err := findMembership(tx, organizationID, targetUserID)
		if err != nil {
			return err
		}
		if err := ensureAdminRemains(tx, target); err != nil {
			return err
		}

		if err := tx.Delete(target).Error; err != nil {
			return fmt.Errorf("delete membership: %w", err)
		}
		return nil
	})

	s.observe("remove_member", err)
	if err != nil {
		return asServiceError(s.log, "remove_member", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        requesterUserID,
		Action:         AuditMemberRemove,
		Resource:       targetUserID,
		Metadata:       map[string]any{"self": self},
	})
	return nil
}

// AddMemberInput describes a member added directly by an administrator.
type AddMemberInput struct {
	UserID string
	Role   models.Role
}

// AddMember lets an approved ADMIN add an existing user as an approved member.
func (s *MembershipService) AddMember(ctx context.Context, organizationID, requesterUserID string, input AddMemberInput) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewBadRequest("user id is required")
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewBadRequest("role must be one of ADMIN, EDITOR or VIEWER")
	}

	membership := &models.Membership{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           input.Role,
		Approved:       true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
			return err
		}

		var users int64
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&users).Error; err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if users == 0 {
			return ErrUserNotFound
		}

		if err := tx.Create(membership).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrMembershipExists
			}
			return fmt.Errorf("create membership: %w", err)
		}
		return nil
	})

	s.observe("add_member", err)
	if err != nil {
		return nil, asServiceError(s.log, "add_member", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        requesterUserID,
		Action:         AuditMemberAdd,
		Resource:       userID,
		Metadata:       map[string]any{"role": string(input.Role)},
	})
	return membership, nil
}

// RequestMembership records a join request as an unapproved VIEWER. Asking again returns the
// existing membership unchanged.
func (s *MembershipService) RequestMembership(ctx context.Context, organizationID, userID string) (*models.Membership, bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, apperrors.ErrUnauthorized
	}

	var (
		membership *models.Membership
		created    bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}

		existing, err := findMembership(tx, organizationID, userID)
		if err == nil {
			membership = existing
			return nil
		}
		if !errors.Is(err, ErrMembershipNotFound) {
			return err
		}

		membership = &models.Membership{
			OrganizationID: organizationID,
			UserID:         userID,
			Role:           models.RoleViewer,
			Approved:       false,
		}
		if err := tx.Create(membership).Error; err != nil {
			return fmt.Errorf("create membership request: %w", err)
		}
		created = true
		return nil
	})

	s.observe("request_membership", err)
	if err != nil {
		return nil, false, asServiceError(s.log, "request_membership", err)
	}

	if created {
		recordAudit(s.auditService, ctx, AuditEntry{
			OrganizationID: organizationID,
			ActorID:        userID,
			Action:         AuditMemberRequest,
			Resource:       userID,
		})
	}
	return membership, created, nil
}

// SetApproval approves or suspends a member. Suspending the last approved ADMIN fails.
func (s *MembershipService) SetApproval(ctx context.Context, organizationID, targetUserID string, approved bool, requesterUserID string) (*models.Membership, error) {
	ctx = ensureContext(ctx)

	var (
		target  *models.Membership
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockOrganization(tx, organizationID); err != nil {
			return err
		}
		if err := requireApprovedAdmin(tx, organizationID, requesterUserID); err != nil {
			return err
		}

		var err error
		target, err = findMembership(tx, organizationID, targetUserID)
		if err != nil {
			return err
		}
		if target.Approved == approved {
			return nil
		}
		if !approved {
			if err := ensureAdminRemains(tx, target); err != nil {
				return err
			}
		}

		if err := tx.Model(target).Update("approved", approved).Error; err != nil {
			return fmt.Errorf("update approval: %w", err)
		}
		target.Approved = approved
		changed = true
		return nil
	})

	s.observeChange("set_approval", changed, err)
	if err != nil {
		return nil, asServiceError(s.log, "set_approval", err)
	}
	if !changed {
		return target, nil
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		OrganizationID: organizationID,
		ActorID:        requesterUserID,
		Action:         AuditMemberApproval,
		Resource:       target.UserID,
		Metadata:       map[string]any{"approved": approved},
	})
	return target, nil
}

func (s *MembershipService) observe(operation string, err error) {
	metrics.MembershipOperations.WithLabelValues(operation, resultLabel(err)).Inc()
}

// observeChange records a successful call that left the row as it was under "unchanged".
func (s *MembershipService) observeChange(operation string, changed bool, err error) {
	if err == nil && !changed {
		metrics.MembershipOperations.WithLabelValues(operation, "unchanged").Inc()
		return
	}
	s.observe(operation, err)
}

func findMembership(db *gorm.DB, organizationID, userID string) (*models.Membership, error) {
	var membership models.Membership
	err := db.Where("organization_id = ? AND user_id = ?", strings.TrimSpace(organizationID), strings.TrimSpace(userID)).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	return &membership, nil
}
