package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
	"github.com/ecohubkosova/ecohub/pkg/logger"
	"github.com/ecohubkosova/ecohub/pkg/metrics"
)

// AuthorizationGuard answers whether a user may administer an organization. Every call reads
// the membership table; nothing is cached between calls.
type AuthorizationGuard struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewAuthorizationGuard constructs an AuthorizationGuard.
func NewAuthorizationGuard(db *gorm.DB) (*AuthorizationGuard, error) {
	if db == nil {
		return nil, errors.New("authorization guard: db is required")
	}
	return &AuthorizationGuard{db: db, log: logger.WithModule("authorization")}, nil
}

// IsApprovedAdmin reports whether userID holds an approved ADMIN membership in organizationID.
func (g *AuthorizationGuard) IsApprovedAdmin(ctx context.Context, organizationID, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	ok, err := isApprovedAdmin(g.db.WithContext(ctx), organizationID, userID)
	if err != nil {
		return false, asServiceError(g.log, "is_approved_admin", err)
	}
	return ok, nil
}

// RequireApprovedAdmin returns ErrNotAuthorized unless userID is an approved ADMIN of organizationID.
func (g *AuthorizationGuard) RequireApprovedAdmin(ctx context.Context, organizationID, userID string) error {
	ctx = ensureContext(ctx)
	return asServiceError(g.log, "require_approved_admin", requireApprovedAdmin(g.db.WithContext(ctx), organizationID, userID))
}

// IsApprovedMember reports whether userID holds any approved membership in organizationID.
func (g *AuthorizationGuard) IsApprovedMember(ctx context.Context, organizationID, userID string) (bool, error) {
	ctx = ensureContext(ctx)

	organizationID = strings.TrimSpace(organizationID)
	userID = strings.TrimSpace(userID)
	if organizationID == "" || userID == "" {
		return false, nil
	}

	var count int64
	err := g.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ? AND approved = ?", organizationID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, asServiceError(g.log, "is_approved_member", err)
	}
	return count > 0, nil
}

// isApprovedAdmin runs the guard query on db, which may be an open transaction.
func isApprovedAdmin(db *gorm.DB, organizationID, userID string) (bool, error) {
	organizationID = strings.TrimSpace(organizationID)
	userID = strings.TrimSpace(userID)
	if organizationID == "" || userID == "" {
		metrics.AdminGuardChecks.WithLabelValues("deny").Inc()
		return false, nil
	}

	var count int64
	err := db.Model(&models.Membership{}).
		Where("organization_id = ? AND user_id = ? AND role = ? AND approved = ?",
			organizationID, userID, models.RoleAdmin, true).
		Count(&count).Error
	if err != nil {
		metrics.AdminGuardChecks.WithLabelValues("error").Inc()
		return false, err
	}

	if count == 0 {
		metrics.AdminGuardChecks.WithLabelValues("deny").Inc()
		return false, nil
	}
	metrics.AdminGuardChecks.WithLabelValues("allow").Inc()
	return true, nil
}

func requireApprovedAdmin(db *gorm.DB, organizationID, userID string) error {
	ok, err := isApprovedAdmin(db, organizationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrNotAuthorized
	}
	return nil
}
