package services

import (
	"fmt"
	"net/http"

	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
	apperrors "github.com/ecohubkosova/ecohub/pkg/errors"
)

// ErrOrganizationNotFound indicates the requested organization does not exist.
var ErrOrganizationNotFound = apperrors.New(apperrors.ErrNotFound.Code, "Organization not found", http.StatusNotFound)

// lockOrganization bumps the organization's membership version. It must be the first
// statement of a membership transaction: the write holds the organization row (or, on
// SQLite, the database) until commit, so concurrent mutations of one organization run
// one after another and see each other's effects.
func lockOrganization(tx *gorm.DB, organizationID string) error {
	result := tx.Model(&models.Organization{}).
		Where("id = ?", organizationID).
		UpdateColumn("membership_version", gorm.Expr("membership_version + ?", 1))
	if result.Error != nil {
		return fmt.Errorf("lock organization: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrganizationNotFound
	}
	return nil
}

func countApprovedAdmins(tx *gorm.DB, organizationID string) (int64, error) {
	var count int64
	err := tx.Model(&models.Membership{}).
		Where("organization_id = ? AND role = ? AND approved = ?", organizationID, models.RoleAdmin, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count approved admins: %w", err)
	}
	return count, nil
}

// ensureAdminRemains is called before a mutation takes target out of the approved ADMIN
// set (demotion, suspension or removal). It fails with ErrLastAdmin when target is the
// only approved ADMIN left. Callers must hold the organization lock.
func ensureAdminRemains(tx *gorm.DB, target *models.Membership) error {
	if !target.IsApprovedAdmin() {
		return nil
	}

	count, err := countApprovedAdmins(tx, target.OrganizationID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return apperrors.ErrLastAdmin
	}
	return nil
}
