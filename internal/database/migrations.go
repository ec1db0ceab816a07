package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/models"
)

// pendingInvitationIndex keeps at most one PENDING invitation per (organization, email).
// MySQL has no partial indexes; there the invitation service's transactional check applies alone.
const pendingInvitationIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_pending
	ON invitations (organization_id, email) WHERE status = 'PENDING'`

// legacyUserEmailIndex was unique; the provider may hand the same address to a new subject.
const legacyUserEmailIndex = "idx_users_email"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Membership{},
		&models.Invitation{},
		&models.AuditLog{},
	); err != nil {
		return err
	}

	if db.Migrator().HasIndex(&models.User{}, legacyUserEmailIndex) {
		if err := db.Migrator().DropIndex(&models.User{}, legacyUserEmailIndex); err != nil {
			return fmt.Errorf("drop unique user email index: %w", err)
		}
	}

	switch db.Dialector.Name() {
	case "sqlite", "postgres":
		if err := db.Exec(pendingInvitationIndex).Error; err != nil {
			return fmt.Errorf("create pending invitation index: %w", err)
		}
	}
	return nil
}
