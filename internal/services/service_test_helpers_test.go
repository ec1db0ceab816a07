package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/database/testutil"
	"github.com/ecohubkosova/ecohub/internal/models"
	"github.com/ecohubkosova/ecohub/pkg/mail"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func seedOrganization(t *testing.T, db *gorm.DB, name string) *models.Organization {
	t.Helper()

	org := &models.Organization{Name: name}
	require.NoError(t, db.Create(org).Error)
	return org
}

func seedUser(t *testing.T, db *gorm.DB, id, email string) *models.User {
	t.Helper()

	user := &models.User{ID: id, Email: email, DisplayName: id}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedMember(t *testing.T, db *gorm.DB, orgID, userID string, role models.Role, approved bool) *models.Membership {
	t.Helper()

	membership := &models.Membership{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
		Approved:       approved,
	}
	require.NoError(t, db.Create(membership).Error)
	return membership
}

func countMembers(t *testing.T, db *gorm.DB, orgID string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.Membership{}).Where("organization_id = ?", orgID).Count(&count).Error)
	return count
}

func loadMember(t *testing.T, db *gorm.DB, orgID, userID string) models.Membership {
	t.Helper()

	var membership models.Membership
	require.NoError(t, db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&membership).Error)
	return membership
}

// manualClock is a settable clock for expiry tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *recordingMailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}
