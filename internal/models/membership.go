package models

// Membership binds one user to one organization. The (organization_id, user_id) pair is unique.
type Membership struct {
	BaseModel

	OrganizationID string `gorm:"type:varchar(36);not null;uniqueIndex:idx_memberships_org_user;index:idx_memberships_org_role" json:"organization_id"`
	UserID         string `gorm:"type:varchar(64);not null;uniqueIndex:idx_memberships_org_user" json:"user_id"`
	Role           Role   `gorm:"type:varchar(16);not null;index:idx_memberships_org_role" json:"role"`
	Approved       bool   `gorm:"not null" json:"approved"`

	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"organization,omitempty"`
}

// IsApprovedAdmin reports whether the membership counts toward the last-admin invariant.
func (m *Membership) IsApprovedAdmin() bool {
	return m != nil && m.Approved && m.Role == RoleAdmin
}
