package models

import "time"

// InvitationStatus tracks an invitation through its lifecycle.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationRevoked  InvitationStatus = "REVOKED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// Invitation offers membership of an organization to an email address. Only the SHA-256
// digest of the bearer token is stored.
type Invitation struct {
	BaseModel

	OrganizationID string           `gorm:"type:varchar(36);not null;index" json:"organization_id"`
	Email          string           `gorm:"type:varchar(320);not null;index" json:"email"`
	Role           Role             `gorm:"type:varchar(16);not null" json:"role"`
	TokenHash      string           `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Status         InvitationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	InvitedBy      string           `gorm:"type:varchar(64);not null" json:"invited_by"`
	ExpiresAt      *time.Time       `gorm:"index" json:"expires_at,omitempty"`
	AcceptedAt     *time.Time       `json:"accepted_at,omitempty"`
	AcceptedBy     *string          `gorm:"type:varchar(64)" json:"accepted_by,omitempty"`
	RevokedAt      *time.Time       `json:"revoked_at,omitempty"`

	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"organization,omitempty"`
}

// IsPending reports whether the invitation can still be redeemed or revoked.
func (i *Invitation) IsPending() bool {
	return i != nil && i.Status == InvitationPending
}

// ExpiredAt reports whether a pending invitation has outlived its expiry at now.
// Invitations without an expiry never expire.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i != nil && i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
