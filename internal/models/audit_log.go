package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records one membership or invitation event for an organization.
type AuditLog struct {
	ID             string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrganizationID *string        `gorm:"type:varchar(36);index" json:"organization_id,omitempty"`
	ActorID        *string        `gorm:"type:varchar(64);index" json:"actor_id,omitempty"`
	Action         string         `gorm:"not null;index" json:"action"`
	Resource       string         `gorm:"index" json:"resource"`
	Result         string         `gorm:"not null" json:"result"`
	IPAddress      string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent      string         `json:"user_agent,omitempty"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	return assignID(&a.ID)
}
