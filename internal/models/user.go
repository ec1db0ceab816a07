package models

import "time"

// User mirrors the identity supplied by the authentication provider. Rows are refreshed
// on authenticated requests and only used for display joins. An address may appear under
// several subjects when the provider reassigns it.
type User struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email       string    `gorm:"type:varchar(320);index:idx_users_email_lookup;not null" json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
