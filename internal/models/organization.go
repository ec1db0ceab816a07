package models

// Organization is a directory entry that members belong to.
type Organization struct {
	BaseModel

	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `json:"description"`
	Website     string `json:"website,omitempty"`
	City        string `json:"city,omitempty"`

	// MembershipVersion is bumped by every membership mutation. The bump runs first inside the
	// mutating transaction so concurrent changes to one organization serialize on this row.
	MembershipVersion int64 `gorm:"not null;default:0" json:"-"`
}
