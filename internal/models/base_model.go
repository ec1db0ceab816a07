package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BaseModel provides the identifier and timestamps shared by persistent models.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns a time-ordered UUID when the caller left ID empty.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	return assignID(&m.ID)
}

func assignID(id *string) error {
	if *id != "" {
		return nil
	}
	generated, err := uuid.NewV7()
	if err != nil {
		return err
	}
	*id = generated.String()
	return nil
}
