package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Citizen is the requester profile attached one-to-one to a user.
type Citizen struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	User         User      `gorm:"foreignKey:UserID"`
	Address      string    `gorm:"column:address;type:varchar(200);not null"`
	Phone        string    `gorm:"column:phone;type:varchar(15);not null"`
	RegisteredAt time.Time `gorm:"column:registered_at;autoCreateTime"`
}

func (c *Citizen) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
