package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultDailyCapacity is assigned to operators created without a capacity.
const DefaultDailyCapacity = 5

// Operator is the municipal worker profile that fulfils pickups.
type Operator struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	User          User      `gorm:"foreignKey:UserID"`
	Phone         string    `gorm:"column:phone;type:varchar(15);not null"`
	HiredOn       time.Time `gorm:"column:hired_on;type:date;not null"`
	DailyCapacity int       `gorm:"column:daily_capacity;not null;default:5"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (o *Operator) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.HiredOn.IsZero() {
		now := time.Now().UTC()
		o.HiredOn = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	if o.DailyCapacity == 0 {
		o.DailyCapacity = DefaultDailyCapacity
	}
	return nil
}
