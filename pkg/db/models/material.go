package models

import (
	"fmt"
	"time"
)

// Material is reference data for the recyclable being collected.
type Material struct {
	Code        string    `gorm:"column:code;type:varchar(4);primaryKey"`
	Name        string    `gorm:"column:name;type:varchar(50);not null"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Label renders the material as "name (code)".
func (m Material) Label() string {
	return fmt.Sprintf("%s (%s)", m.Name, m.Code)
}
