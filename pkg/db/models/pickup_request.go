package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

// PickupRequest is a citizen's request to collect a recyclable material.
type PickupRequest struct {
	ID            int64              `gorm:"column:id;primaryKey;autoIncrement"`
	CitizenID     uuid.UUID          `gorm:"column:citizen_id;type:uuid;not null;index"`
	Citizen       *Citizen           `gorm:"foreignKey:CitizenID"`
	MaterialCode  string             `gorm:"column:material_code;type:varchar(4);not null;index"`
	Material      *Material          `gorm:"foreignKey:MaterialCode;references:Code"`
	Quantity      int                `gorm:"column:quantity;not null"`
	RequestedAt   time.Time          `gorm:"column:requested_at;autoCreateTime;<-:create"`
	EstimatedDate time.Time          `gorm:"column:estimated_date;type:date;not null"`
	Status        enums.PickupStatus `gorm:"column:status;type:varchar(10);not null;default:PENDING"`
	OperatorID    *uuid.UUID         `gorm:"column:operator_id;type:uuid;index"`
	Operator      *Operator          `gorm:"foreignKey:OperatorID"`
	Comments      string             `gorm:"column:comments;type:text;not null;default:''"`
	CompletedAt   *time.Time         `gorm:"column:completed_at"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// Code is the display reference citizens see, e.g. SR-0042.
func (p PickupRequest) Code() string {
	return FormatRequestCode(p.ID)
}

// FormatRequestCode renders a request id as its display reference.
func FormatRequestCode(id int64) string {
	return fmt.Sprintf("SR-%04d", id)
}
