package operators

import (
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

// OperatorDTO is the staff console shape of an operator.
type OperatorDTO struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	HiredOn       string    `json:"hired_on"`
	DailyCapacity int       `json:"daily_capacity"`
	OpenLoad      int64     `json:"open_load"`
	CreatedAt     time.Time `json:"created_at"`
}

// CreateOperatorRequest creates the account and the operator profile together.
type CreateOperatorRequest struct {
	Username      string `json:"username" validate:"required,max=150"`
	Email         string `json:"email" validate:"required,email"`
	FirstName     string `json:"first_name" validate:"required,max=30"`
	LastName      string `json:"last_name" validate:"required,max=30"`
	Phone         string `json:"phone" validate:"required,max=15"`
	DailyCapacity int    `json:"daily_capacity" validate:"omitempty,min=1"`
}

// CreateOperatorResult returns the one-time password generated for the account.
type CreateOperatorResult struct {
	Operator     OperatorDTO `json:"operator"`
	TempPassword string      `json:"temp_password"`
}

// UpdateOperatorRequest patches the mutable operator fields.
type UpdateOperatorRequest struct {
	Phone         *string `json:"phone" validate:"omitempty,max=15"`
	DailyCapacity *int    `json:"daily_capacity" validate:"omitempty,min=1"`
}

func FromModel(o models.Operator, openLoad int64) OperatorDTO {
	return OperatorDTO{
		ID:            o.ID,
		UserID:        o.UserID,
		Username:      o.User.Username,
		FullName:      o.User.FullName(),
		Email:         o.User.Email,
		Phone:         o.Phone,
		HiredOn:       o.HiredOn.Format(time.DateOnly),
		DailyCapacity: o.DailyCapacity,
		OpenLoad:      openLoad,
		CreatedAt:     o.CreatedAt,
	}
}
