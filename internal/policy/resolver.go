package policy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
)

// Resolver turns an authenticated user id into an Actor.
type Resolver interface {
	Resolve(ctx context.Context, userID uuid.UUID) (Actor, error)
}

type dbResolver struct {
	db *gorm.DB
}

// NewResolver builds a Resolver reading users and their profiles.
func NewResolver(db *gorm.DB) (Resolver, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	return &dbResolver{db: db}, nil
}

// Resolve applies the precedence staff, operator, citizen, member.
func (r *dbResolver) Resolve(ctx context.Context, userID uuid.UUID) (Actor, error) {
	if userID == uuid.Nil {
		return Anonymous(), nil
	}
	conn := r.db.WithContext(ctx)

	var user models.User
	if err := conn.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "account not found")
		}
		return Anonymous(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if !user.IsActive {
		return Anonymous(), pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}
	if user.IsStaff {
		return Staff(user.ID, user.Username), nil
	}

	var operator models.Operator
	err := conn.Select("id").Where("user_id = ?", user.ID).Take(&operator).Error
	switch {
	case err == nil:
		return Operator(user.ID, operator.ID, user.Username), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Anonymous(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load operator profile")
	}

	var citizen models.Citizen
	err = conn.Select("id").Where("user_id = ?", user.ID).Take(&citizen).Error
	switch {
	case err == nil:
		return Citizen(user.ID, citizen.ID, user.Username), nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Anonymous(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load citizen profile")
	}
	return Member(user.ID, user.Username), nil
}
