package notifications

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

// Repository maps profile ids carried by events to the account ids that
// own flash queues.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CitizenUsers returns citizen id to user id for every id that exists.
func (r *Repository) CitizenUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Citizen
	if err := r.db.WithContext(ctx).Select("id", "user_id").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.ID] = c.UserID
	}
	return out, nil
}

// OperatorUser returns the account behind an operator profile, or uuid.Nil
// when the operator no longer exists.
func (r *Repository) OperatorUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var rows []models.Operator
	if err := r.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return uuid.Nil, err
	}
	if len(rows) == 0 {
		return uuid.Nil, nil
	}
	return rows[0].UserID, nil
}
