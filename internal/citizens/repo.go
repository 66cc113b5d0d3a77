package citizens

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

// Repository persists citizen profiles.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, userID uuid.UUID, address, phone string) (*models.Citizen, error) {
	c := &models.Citizen{UserID: userID, Address: address, Phone: phone}
	if err := r.db.WithContext(ctx).Omit("User").Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// FindByUserID loads the profile with its account.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Citizen, error) {
	var c models.Citizen
	if err := r.db.WithContext(ctx).Preload("User").Where("user_id = ?", userID).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}
