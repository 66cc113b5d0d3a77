package materials

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
)

// Repository persists materials.
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

// List returns every material ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Material, error) {
	var rows []models.Material
	err := r.db.WithContext(ctx).Order("name ASC").Order("code ASC").Find(&rows).Error
	return rows, err
}

// Find returns nil, nil when code does not exist.
func (r *Repository) Find(ctx context.Context, code string) (*models.Material, error) {
	var m models.Material
	err := r.db.WithContext(ctx).Where("code = ?", code).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) Create(ctx context.Context, m *models.Material) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// Delete removes code. A material still referenced by requests is rejected
// by the database.
func (r *Repository) Delete(ctx context.Context, code string) (int64, error) {
	res := r.db.WithContext(ctx).Where("code = ?", code).Delete(&models.Material{})
	return res.RowsAffected, res.Error
}
