package operators

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

// Repository persists operator profiles.
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

// List returns operators with their accounts, ordered by username.
func (r *Repository) List(ctx context.Context) ([]models.Operator, error) {
	var rows []models.Operator
	err := r.db.WithContext(ctx).
		Joins("User").
		Order(clause.OrderByColumn{Column: clause.Column{Table: "User", Name: "username"}}).
		Find(&rows).Error
	return rows, err
}

// Find returns nil, nil when id does not exist.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	var o models.Operator
	err := r.db.WithContext(ctx).Joins("User").Where("operators.id = ?", id).Take(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repository) Create(ctx context.Context, o *models.Operator) error {
	return r.db.WithContext(ctx).Omit("User").Create(o).Error
}

// Update writes the given columns and reports whether the row exists.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, changes map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Operator{}).Where("id = ?", id).Updates(changes)
	return res.RowsAffected > 0, res.Error
}

// OpenLoad counts the EN_ROUTE requests currently held by each operator.
func (r *Repository) OpenLoad(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]int64, error) {
	out := make(map[uuid.UUID]int64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []struct {
		OperatorID uuid.UUID
		Total      int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Select("operator_id, COUNT(*) AS total").
		Where("operator_id IN ? AND status = ?", ids, enums.PickupStatusEnRoute).
		Group("operator_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OperatorID] = row.Total
	}
	return out, nil
}
