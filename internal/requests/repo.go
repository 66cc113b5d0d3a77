package requests

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/pagination"
)

// Repository defines persistence operations for pickup requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, req *models.PickupRequest) error
	Find(ctx context.Context, id int64) (*models.PickupRequest, error)
	FindForUpdate(ctx context.Context, id int64) (*models.PickupRequest, error)
	List(ctx context.Context, scope policy.Scope, filters AdminFilters, cursor *pagination.Cursor, limit int) ([]models.PickupRequest, error)
	LockBatch(ctx context.Context, ids []int64) ([]models.PickupRequest, error)
	AssignBatch(ctx context.Context, ids []int64, operatorID uuid.UUID, at time.Time) (int64, error)
	Update(ctx context.Context, id int64, changes map[string]any) error
	MaterialExists(ctx context.Context, code string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a requests repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, req *models.PickupRequest) error {
	return r.db.WithContext(ctx).Omit("Citizen", "Material", "Operator").Create(req).Error
}

func (r *repository) withAssociations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Citizen.User").
		Preload("Material").
		Preload("Operator.User")
}

// Find returns nil, nil when id does not exist.
func (r *repository) Find(ctx context.Context, id int64) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := r.withAssociations(ctx).Where("id = ?", id).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// FindForUpdate loads the bare row under a row lock.
func (r *repository) FindForUpdate(ctx context.Context, id int64) (*models.PickupRequest, error) {
	var req models.PickupRequest
	err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).Take(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns one page ordered by (requested_at DESC, id DESC).
func (r *repository) List(ctx context.Context, scope policy.Scope, filters AdminFilters, cursor *pagination.Cursor, limit int) ([]models.PickupRequest, error) {
	q := applyScope(r.withAssociations(ctx).Model(&models.PickupRequest{}), scope)
	q = applyFilters(q, filters)
	if cursor != nil {
		q = q.Where("requested_at < ? OR (requested_at = ? AND id < ?)", cursor.At, cursor.At, cursor.ID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.PickupRequest
	err := q.Order("requested_at DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

func applyScope(q *gorm.DB, scope policy.Scope) *gorm.DB {
	switch {
	case scope.All:
		return q
	case scope.OperatorID != uuid.Nil:
		return q.Where("operator_id = ?", scope.OperatorID)
	case scope.CitizenID != uuid.Nil:
		return q.Where("citizen_id = ?", scope.CitizenID)
	default:
		return q.Where("1 = 0")
	}
}

func applyFilters(q *gorm.DB, f AdminFilters) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if code := strings.ToUpper(strings.TrimSpace(f.MaterialCode)); code != "" {
		q = q.Where("material_code = ?", code)
	}
	if f.OperatorID != nil {
		q = q.Where("operator_id = ?", *f.OperatorID)
	} else if f.Unassigned {
		q = q.Where("operator_id IS NULL")
	}
	if f.From != nil {
		q = q.Where("requested_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("requested_at < ?", *f.To)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := db.ContainsPattern(term)
		cond := q.Session(&gorm.Session{NewDB: true}).
			Where("citizen_id IN (?)", q.Session(&gorm.Session{NewDB: true}).
				Table("citizens").
				Select("citizens.id").
				Joins("JOIN users ON users.id = citizens.user_id").
				Where("LOWER(users.username) LIKE ? ESCAPE '"+db.LikeEscape+"'", like)).
			Or("material_code IN (?)", q.Session(&gorm.Session{NewDB: true}).
				Table("materials").
				Select("code").
				Where("LOWER(name) LIKE ? ESCAPE '"+db.LikeEscape+"'", like))
		if id, ok := parseRequestCode(term); ok {
			cond = cond.Or("id = ?", id)
		}
		q = q.Where(cond)
	}
	return q
}

// parseRequestCode accepts "sr-0042" or "42".
func parseRequestCode(term string) (int64, bool) {
	term = strings.TrimPrefix(strings.ToLower(term), "sr-")
	id, err := strconv.ParseInt(term, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// LockBatch loads and locks every existing row among ids, ordered by id so
// concurrent batches lock in the same order.
func (r *repository) LockBatch(ctx context.Context, ids []int64) ([]models.PickupRequest, error) {
	var rows []models.PickupRequest
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// AssignBatch sets the operator and forces EN_ROUTE in one statement.
func (r *repository) AssignBatch(ctx context.Context, ids []int64, operatorID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"operator_id": operatorID,
			"status":      enums.PickupStatusEnRoute,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) Update(ctx context.Context, id int64, changes map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Where("id = ?", id).
		Updates(changes).Error
}

func (r *repository) MaterialExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Material{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}
