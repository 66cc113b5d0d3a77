package stats

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

const topMaterialsLimit = 5

// Repository runs the read-only aggregations behind the dashboard.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// PerMonth counts requests by calendar month of creation, oldest first.
func (r *Repository) PerMonth(ctx context.Context) ([]MonthTotal, error) {
	bucket := db.MonthBucket(r.db, "requested_at")
	var rows []MonthTotal
	err := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Select(bucket + " AS month, COUNT(*) AS total").
		Group(bucket).
		Order("month ASC").
		Scan(&rows).Error
	return rows, err
}

// TopMaterials returns the most requested materials, ties by name.
func (r *Repository) TopMaterials(ctx context.Context) ([]MaterialTotal, error) {
	var rows []MaterialTotal
	err := r.db.WithContext(ctx).
		Table("pickup_requests").
		Select("materials.code AS code, materials.name AS name, COUNT(pickup_requests.id) AS total").
		Joins("JOIN materials ON materials.code = pickup_requests.material_code").
		Group("materials.code, materials.name").
		Order("total DESC").
		Order("materials.name ASC").
		Limit(topMaterialsLimit).
		Scan(&rows).Error
	return rows, err
}

type leadDays struct {
	TotalDays int64
	Requests  int64
}

// LeadDays sums the whole days between creation and the estimated date.
func (r *Repository) LeadDays(ctx context.Context) (leadDays, error) {
	var out leadDays
	err := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Select("COALESCE(SUM(" + db.DaysBetween(r.db, "requested_at", "estimated_date") + "), 0) AS total_days, COUNT(*) AS requests").
		Scan(&out).Error
	return out, err
}

// ByStatus counts requests per lifecycle state.
func (r *Repository) ByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// PendingBefore counts requests still PENDING that were created before cutoff.
func (r *Repository) PendingBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.PickupRequest{}).
		Where("status = ? AND requested_at < ?", enums.PickupStatusPending, cutoff).
		Count(&n).Error
	return n, err
}
