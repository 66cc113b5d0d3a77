package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

const cacheName = "stats:dashboard"

type MonthTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

type MaterialTotal struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Total int64  `json:"total"`
}

// Dashboard is the public metrics page. AverageLeadDays is nil when there
// are no requests.
type Dashboard struct {
	Total                int64            `json:"total"`
	ByStatus             map[string]int64 `json:"by_status"`
	PerMonth             []MonthTotal     `json:"per_month"`
	TopMaterials         []MaterialTotal  `json:"top_materials"`
	AverageLeadDays      *int64           `json:"average_lead_days"`
	AverageLeadDaysExact *decimal.Decimal `json:"average_lead_days_exact,omitempty"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(name string) string
}

type Service struct {
	repo  *Repository
	cache cache
	ttl   time.Duration
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the dashboard service. cache may be nil, then every
// call hits the database.
func NewService(repo *Repository, c cache, ttl time.Duration, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stats repository required")
	}
	return &Service{repo: repo, cache: c, ttl: ttl, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Dashboard serves the cached copy when present.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if cached, ok := s.fromCache(ctx); ok {
		return cached, nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the dashboard and stores it in the cache.
func (s *Service) Refresh(ctx context.Context) (*Dashboard, error) {
	d, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache == nil {
		return d, nil
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode dashboard")
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(cacheName), string(payload), s.ttl); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stats cache write failed")
	}
	return d, nil
}

// Compute runs every aggregation against the database.
func (s *Service) Compute(ctx context.Context) (*Dashboard, error) {
	perMonth, err := s.repo.PerMonth(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count requests per month")
	}
	top, err := s.repo.TopMaterials(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rank materials")
	}
	lead, err := s.repo.LeadDays(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average lead time")
	}
	byStatus, err := s.repo.ByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count requests by status")
	}
	for _, st := range enums.PickupStatuses() {
		if _, ok := byStatus[string(st)]; !ok {
			byStatus[string(st)] = 0
		}
	}

	d := &Dashboard{
		Total:        lead.Requests,
		ByStatus:     byStatus,
		PerMonth:     perMonth,
		TopMaterials: top,
		GeneratedAt:  s.now(),
	}
	if d.PerMonth == nil {
		d.PerMonth = []MonthTotal{}
	}
	if d.TopMaterials == nil {
		d.TopMaterials = []MaterialTotal{}
	}
	if avg, ok := AverageDays(lead.TotalDays, lead.Requests); ok {
		whole := avg.Floor().IntPart()
		d.AverageLeadDays = &whole
		d.AverageLeadDaysExact = &avg
	}
	return d, nil
}

// AverageDays divides totalDays over count. ok is false when count is zero.
func AverageDays(totalDays, count int64) (decimal.Decimal, bool) {
	if count <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(totalDays).DivRound(decimal.NewFromInt(count), 4), true
}

func (s *Service) fromCache(ctx context.Context) (*Dashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheName))
	if err != nil {
		if !redis.IsNil(err) && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "stats cache read failed")
		}
		return nil, false
	}
	var d Dashboard
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, false
	}
	return &d, true
}
