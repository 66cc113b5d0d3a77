package materials

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
)

type Service interface {
	List(ctx context.Context) ([]MaterialDTO, error)
	Create(ctx context.Context, actor policy.Actor, req CreateMaterialRequest) (*MaterialDTO, error)
	Delete(ctx context.Context, actor policy.Actor, code string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo   *Repository
	Tx     txRunner
	Outbox outbox.Emitter
}

type service struct {
	repo   *Repository
	tx     txRunner
	outbox outbox.Emitter
}

func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "materials repository required")
	}
	if p.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if p.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: p.Repo, tx: p.Tx, outbox: p.Outbox}, nil
}

func (s *service) List(ctx context.Context) ([]MaterialDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	out := make([]MaterialDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, FromModel(m))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, actor policy.Actor, req CreateMaterialRequest) (*MaterialDTO, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return nil, err
	}
	m := models.Material{
		Code:        strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
	}
	if m.Code == "" || len(m.Code) > 4 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid material code").
			WithDetails(map[string]string{"code": "must be 1 to 4 characters"})
	}
	if m.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material name is required").
			WithDetails(map[string]string{"name": "required"})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, &m); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "material %s already exists", m.Code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMaterialCreated,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   m.Code,
			Actor:         actor.Ref(),
			Data:          payloads.MaterialCreatedEvent{Code: m.Code, Name: m.Name},
		})
	})
	if err != nil {
		return nil, err
	}
	dto := FromModel(m)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor policy.Actor, code string) error {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return err
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := s.repo.WithTx(tx).Delete(ctx, code)
		if err != nil {
			if db.IsForeignKeyViolation(err, "") {
				return pkgerrors.Newf(pkgerrors.CodeConflict, "material %s is referenced by pickup requests", code)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete material")
		}
		if n == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMaterialDeleted,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   code,
			Actor:         actor.Ref(),
			Data:          payloads.MaterialDeletedEvent{Code: code},
		})
	})
}
