package operators

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/internal/users"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/security"
)

const tempPasswordLength = 14

// Service manages operators from the staff console.
type Service interface {
	List(ctx context.Context, actor policy.Actor) ([]OperatorDTO, error)
	Create(ctx context.Context, actor policy.Actor, req CreateOperatorRequest) (*CreateOperatorResult, error)
	Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateOperatorRequest) (*OperatorDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo      *Repository
	Users     *users.Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Passwords config.PasswordConfig
}

type service struct {
	repo      *Repository
	users     *users.Repository
	tx        txRunner
	outbox    outbox.Emitter
	passwords config.PasswordConfig
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "operators repository required")
	case p.Users == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: p.Repo, users: p.Users, tx: p.Tx, outbox: p.Outbox, passwords: p.Passwords}, nil
}

func (s *service) List(ctx context.Context, actor policy.Actor) ([]OperatorDTO, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list operators")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, o := range rows {
		ids = append(ids, o.ID)
	}
	load, err := s.repo.OpenLoad(ctx, ids...)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count operator load")
	}
	out := make([]OperatorDTO, 0, len(rows))
	for _, o := range rows {
		out = append(out, FromModel(o, load[o.ID]))
	}
	return out, nil
}

func (s *service) Create(ctx context.Context, actor policy.Actor, req CreateOperatorRequest) (*CreateOperatorResult, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return nil, err
	}
	if req.DailyCapacity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily capacity must be at least 1").
			WithDetails(map[string]string{"daily_capacity": "min"})
	}

	password, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	hash, err := security.HashPassword(password, s.passwords)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created models.Operator
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := s.users.WithTx(tx)
		usernameTaken, emailTaken, err := userRepo.Taken(ctx, req.Username, req.Email)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check account")
		}
		if usernameTaken || emailTaken {
			details := map[string]string{}
			if usernameTaken {
				details["username"] = "taken"
			}
			if emailTaken {
				details["email"] = "taken"
			}
			return pkgerrors.New(pkgerrors.CodeConflict, "account already exists").WithDetails(details)
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hash,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "account already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
		}

		created = models.Operator{
			UserID:        user.ID,
			Phone:         strings.TrimSpace(req.Phone),
			DailyCapacity: req.DailyCapacity,
		}
		if err := s.repo.WithTx(tx).Create(ctx, &created); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create operator")
		}
		created.User = *user

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOperatorCreated,
			AggregateType: enums.AggregateOperator,
			AggregateID:   created.ID.String(),
			Actor:         actor.Ref(),
			Data: payloads.OperatorCreatedEvent{
				OperatorID:    created.ID,
				UserID:        user.ID,
				DailyCapacity: created.DailyCapacity,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreateOperatorResult{Operator: FromModel(created, 0), TempPassword: password}, nil
}

func (s *service) Update(ctx context.Context, actor policy.Actor, id uuid.UUID, req UpdateOperatorRequest) (*OperatorDTO, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if req.Phone != nil {
		changes["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.DailyCapacity != nil {
		if *req.DailyCapacity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "daily capacity must be at least 1").
				WithDetails(map[string]string{"daily_capacity": "min"})
		}
		changes["daily_capacity"] = *req.DailyCapacity
	}
	if len(changes) > 0 {
		found, err := s.repo.Update(ctx, id, changes)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update operator")
		}
		if !found {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "operator not found")
		}
	}

	o, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load operator")
	}
	if o == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "operator not found")
	}
	load, err := s.repo.OpenLoad(ctx, o.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count operator load")
	}
	dto := FromModel(*o, load[o.ID])
	return &dto, nil
}
