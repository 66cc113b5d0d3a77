package requests

import (
	"context"
	"io"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/operators"
	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/pagination"
)

// Messages queued for the next page after a successful action.
const (
	MsgCreated = "request created successfully"
	MsgUpdated = "request updated successfully"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the pickup request lifecycle. Methods returning a
// *policy.Decision report a blocked action through it: the caller
// redirects and shows the message, nothing was written.
type Service interface {
	Create(ctx context.Context, actor policy.Actor, in CreateRequestInput) (*RequestDTO, *policy.Decision, error)
	Get(ctx context.Context, actor policy.Actor, id int64) (*RequestDTO, error)
	List(ctx context.Context, actor policy.Actor, params ListParams) (*ListResult, error)
	AdminList(ctx context.Context, actor policy.Actor, filters AdminFilters, limit int, cursor string) (*ListResult, error)
	EditForm(ctx context.Context, actor policy.Actor, id int64) (*EditForm, *policy.Decision, error)
	OperatorUpdate(ctx context.Context, actor policy.Actor, id int64, in OperatorUpdateInput) (*RequestDTO, *policy.Decision, error)
	BulkAssign(ctx context.Context, actor policy.Actor, in BulkAssignInput) (*BulkAssignResult, error)
	Export(ctx context.Context, actor policy.Actor, filters AdminFilters, w io.Writer) error
}

type ServiceParams struct {
	Repo      Repository
	Operators *operators.Repository
	Tx        txRunner
	Outbox    outbox.Emitter
	Metrics   *metrics.PickupMetrics
	Logger    *logger.Logger
	// AllowReopen lets bulk assignment move COMPLETED and CANCELLED
	// requests back to EN_ROUTE.
	AllowReopen bool
	Now         func() time.Time
}

type service struct {
	repo        Repository
	operators   *operators.Repository
	tx          txRunner
	outbox      outbox.Emitter
	metrics     *metrics.PickupMetrics
	logg        *logger.Logger
	allowReopen bool
	now         func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "requests repository required")
	case p.Operators == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "operators repository required")
	case p.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:        p.Repo,
		operators:   p.Operators,
		tx:          p.Tx,
		outbox:      p.Outbox,
		metrics:     p.Metrics,
		logg:        p.Logger,
		allowReopen: p.AllowReopen,
		now:         now,
	}, nil
}

func (s *service) Create(ctx context.Context, actor policy.Actor, in CreateRequestInput) (*RequestDTO, *policy.Decision, error) {
	if decision := policy.CanCreate(actor); !decision.Allowed() {
		s.metrics.IncRejected("create", "blocked")
		return nil, &decision, nil
	}
	citizenID, _ := actor.CitizenID()

	code := strings.ToUpper(strings.TrimSpace(in.MaterialCode))
	fields := map[string]string{}
	if code == "" {
		fields["material"] = "required"
	}
	if in.Quantity < 1 {
		fields["quantity"] = "must be at least 1"
	}
	estimated, err := time.Parse(time.DateOnly, strings.TrimSpace(in.EstimatedDate))
	if err != nil {
		fields["estimated_date"] = "must be a date in YYYY-MM-DD format"
	}
	if len(fields) > 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid request").WithDetails(fields)
	}

	req := models.PickupRequest{
		CitizenID:     citizenID,
		MaterialCode:  code,
		Quantity:      in.Quantity,
		EstimatedDate: estimated,
		Status:        enums.PickupStatusPending,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.MaterialExists(ctx, code)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check material")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid request").
				WithDetails(map[string]string{"material": "select a valid choice"})
		}
		if err := repo.Create(ctx, &req); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupRequestCreated,
			AggregateType: enums.AggregatePickupRequest,
			AggregateID:   req.Code(),
			Actor:         actor.Ref(),
			Data: payloads.PickupRequestCreatedEvent{
				RequestID:     req.ID,
				Code:          req.Code(),
				CitizenID:     req.CitizenID,
				MaterialCode:  req.MaterialCode,
				Quantity:      req.Quantity,
				EstimatedDate: estimated.Format(time.DateOnly),
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	s.metrics.IncCreated(code)

	dto, err := s.load(ctx, req.ID)
	return dto, nil, err
}

func (s *service) Get(ctx context.Context, actor policy.Actor, id int64) (*RequestDTO, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.CanView(actor, *req).Err(); err != nil {
		s.metrics.IncRejected("view", "forbidden")
		return nil, err
	}
	dto := FromModel(*req)
	return &dto, nil
}

func (s *service) List(ctx context.Context, actor policy.Actor, params ListParams) (*ListResult, error) {
	scope := policy.ListScope(actor)
	if scope.Empty() {
		return &ListResult{Items: []RequestDTO{}}, nil
	}
	return s.page(ctx, scope, AdminFilters{Status: params.Status}, params.Limit, params.Cursor)
}

func (s *service) AdminList(ctx context.Context, actor policy.Actor, filters AdminFilters, limit int, cursor string) (*ListResult, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		return nil, err
	}
	return s.page(ctx, policy.ListScope(actor), filters, limit, cursor)
}

func (s *service) page(ctx context.Context, scope policy.Scope, filters AdminFilters, limit int, rawCursor string) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	size := pagination.NormalizeLimit(limit)
	rows, err := s.repo.List(ctx, scope, filters, cursor, pagination.LimitWithBuffer(size))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list requests")
	}

	rows, next := pagination.Trim(rows, size, func(r models.PickupRequest) pagination.Cursor {
		return pagination.Cursor{At: r.RequestedAt, ID: r.ID}
	})
	out := &ListResult{Items: make([]RequestDTO, 0, len(rows)), NextCursor: next}
	for _, r := range rows {
		out.Items = append(out.Items, FromModel(r))
	}
	return out, nil
}

func (s *service) EditForm(ctx context.Context, actor policy.Actor, id int64) (*EditForm, *policy.Decision, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	decision := policy.CanEdit(actor, *req)
	switch decision.Verdict {
	case policy.Forbid:
		s.metrics.IncRejected("edit", "forbidden")
		return nil, nil, decision.Err()
	case policy.Block:
		s.metrics.IncRejected("edit", "blocked")
		return nil, &decision, nil
	}
	return &EditForm{Request: FromModel(*req), Choices: operatorChoices(req.Status)}, nil, nil
}

func (s *service) OperatorUpdate(ctx context.Context, actor policy.Actor, id int64, in OperatorUpdateInput) (*RequestDTO, *policy.Decision, error) {
	var (
		blocked *policy.Decision
		from    enums.PickupStatus
		target  enums.PickupStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		req, err := repo.FindForUpdate(ctx, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
		}
		if req == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}

		decision := policy.CanEdit(actor, *req)
		switch decision.Verdict {
		case policy.Forbid:
			s.metrics.IncRejected("edit", "forbidden")
			return decision.Err()
		case policy.Block:
			s.metrics.IncRejected("edit", "blocked")
			blocked = &decision
			return nil
		}

		// the form is only read once the caller may edit this request
		parsed, perr := enums.ParsePickupStatus(in.Status)
		if perr != nil || parsed == enums.PickupStatusPending {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
				WithDetails(map[string]string{"status": "select a valid choice"})
		}
		target = parsed

		from = req.Status
		if from == enums.PickupStatusPending || !from.CanTransitionTo(target) {
			s.metrics.IncRejected("edit", "state_conflict")
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move request from %s to %s", from, target).
				WithDetails(map[string]string{"from": string(from), "to": string(target)})
		}

		now := s.now()
		changes := map[string]any{
			"status":     target,
			"comments":   strings.TrimSpace(in.Comments),
			"updated_at": now,
		}
		var completedAt *time.Time
		// A reopened request is stamped again when it is completed again.
		if target == enums.PickupStatusCompleted && from != enums.PickupStatusCompleted && (req.CompletedAt == nil || s.allowReopen) {
			completedAt = &now
			changes["completed_at"] = now
		}
		if err := repo.Update(ctx, req.ID, changes); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update request")
		}
		if from == target {
			return nil
		}

		operatorID, _ := actor.OperatorID()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupRequestStatusChanged,
			AggregateType: enums.AggregatePickupRequest,
			AggregateID:   req.Code(),
			Actor:         actor.Ref(),
			OccurredAt:    now,
			Data: payloads.PickupRequestStatusChangedEvent{
				RequestID:   req.ID,
				Code:        req.Code(),
				CitizenID:   req.CitizenID,
				OperatorID:  operatorID,
				From:        from,
				To:          target,
				CompletedAt: completedAt,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}
	if blocked != nil {
		return nil, blocked, nil
	}
	s.metrics.IncTransition(string(from), string(target))

	dto, err := s.load(ctx, id)
	return dto, nil, err
}

func (s *service) find(ctx context.Context, id int64) (*models.PickupRequest, error) {
	req, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load request")
	}
	if req == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
	}
	return req, nil
}

func (s *service) load(ctx context.Context, id int64) (*RequestDTO, error) {
	req, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*req)
	return &dto, nil
}
