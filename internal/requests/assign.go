package requests

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/policy"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
)

// BulkAssign hands every selected request to one operator and moves it to
// EN_ROUTE. The batch is all or nothing.
func (s *service) BulkAssign(ctx context.Context, actor policy.Actor, in BulkAssignInput) (*BulkAssignResult, error) {
	if err := policy.CanAssign(actor).Err(); err != nil {
		s.metrics.IncRejected("assign", "forbidden")
		return nil, err
	}
	ids := uniqueIDs(in.RequestIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select at least one request").
			WithDetails(map[string]string{"request_ids": "required"})
	}

	result := &BulkAssignResult{RequestIDs: ids}
	var previous []models.PickupRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		opRepo := s.operators.WithTx(tx)
		operator, err := opRepo.Find(ctx, in.OperatorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load operator")
		}
		if operator == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "operator not found")
		}

		repo := s.repo.WithTx(tx)
		rows, err := repo.LockBatch(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock requests")
		}
		if missing := missingIDs(ids, rows); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "some requests do not exist").
				WithDetails(map[string]any{"missing_ids": missing})
		}
		if !s.allowReopen {
			var terminal []int64
			for _, r := range rows {
				if r.Status.IsTerminal() {
					terminal = append(terminal, r.ID)
				}
			}
			if len(terminal) > 0 {
				s.metrics.IncRejected("assign", "state_conflict")
				return pkgerrors.New(pkgerrors.CodeStateConflict, "finished requests cannot be reassigned").
					WithDetails(map[string]any{"terminal_ids": terminal})
			}
		}

		now := s.now()
		updated, err := repo.AssignBatch(ctx, ids, operator.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign requests")
		}
		if int(updated) != len(ids) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "assigned %d of %d requests", updated, len(ids))
		}

		assigned := make([]payloads.AssignedRequest, 0, len(rows))
		for _, r := range rows {
			assigned = append(assigned, payloads.AssignedRequest{
				RequestID:      r.ID,
				Code:           r.Code(),
				CitizenID:      r.CitizenID,
				PreviousStatus: r.Status,
			})
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickupRequestAssigned,
			AggregateType: enums.AggregateOperator,
			AggregateID:   operator.ID.String(),
			Actor:         actor.Ref(),
			OccurredAt:    now,
			Data: payloads.PickupRequestAssignedEvent{
				OperatorID: operator.ID,
				Requests:   assigned,
				AssignedAt: now,
			},
		}); err != nil {
			return err
		}

		load, err := opRepo.OpenLoad(ctx, operator.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count operator load")
		}

		previous = rows
		result.Updated = int(updated)
		result.Operator = partyFromUser(operator.ID, operator.User)
		result.OpenLoad = load[operator.ID]
		result.Capacity = operator.DailyCapacity
		result.OverCapacity = result.OpenLoad > int64(operator.DailyCapacity)
		result.AssignedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddAssigned(result.Updated)
	for _, r := range previous {
		s.metrics.IncTransition(string(r.Status), string(enums.PickupStatusEnRoute))
	}
	result.Message = fmt.Sprintf("%d requests assigned to operator %s", result.Updated, result.Operator.Username)
	if result.OverCapacity && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"operator_id": result.Operator.ID.String(),
			"open_load":   result.OpenLoad,
			"capacity":    result.Capacity,
		})
		s.logg.Warn(logCtx, "operator assigned above daily capacity")
	}
	return result, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func missingIDs(want []int64, rows []models.PickupRequest) []int64 {
	found := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		found[r.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range want {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
