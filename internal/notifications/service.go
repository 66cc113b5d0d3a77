package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/flash"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

type lookup interface {
	CitizenUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	OperatorUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type pusher interface {
	Push(ctx context.Context, userID uuid.UUID, msgs ...types.Message) error
}

// Notifier turns pickup events into flash messages for the affected accounts.
type Notifier struct {
	lookup lookup
	flash  pusher
}

func NewNotifier(l lookup, p pusher) (*Notifier, error) {
	if l == nil {
		return nil, errors.New("profile lookup required")
	}
	if p == nil {
		return nil, errors.New("flash queue required")
	}
	return &Notifier{lookup: l, flash: p}, nil
}

// Assigned tells each owning citizen their request is on its way and gives
// the operator one summary message for the batch.
func (n *Notifier) Assigned(ctx context.Context, evt payloads.PickupRequestAssignedEvent) error {
	citizenIDs := make([]uuid.UUID, 0, len(evt.Requests))
	for _, r := range evt.Requests {
		citizenIDs = append(citizenIDs, r.CitizenID)
	}
	users, err := n.lookup.CitizenUsers(ctx, citizenIDs)
	if err != nil {
		return fmt.Errorf("resolve citizens: %w", err)
	}
	for _, r := range evt.Requests {
		userID, ok := users[r.CitizenID]
		if !ok {
			continue
		}
		msg := flash.New(flash.LevelInfo, fmt.Sprintf("your request %s has been assigned and is on its way", r.Code))
		if err := n.flash.Push(ctx, userID, msg); err != nil {
			return fmt.Errorf("notify citizen: %w", err)
		}
	}

	operatorUser, err := n.lookup.OperatorUser(ctx, evt.OperatorID)
	if err != nil {
		return fmt.Errorf("resolve operator: %w", err)
	}
	if operatorUser == uuid.Nil || len(evt.Requests) == 0 {
		return nil
	}
	text := "1 new request assigned to you"
	if len(evt.Requests) != 1 {
		text = fmt.Sprintf("%d new requests assigned to you", len(evt.Requests))
	}
	if err := n.flash.Push(ctx, operatorUser, flash.New(flash.LevelInfo, text)); err != nil {
		return fmt.Errorf("notify operator: %w", err)
	}
	return nil
}

// StatusChanged tells the owning citizen about the new state.
func (n *Notifier) StatusChanged(ctx context.Context, evt payloads.PickupRequestStatusChangedEvent) error {
	users, err := n.lookup.CitizenUsers(ctx, []uuid.UUID{evt.CitizenID})
	if err != nil {
		return fmt.Errorf("resolve citizen: %w", err)
	}
	userID, ok := users[evt.CitizenID]
	if !ok {
		return nil
	}
	level := flash.LevelInfo
	if evt.To == enums.PickupStatusCompleted {
		level = flash.LevelSuccess
	}
	text := fmt.Sprintf("your request %s is now %s", evt.Code, strings.ToLower(evt.To.Label()))
	if err := n.flash.Push(ctx, userID, flash.New(level, text)); err != nil {
		return fmt.Errorf("notify citizen: %w", err)
	}
	return nil
}
