// Package idempotency dedupes event deliveries per consumer. A delivery is
// first claimed with a short lease while it is handled and only marked done
// for the full retention once the handler succeeded, so a worker that dies
// mid-handling does not swallow the event.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	defaultClaimTTL = 5 * time.Minute

	markerClaimed = "claimed"
	markerDone    = "done"
)

// Store is the slice of the redis client the manager needs.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type Manager struct {
	store    Store
	doneTTL  time.Duration
	claimTTL time.Duration
}

// NewManager keeps done markers for ttl (0 keeps them forever). Claims
// expire after five minutes or ttl, whichever is shorter.
func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	claim := defaultClaimTTL
	if ttl > 0 && ttl < claim {
		claim = ttl
	}
	return &Manager{store: store, doneTTL: ttl, claimTTL: claim}, nil
}

// Claim reports whether the caller now owns eventID for consumer. False
// means the event is done or being handled elsewhere.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.SetNX(ctx, key, markerClaimed, m.claimTTL)
}

// Complete turns a claim into a done marker.
func (m *Manager) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, key, markerDone, m.doneTTL)
}

// Release gives up a claim so a redelivery is handled again.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// Keys look like rm:idempotency:evt:<consumer>:<event_id>.
func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
