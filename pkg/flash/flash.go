// Package flash keeps per-user read-once notices in Redis. Notices are
// queued by one request and returned, then forgotten, by the next read.
package flash

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

const defaultTTL = 24 * time.Hour

type store interface {
	Push(ctx context.Context, key string, ttl time.Duration, values ...string) error
	Drain(ctx context.Context, key string) ([]string, error)
	FlashKey(userID string) string
}

// Queue pushes and drains notices.
type Queue struct {
	store store
	ttl   time.Duration
}

func NewQueue(s store, ttl time.Duration) (*Queue, error) {
	if s == nil {
		return nil, errors.New("flash store is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Queue{store: s, ttl: ttl}, nil
}

// New builds a message value.
func New(level Level, text string) types.Message {
	return types.Message{Level: string(level), Text: text}
}

// Push queues msgs for userID. Anonymous callers have no queue.
func (q *Queue) Push(ctx context.Context, userID uuid.UUID, msgs ...types.Message) error {
	if q == nil || userID == uuid.Nil || len(msgs) == 0 {
		return nil
	}
	values := make([]string, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, string(raw))
	}
	return q.store.Push(ctx, q.store.FlashKey(userID.String()), q.ttl, values...)
}

// Drain returns and clears every queued notice of userID, oldest first.
func (q *Queue) Drain(ctx context.Context, userID uuid.UUID) ([]types.Message, error) {
	out := []types.Message{}
	if q == nil || userID == uuid.Nil {
		return out, nil
	}
	values, err := q.store.Drain(ctx, q.store.FlashKey(userID.String()))
	if err != nil {
		return nil, err
	}
	for _, v := range values {
		var m types.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}
