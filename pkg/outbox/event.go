package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

const envelopeVersion = 1

// ActorRef identifies who caused the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Kind   string    `json:"kind,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	Type       string          `json:"type,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is what services hand to Emit inside their transaction.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   string
	Actor         *ActorRef
	Data          any
	OccurredAt    time.Time
}

func (e DomainEvent) validate() error {
	var errs []error
	if !e.EventType.IsValid() {
		errs = append(errs, fmt.Errorf("unknown event type %q", e.EventType))
	}
	if !e.AggregateType.IsValid() {
		errs = append(errs, fmt.Errorf("unknown aggregate type %q", e.AggregateType))
	}
	if strings.TrimSpace(e.AggregateID) == "" {
		errs = append(errs, errors.New("aggregate id required"))
	}
	return errors.Join(errs...)
}

// Row renders the event as an outbox row with a fresh event id.
func (e DomainEvent) Row() (models.OutboxEvent, error) {
	if err := e.validate(); err != nil {
		return models.OutboxEvent{}, err
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return models.OutboxEvent{}, fmt.Errorf("encode %s data: %w", e.EventType, err)
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	id := uuid.New()
	payload, err := json.Marshal(PayloadEnvelope{
		Version:    envelopeVersion,
		EventID:    id.String(),
		Type:       string(e.EventType),
		OccurredAt: occurred.UTC(),
		Actor:      e.Actor,
		Data:       data,
	})
	if err != nil {
		return models.OutboxEvent{}, err
	}
	return models.OutboxEvent{
		ID:            id,
		EventType:     e.EventType,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Payload:       payload,
	}, nil
}

// Emitter is the write side used by domain services.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error
}

type Service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg}
}

// Emit stores event in the caller's transaction so it commits or rolls back
// together with the state change it describes. The row id and the envelope
// event id are the same value.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	row, err := event.Row()
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("insert outbox row: %w", err)
	}
	if s.logg != nil {
		s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
			"event_id":     row.ID.String(),
			"event_type":   row.EventType,
			"aggregate_id": row.AggregateID,
		}), "outbox.queued")
	}
	return nil
}
