// Package registry maps stored outbox rows to the topic they are published
// on and decodes their typed payload, rejecting rows that can never be
// delivered.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
)

// Route says where an event type goes and how its payload decodes.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a row that passed validation.
type ResolvedEvent struct {
	Descriptor Route
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks failures a redelivery cannot fix; the relay
// dead-letters the row straight away.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

type EventRegistry struct {
	routes map[enums.OutboxEventType]Route
}

// route builds a Route whose payload decodes into a fresh *T.
func route[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) Route {
	return Route{
		EventType:     eventType,
		AggregateType: aggregate,
		decode: func(raw json.RawMessage) (any, error) {
			payload := new(T)
			if err := json.Unmarshal(raw, payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

// NewEventRegistry sends every domain event to the requests topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.RequestsTopic)
	if topic == "" {
		return nil, errors.New("requests topic is required")
	}
	routes := []Route{
		route[payloads.PickupRequestCreatedEvent](enums.EventPickupRequestCreated, enums.AggregatePickupRequest),
		route[payloads.PickupRequestAssignedEvent](enums.EventPickupRequestAssigned, enums.AggregateOperator),
		route[payloads.PickupRequestStatusChangedEvent](enums.EventPickupRequestStatusChanged, enums.AggregatePickupRequest),
		route[payloads.OperatorCreatedEvent](enums.EventOperatorCreated, enums.AggregateOperator),
		route[payloads.MaterialCreatedEvent](enums.EventMaterialCreated, enums.AggregateMaterial),
		route[payloads.MaterialDeletedEvent](enums.EventMaterialDeleted, enums.AggregateMaterial),
	}
	reg := &EventRegistry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, r := range routes {
		r.Topic = topic
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Resolve checks the row against its route and decodes the payload. Every
// error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	rt, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %q", row.EventType)
	case rt.AggregateType != row.AggregateType:
		return nil, permanent("%s belongs to %s aggregates, row says %s", row.EventType, rt.AggregateType, row.AggregateType)
	case strings.TrimSpace(row.AggregateID) == "":
		return nil, permanent("%s row has no aggregate id", row.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, permanent("%s envelope carries no data", row.EventType)
	}
	payload, err := rt.decode(env.Data)
	if err != nil {
		return nil, permanent("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: rt, Envelope: env, Payload: payload}, nil
}
