package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
)

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := newTestRegistry(t)
	citizenID := uuid.New()
	row := models.OutboxEvent{
		EventType:     enums.EventPickupRequestStatusChanged,
		AggregateType: enums.AggregatePickupRequest,
		AggregateID:   "7",
		Payload: envelope(t, payloads.PickupRequestStatusChangedEvent{
			RequestID: 7,
			Code:      "SR-0007",
			CitizenID: citizenID,
			From:      enums.PickupStatusEnRoute,
			To:        enums.PickupStatusCompleted,
		}),
	}

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	assert.Equal(t, "requests-topic", resolved.Descriptor.Topic)
	assert.NotEmpty(t, resolved.Envelope.EventID)

	payload, ok := resolved.Payload.(*payloads.PickupRequestStatusChangedEvent)
	require.True(t, ok, "got %T", resolved.Payload)
	assert.Equal(t, citizenID, payload.CitizenID)
	assert.Equal(t, enums.PickupStatusCompleted, payload.To)
}

func TestEveryEventTypeHasARoute(t *testing.T) {
	reg := newTestRegistry(t)
	for _, eventType := range []enums.OutboxEventType{
		enums.EventPickupRequestCreated,
		enums.EventPickupRequestAssigned,
		enums.EventPickupRequestStatusChanged,
		enums.EventOperatorCreated,
		enums.EventMaterialCreated,
		enums.EventMaterialDeleted,
	} {
		rt, ok := reg.routes[eventType]
		require.True(t, ok, eventType)
		assert.Equal(t, "requests-topic", rt.Topic)
		assert.True(t, rt.AggregateType.IsValid(), eventType)
	}
}

func TestResolveRejectsUndeliverableRows(t *testing.T) {
	reg := newTestRegistry(t)
	good := envelope(t, payloads.MaterialDeletedEvent{Code: "PET"})

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType: "nope", AggregateType: enums.AggregateMaterial, AggregateID: "PET", Payload: good,
		},
		"aggregate mismatch": {
			EventType: enums.EventMaterialDeleted, AggregateType: enums.AggregateOperator, AggregateID: "PET", Payload: good,
		},
		"blank aggregate id": {
			EventType: enums.EventMaterialDeleted, AggregateType: enums.AggregateMaterial, AggregateID: "  ", Payload: good,
		},
		"broken envelope": {
			EventType: enums.EventMaterialDeleted, AggregateType: enums.AggregateMaterial, AggregateID: "PET", Payload: []byte("{"),
		},
		"null data": {
			EventType: enums.EventMaterialDeleted, AggregateType: enums.AggregateMaterial, AggregateID: "PET",
			Payload: []byte(`{"version":1,"eventId":"x","data":null}`),
		},
		"payload of the wrong shape": {
			EventType: enums.EventMaterialDeleted, AggregateType: enums.AggregateMaterial, AggregateID: "PET",
			Payload: envelope(t, []string{"PET"}),
		},
	}
	for name, row := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(row)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry))
		})
	}
}

func TestNonRetryableErrorUnwraps(t *testing.T) {
	cause := errors.New("topic missing")
	err := NewNonRetryableError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "topic missing", err.Error())
	assert.Equal(t, "non-retryable error", NonRetryableError{}.Error())
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{RequestsTopic: "   "})
	assert.Error(t, err)
}

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{RequestsTopic: "requests-topic"})
	require.NoError(t, err)
	return reg
}

func envelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	})
	require.NoError(t, err)
	return out
}
