package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/internal/testdb"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
)

func TestDomainEventRow(t *testing.T) {
	actor := &ActorRef{UserID: uuid.New(), Kind: "staff"}
	at := time.Date(2026, 10, 15, 9, 30, 0, 0, time.FixedZone("CLT", -3*3600))

	row, err := DomainEvent{
		EventType:     enums.EventPickupRequestAssigned,
		AggregateType: enums.AggregatePickupRequest,
		AggregateID:   "42",
		Actor:         actor,
		Data:          map[string]any{"operator_id": 7},
		OccurredAt:    at,
	}.Row()
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, row.ID)
	assert.Equal(t, "42", row.AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.Equal(t, envelopeVersion, env.Version)
	assert.Equal(t, row.ID.String(), env.EventID)
	assert.Equal(t, "pickup_request_assigned", env.Type)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.True(t, env.OccurredAt.Equal(at))
	assert.Equal(t, actor.UserID, env.Actor.UserID)
	assert.JSONEq(t, `{"operator_id":7}`, string(env.Data))
}

func TestDomainEventRowRejectsIncompleteEvents(t *testing.T) {
	_, err := DomainEvent{}.Row()
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown event type")
	assert.ErrorContains(t, err, "unknown aggregate type")
	assert.ErrorContains(t, err, "aggregate id required")

	_, err = DomainEvent{
		EventType:     enums.EventMaterialCreated,
		AggregateType: enums.AggregateMaterial,
		AggregateID:   "PET",
		Data:          func() {},
	}.Row()
	assert.ErrorContains(t, err, "encode material_created data")
}

func TestEmitStoresRowInTransaction(t *testing.T) {
	conn, client := testdb.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventMaterialCreated,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   "PET",
			Data:          map[string]string{"code": "PET"},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventMaterialCreated, rows[0].EventType)
	assert.Nil(t, rows[0].PublishedAt)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn, client := testdb.Open(t)
	svc := NewService(NewRepository(conn), nil)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventMaterialDeleted,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   "VID",
		}); err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRequiresTransaction(t *testing.T) {
	conn, _ := testdb.Open(t)
	svc := NewService(NewRepository(conn), nil)
	assert.Error(t, svc.Emit(context.Background(), nil, DomainEvent{
		EventType:     enums.EventOperatorCreated,
		AggregateType: enums.AggregateOperator,
		AggregateID:   "1",
	}))
}
