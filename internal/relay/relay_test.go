package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/db/models"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/metrics"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/registry"
)

const testTopic = "rm-pickup-request-events"

func TestOptionsFromAppliesDefaults(t *testing.T) {
	opts := OptionsFrom(config.OutboxConfig{})
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 500*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 10, opts.MaxAttempts)

	opts = OptionsFrom(config.OutboxConfig{BatchSize: 5, PollIntervalMS: 100, MaxAttempts: 3})
	assert.Equal(t, 5, opts.BatchSize)
	assert.Equal(t, 100*time.Millisecond, opts.PollInterval)
	assert.Equal(t, 3, opts.MaxAttempts)
}

func TestDrainKeepsGoingAfterTransientFailure(t *testing.T) {
	rows := &fakeRows{events: []models.OutboxEvent{
		pickupRow(t, enums.EventPickupRequestCreated, 0),
		pickupRow(t, enums.EventPickupRequestCreated, 0),
	}}
	sender := &fakeSender{errs: []error{errors.New("unavailable"), nil}}
	r := newTestRelay(t, rows, sender, &fakeDead{}, Options{})

	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []uuid.UUID{rows.events[0].ID}, rows.failed)
	assert.Equal(t, []uuid.UUID{rows.events[1].ID}, rows.published)
	assert.Empty(t, rows.terminal)
}

func TestDrainPublishesEnvelopeWithRoutingAttributes(t *testing.T) {
	row := pickupRow(t, enums.EventPickupRequestStatusChanged, 0)
	rows := &fakeRows{events: []models.OutboxEvent{row}}
	sender := &fakeSender{}
	r := newTestRelay(t, rows, sender, &fakeDead{}, Options{})

	_, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, testTopic, sender.topics[0])
	assert.Equal(t, []byte(row.Payload), msg.Data)
	assert.Equal(t, string(enums.EventPickupRequestStatusChanged), msg.Attributes["event_type"])
	assert.Equal(t, string(enums.AggregatePickupRequest), msg.Attributes["aggregate_type"])
	assert.Equal(t, row.AggregateID, msg.Attributes["aggregate_id"])
	assert.Equal(t, row.ID.String(), msg.Attributes["event_id"])
}

func TestDrainDeadLettersUnknownEvents(t *testing.T) {
	row := pickupRow(t, enums.EventPickupRequestCreated, 0)
	row.EventType = "order_created"
	rows := &fakeRows{events: []models.OutboxEvent{row}}
	dead := &fakeDead{}
	sender := &fakeSender{}
	r := newTestRelay(t, rows, sender, dead, Options{})

	_, err := r.Drain(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sender.sent)
	require.Len(t, dead.entries, 1)
	assert.Equal(t, row.ID, dead.entries[0].EventID)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dead.entries[0].ErrorReason)
	assert.JSONEq(t, string(row.Payload), string(dead.entries[0].Payload))
	assert.Equal(t, []uuid.UUID{row.ID}, rows.terminal)
}

func TestDrainDeadLettersAfterMaxAttempts(t *testing.T) {
	row := pickupRow(t, enums.EventPickupRequestAssigned, 2)
	rows := &fakeRows{events: []models.OutboxEvent{row}}
	dead := &fakeDead{}
	sender := &fakeSender{errs: []error{errors.New("deadline exceeded")}}
	r := newTestRelay(t, rows, sender, dead, Options{BatchSize: 1, PollInterval: time.Millisecond, MaxAttempts: 3})

	_, err := r.Drain(context.Background())
	require.NoError(t, err)

	require.Len(t, dead.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dead.entries[0].ErrorReason)
	require.NotNil(t, dead.entries[0].ErrorMessage)
	assert.Contains(t, *dead.entries[0].ErrorMessage, "gave up after 3 attempts")
	assert.Empty(t, rows.failed)
}

func TestDrainDeadLettersPermanentSendErrors(t *testing.T) {
	rows := &fakeRows{events: []models.OutboxEvent{pickupRow(t, enums.EventPickupRequestCreated, 0)}}
	dead := &fakeDead{}
	sender := &fakeSender{errs: []error{registry.NewNonRetryableError(errors.New("topic missing"))}}
	r := newTestRelay(t, rows, sender, dead, Options{})

	_, err := r.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, dead.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dead.entries[0].ErrorReason)
}

func TestDrainFailsWhenSettlingFails(t *testing.T) {
	rows := &fakeRows{
		events:     []models.OutboxEvent{pickupRow(t, enums.EventPickupRequestCreated, 0)},
		publishErr: errors.New("connection reset"),
	}
	r := newTestRelay(t, rows, &fakeSender{}, &fakeDead{}, Options{})

	_, err := r.Drain(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "published")
}

func TestRunStopsOnCancel(t *testing.T) {
	r := newTestRelay(t, &fakeRows{}, &fakeSender{}, &fakeDead{}, Options{BatchSize: 1, PollInterval: 5 * time.Millisecond, MaxAttempts: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacerDoublesUpToMax(t *testing.T) {
	p := newPacer(100*time.Millisecond, 300*time.Millisecond)
	p.failed()
	assert.Equal(t, 200*time.Millisecond, p.cur)
	p.failed()
	assert.Equal(t, 300*time.Millisecond, p.cur)
	d := p.reset()
	assert.Equal(t, 100*time.Millisecond, p.cur)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 100*time.Millisecond+jitterWindow)
}

func newTestRelay(t *testing.T, rows *fakeRows, sender *fakeSender, dead *fakeDead, opts Options) *Relay {
	t.Helper()
	events, err := registry.NewEventRegistry(config.PubSubConfig{RequestsTopic: testTopic})
	require.NoError(t, err)
	r, err := New(Params{
		Options:     opts,
		Logger:      logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}),
		Tx:          fakeTx{},
		Rows:        rows,
		DeadLetters: dead,
		Events:      events,
		Sender:      sender,
		Metrics:     metrics.NewOutboxMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return r
}

func pickupRow(t *testing.T, eventType enums.OutboxEventType, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	var (
		data      any
		aggregate = enums.AggregatePickupRequest
	)
	switch eventType {
	case enums.EventPickupRequestAssigned:
		aggregate = enums.AggregateOperator
		data = payloads.PickupRequestAssignedEvent{OperatorID: uuid.New()}
	case enums.EventPickupRequestStatusChanged:
		data = payloads.PickupRequestStatusChangedEvent{RequestID: 9, Code: "SR-0009", From: enums.PickupStatusEnRoute, To: enums.PickupStatusCompleted}
	default:
		data = payloads.PickupRequestCreatedEvent{RequestID: 9, Code: "SR-0009"}
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: id.String(), OccurredAt: time.Now(), Data: raw})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   "SR-0009",
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

type fakeTx struct{}

func (fakeTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakeRows struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRows) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRows) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRows) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRows) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDead struct {
	entries []models.OutboxDLQ
}

func (f *fakeDead) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeSender struct {
	errs   []error
	sent   []*gcppubsub.Message
	topics []string
}

func (f *fakeSender) Send(_ context.Context, topic string, msg *gcppubsub.Message) error {
	f.sent = append(f.sent, msg)
	f.topics = append(f.topics, topic)
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}
