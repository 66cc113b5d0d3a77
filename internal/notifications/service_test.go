package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/internal/testdb"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/enums"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/payloads"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/types"
)

type recordingPusher struct {
	sent map[uuid.UUID][]types.Message
	err  error
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{sent: map[uuid.UUID][]types.Message{}}
}

func (p *recordingPusher) Push(ctx context.Context, userID uuid.UUID, msgs ...types.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent[userID] = append(p.sent[userID], msgs...)
	return nil
}

func TestNotifierAssignedReachesCitizensAndOperator(t *testing.T) {
	conn, _ := testdb.Open(t)
	ana := testdb.SeedCitizen(t, conn, "ana")
	beto := testdb.SeedCitizen(t, conn, "beto")
	op := testdb.SeedOperator(t, conn, "op1", 0)

	pusher := newRecordingPusher()
	notifier, err := NewNotifier(NewRepository(conn), pusher)
	require.NoError(t, err)

	err = notifier.Assigned(context.Background(), payloads.PickupRequestAssignedEvent{
		OperatorID: op.ID,
		Requests: []payloads.AssignedRequest{
			{RequestID: 1, Code: "SR-0001", CitizenID: ana.ID},
			{RequestID: 2, Code: "SR-0002", CitizenID: beto.ID},
			{RequestID: 3, Code: "SR-0003", CitizenID: ana.ID},
		},
	})
	require.NoError(t, err)

	require.Len(t, pusher.sent[ana.UserID], 2)
	assert.Equal(t, "your request SR-0001 has been assigned and is on its way", pusher.sent[ana.UserID][0].Text)
	require.Len(t, pusher.sent[beto.UserID], 1)
	require.Len(t, pusher.sent[op.UserID], 1)
	assert.Equal(t, "3 new requests assigned to you", pusher.sent[op.UserID][0].Text)
	assert.Equal(t, "info", pusher.sent[op.UserID][0].Level)
}

func TestNotifierAssignedSkipsVanishedProfiles(t *testing.T) {
	conn, _ := testdb.Open(t)
	pusher := newRecordingPusher()
	notifier, err := NewNotifier(NewRepository(conn), pusher)
	require.NoError(t, err)

	err = notifier.Assigned(context.Background(), payloads.PickupRequestAssignedEvent{
		OperatorID: uuid.New(),
		Requests:   []payloads.AssignedRequest{{RequestID: 1, Code: "SR-0001", CitizenID: uuid.New()}},
	})
	require.NoError(t, err)
	assert.Empty(t, pusher.sent)
}

func TestNotifierStatusChanged(t *testing.T) {
	conn, _ := testdb.Open(t)
	ana := testdb.SeedCitizen(t, conn, "ana")
	pusher := newRecordingPusher()
	notifier, err := NewNotifier(NewRepository(conn), pusher)
	require.NoError(t, err)

	err = notifier.StatusChanged(context.Background(), payloads.PickupRequestStatusChangedEvent{
		Code:      "SR-0007",
		CitizenID: ana.ID,
		From:      enums.PickupStatusEnRoute,
		To:        enums.PickupStatusCompleted,
	})
	require.NoError(t, err)
	require.Len(t, pusher.sent[ana.UserID], 1)
	assert.Equal(t, "success", pusher.sent[ana.UserID][0].Level)
	assert.Equal(t, "your request SR-0007 is now completed", pusher.sent[ana.UserID][0].Text)

	pusher.err = errors.New("redis down")
	err = notifier.StatusChanged(context.Background(), payloads.PickupRequestStatusChangedEvent{
		Code: "SR-0007", CitizenID: ana.ID, To: enums.PickupStatusCancelled,
	})
	assert.Error(t, err)
}
