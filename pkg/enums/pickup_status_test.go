package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePickupStatus(t *testing.T) {
	status, err := ParsePickupStatus(" en_route ")
	require.NoError(t, err)
	assert.Equal(t, PickupStatusEnRoute, status)

	_, err = ParsePickupStatus("RUT")
	require.Error(t, err)
}

func TestPickupStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PickupStatus
		allowed  bool
	}{
		{PickupStatusPending, PickupStatusEnRoute, true},
		{PickupStatusPending, PickupStatusCompleted, false},
		{PickupStatusPending, PickupStatusCancelled, false},
		{PickupStatusEnRoute, PickupStatusCompleted, true},
		{PickupStatusEnRoute, PickupStatusCancelled, true},
		{PickupStatusEnRoute, PickupStatusPending, false},
		{PickupStatusCompleted, PickupStatusEnRoute, false},
		{PickupStatusCancelled, PickupStatusCompleted, false},
		{PickupStatusCancelled, PickupStatusCancelled, true},
		{PickupStatusEnRoute, PickupStatus("LOST"), false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestPickupStatusPresentation(t *testing.T) {
	assert.True(t, PickupStatusCompleted.IsTerminal())
	assert.True(t, PickupStatusCancelled.IsTerminal())
	assert.False(t, PickupStatusEnRoute.IsTerminal())

	assert.Equal(t, "orange", PickupStatusPending.Badge())
	assert.Equal(t, "blue", PickupStatusEnRoute.Badge())
	assert.Equal(t, "green", PickupStatusCompleted.Badge())
	assert.Equal(t, "red", PickupStatusCancelled.Badge())
	assert.Len(t, PickupStatuses(), 4)
}

func TestOutboxEnums(t *testing.T) {
	assert.True(t, EventPickupRequestAssigned.IsValid())
	_, err := ParseOutboxAggregateType("vendor_order")
	require.Error(t, err)
	agg, err := ParseOutboxAggregateType("pickup_request")
	require.NoError(t, err)
	assert.Equal(t, AggregatePickupRequest, agg)
}
