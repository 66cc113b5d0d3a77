package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	value string
	ttl   time.Duration
}

type fakeStore struct {
	entries map[string]entry
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]entry{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.entries[key]; ok {
		return false, nil
	}
	f.entries[key] = entry{value: value.(string), ttl: ttl}
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.entries[key] = entry{value: value.(string), ttl: ttl}
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.entries, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "rm:idempotency:" + scope + ":" + id
}

func TestClaimCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()
	key := "rm:idempotency:evt:pickup-notifications:" + eventID.String()

	claimed, err := manager.Claim(ctx, "pickup-notifications", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, entry{value: markerClaimed, ttl: defaultClaimTTL}, store.entries[key])

	claimed, err = manager.Claim(ctx, "pickup-notifications", eventID)
	require.NoError(t, err)
	assert.False(t, claimed, "in-flight claims block other workers")

	require.NoError(t, manager.Complete(ctx, "pickup-notifications", eventID))
	assert.Equal(t, entry{value: markerDone, ttl: 24 * time.Hour}, store.entries[key])

	claimed, err = manager.Claim(ctx, "pickup-notifications", eventID)
	require.NoError(t, err)
	assert.False(t, claimed)

	claimed, err = manager.Claim(ctx, "audit", eventID)
	require.NoError(t, err)
	assert.True(t, claimed, "consumers dedupe independently")
}

func TestReleaseAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)
	eventID := uuid.New()

	claimed, err := manager.Claim(ctx, "c", eventID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, manager.Release(ctx, "c", eventID))

	claimed, err = manager.Claim(ctx, "c", eventID)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestClaimLeaseNeverOutlivesDoneTTL(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, manager.claimTTL)

	manager, err = NewManager(newFakeStore(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultClaimTTL, manager.claimTTL)
}

func TestClaimValidationAndStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.Claim(ctx, "", uuid.New())
	assert.Error(t, err)
	_, err = manager.Claim(ctx, "c", uuid.Nil)
	assert.Error(t, err)
	assert.Error(t, manager.Complete(ctx, "", uuid.New()))

	store.err = errors.New("redis down")
	_, err = manager.Claim(ctx, "c", uuid.New())
	assert.EqualError(t, err, "redis down")
}

func TestNewManagerRejectsBadInput(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second)
	assert.Error(t, err)
}
