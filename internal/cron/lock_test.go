package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaseStore struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func newLeaseStore() *leaseStore {
	return &leaseStore{values: map[string]string{}}
}

func (s *leaseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, held := s.values[key]; held {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *leaseStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.values[key] != expected {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	a, err := NewRedisLock(store, "rm:lock:cron", time.Minute)
	require.NoError(t, err)
	b, err := NewRedisLock(store, "rm:lock:cron", time.Minute)
	require.NoError(t, err)

	won, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	won, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, b.Release(ctx))
	assert.Contains(t, store.values, "rm:lock:cron", "a loser's release keeps the lease")

	require.NoError(t, a.Release(ctx))
	won, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestRedisLockLeavesForeignLease(t *testing.T) {
	ctx := context.Background()
	store := newLeaseStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	won, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, won)

	// lease expired and another replica took it
	store.values["k"] = "other"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "other", store.values["k"])

	require.NoError(t, lock.Release(ctx), "second release is a no-op")
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	store := newLeaseStore()
	store.err = errors.New("connection refused")
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)

	_, err = lock.Acquire(context.Background())
	assert.ErrorIs(t, err, store.err)
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", 0)
	assert.Error(t, err)
	_, err = NewRedisLock(newLeaseStore(), "", 0)
	assert.Error(t, err)

	lock, err := NewRedisLock(newLeaseStore(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)
}
