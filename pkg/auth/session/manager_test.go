package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	redisclient "github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return val, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; !ok || v != expected {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string {
	return "sess:" + accessID
}

func newTestManager() (*Manager, *memoryStore) {
	store := newMemoryStore()
	return &Manager{store: store, ttl: time.Hour}, store
}

func TestManagerGenerateAndRotate(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	userID := uuid.New()

	token, err := manager.Generate(ctx, userID, "access-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.NotContains(t, store.data["sess:access-1"], token, "only the digest is stored")

	_, _, err = manager.Rotate(ctx, userID, "access-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, userID, "access-1", token)
	require.NoError(t, err)
	assert.NotEqual(t, token, newToken)
	assert.NotContains(t, store.data, "sess:access-1")

	ok, err := manager.HasSession(ctx, newAccessID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = manager.Rotate(ctx, userID, "access-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "a refresh token rotates once")
}

func TestRotateConcurrentRefreshHasOneWinner(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	userID := uuid.New()
	token, err := manager.Generate(ctx, userID, "access-1")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := manager.Rotate(ctx, userID, "access-1", token); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRotateRejectsOtherUserAndCorruptRecords(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	token, err := manager.Generate(ctx, uuid.New(), "access-1")
	require.NoError(t, err)

	_, _, err = manager.Rotate(ctx, uuid.New(), "access-1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	store.data["sess:access-2"] = "{not json"
	_, _, err = manager.Rotate(ctx, uuid.New(), "access-2", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, _, err = manager.Rotate(ctx, uuid.New(), " ", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()
	_, err := manager.Generate(ctx, uuid.New(), "access-1")
	require.NoError(t, err)

	require.NoError(t, manager.Revoke(ctx, "access-1"))
	ok, err := manager.HasSession(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, manager.Revoke(ctx, ""))
}

func TestGenerateValidation(t *testing.T) {
	manager, _ := newTestManager()
	_, err := manager.Generate(context.Background(), uuid.New(), " ")
	assert.Error(t, err)
	_, err = manager.Generate(context.Background(), uuid.Nil, "access-1")
	assert.Error(t, err)
}

func TestNewManagerChecksTTLs(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{ExpirationMinutes: 30, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err)

	_, err = NewManager(&redisclient.Client{}, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 60})
	assert.Error(t, err, "refresh must outlive access")

	manager, err := NewManager(&redisclient.Client{}, config.JWTConfig{ExpirationMinutes: 30, RefreshTokenTTLMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, manager.ttl)
}

func TestDigestIsHex(t *testing.T) {
	a, b := digest("a"), digest("b")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.False(t, strings.ContainsAny(a, "+/="))
}
