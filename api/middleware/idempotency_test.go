package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], f.ttls[key] = value.(string), ttl
	return true, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.data[key], f.ttls[key] = value.(string), ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "middleware-test", Output: io.Discard})
}

func keyedPost(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"bulk assign", http.MethodPost, "/api/admin/requests/assign", assignReplayTTL, true},
		{"create request", http.MethodPost, "/api/v1/requests", writeReplayTTL, true},
		{"create request trailing slash", http.MethodPost, "/api/v1/requests/", writeReplayTTL, true},
		{"operator edit", http.MethodPost, "/api/v1/requests/42/edit", writeReplayTTL, true},
		{"edit form", http.MethodGet, "/api/v1/requests/42/edit", 0, false},
		{"nested edit", http.MethodPost, "/api/v1/requests/42/x/edit", 0, false},
		{"create operator", http.MethodPost, "/api/admin/operators", writeReplayTTL, true},
		{"login", http.MethodPost, "/api/v1/auth/login", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ttl, ok := replayTTL(tt.method, tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, ttl)
		})
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedPost("/api/v1/auth/register", "", `{"username":"ana"}`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.False(t, called)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/v1/requests/7")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":7}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedPost("/api/v1/requests", "abc", `{"material":"PET"}`))
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(ReplayHeader))

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, keyedPost("/api/v1/requests", "abc", `{"material":"PET"}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(ReplayHeader))
	assert.Equal(t, "/api/v1/requests/7", replay.Header().Get("Location"))
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":7}}`, replay.Body.String())

	for key, ttl := range store.ttls {
		assert.Equalf(t, writeReplayTTL, ttl, "ttl for %s", key)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	handler := Idempotency(newFakeStore(), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedPost("/api/admin/requests/assign", "xyz", `{"request_ids":[1]}`))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedPost("/api/admin/requests/assign", "xyz", `{"request_ids":[2]}`))

	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp))
}

func TestIdempotencyRefusesDuplicateInFlight(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a retry lands while the first attempt is still running
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, keyedPost("/api/v1/requests", "dup", `{}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedPost("/api/v1/requests", "dup", `{}`))

	assert.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, keyedPost("/api/v1/requests", "retry", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, first.Code)
	assert.Empty(t, store.data)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, keyedPost("/api/v1/requests", "retry", `{}`))
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyScopeIsPerUser(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, user := range []string{"user-a", "user-b"} {
		req := keyedPost("/api/v1/requests", "same", `{"material":"PET"}`)
		req = req.WithContext(WithUserID(req.Context(), user))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, keyedPost("/api/v1/auth/login", "", `{}`))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, store.data)
}
