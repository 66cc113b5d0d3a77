package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeWindowLimiter struct {
	counts map[string]int64
	err    error
}

func (f *fakeWindowLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitBlocksPerUser(t *testing.T) {
	limiter := &fakeWindowLimiter{counts: map[string]int64{}}
	handler := RateLimit(limiter, 2, time.Minute, nil)(okHandler())

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	other := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	other = other.WithContext(WithUserID(other.Context(), "user-2"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, other)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected other user to pass, got %d", resp.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeWindowLimiter{err: errors.New("redis down")}
	handler := RateLimit(limiter, 1, time.Minute, nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
