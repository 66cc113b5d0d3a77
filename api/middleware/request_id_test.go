package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
)

func TestRequestIDAdoptsOrMints(t *testing.T) {
	cases := map[string]bool{
		"req-42.abc:1":          true,
		"":                      false,
		"has space":             false,
		"<script>":              false,
		strings.Repeat("a", 65): false,
		strings.Repeat("b", 64): true,
	}
	for incoming, kept := range cases {
		var fromCtx string
		handler := RequestID(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = RequestIDFromContext(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, incoming)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		echoed := rec.Header().Get(RequestIDHeader)
		assert.Equal(t, echoed, fromCtx)
		if kept {
			assert.Equal(t, incoming, echoed)
			continue
		}
		_, err := uuid.Parse(echoed)
		assert.NoErrorf(t, err, "incoming %q should be replaced", incoming)
	}
}

func TestRecovererWritesInternalEnvelope(t *testing.T) {
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.Panics(t, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
