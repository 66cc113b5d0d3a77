package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
	pkgredis "github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayHeader      = "Idempotent-Replay"

	writeReplayTTL  = 24 * time.Hour
	assignReplayTTL = 7 * 24 * time.Hour
	inFlightTTL     = 2 * time.Minute
)

// replayRoute is a POST path template; "*" matches one path segment.
type replayRoute struct {
	template []string
	ttl      time.Duration
}

func route(path string, ttl time.Duration) replayRoute {
	return replayRoute{template: strings.Split(strings.Trim(path, "/"), "/"), ttl: ttl}
}

func (rr replayRoute) matches(segments []string) bool {
	if len(segments) != len(rr.template) {
		return false
	}
	for i, want := range rr.template {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

// Matched on the URL path so the table holds wherever the middleware is
// mounted in the router.
var replayRoutes = []replayRoute{
	route("/api/v1/auth/register", writeReplayTTL),
	route("/api/v1/requests", writeReplayTTL),
	route("/api/v1/requests/*/edit", writeReplayTTL),
	route("/api/admin/operators", writeReplayTTL),
	route("/api/admin/materials", writeReplayTTL),
	route("/api/admin/requests/assign", assignReplayTTL),
}

func replayTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost {
		return 0, false
	}
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for _, rr := range replayRoutes {
		if rr.matches(segments) {
			return rr.ttl, true
		}
	}
	return 0, false
}

// replayHeaders are the response headers worth restoring on a replay.
var replayHeaders = []string{"Content-Type", "Location"}

type storedResponse struct {
	Pending  bool              `json:"pending,omitempty"`
	BodyHash string            `json:"body_hash"`
	Status   int               `json:"status,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Body     []byte            `json:"body,omitempty"`
}

// Idempotency replays the first response stored for an Idempotency-Key on
// the write routes above. The key is claimed before the handler runs, so a
// concurrent duplicate is refused instead of executed twice. Server errors
// are not stored and the key is released for another attempt. A nil store
// disables the middleware.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ttl, ok := replayTTL(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if clientKey == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			sum := sha256.Sum256(body)
			bodyHash := hex.EncodeToString(sum[:])

			key := store.IdempotencyKey(replayScope(r), clientKey)
			claim, _ := json.Marshal(storedResponse{Pending: true, BodyHash: bodyHash})
			claimed, err := store.SetNX(ctx, key, string(claim), inFlightTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key"))
				return
			}
			if !claimed {
				replayStored(w, r, store, logg, key, bodyHash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			record := storedResponse{
				BodyHash: bodyHash,
				Status:   status,
				Headers:  map[string]string{},
				Body:     capture.body.Bytes(),
			}
			for _, h := range replayHeaders {
				if v := capture.Header().Get(h); v != "" {
					record.Headers[h] = v
				}
			}
			payload, err := json.Marshal(record)
			if err == nil {
				err = store.Set(ctx, key, string(payload), ttl)
			}
			if err != nil {
				logg.Error(ctx, "idempotency.store_failed", err)
			}
		})
	}
}

func replayStored(w http.ResponseWriter, r *http.Request, store pkgredis.IdempotencyStore, logg *logger.Logger, key, bodyHash string) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if pkgredis.IsNil(err) {
		// expired between the claim attempt and now
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	if stored.BodyHash != bodyHash {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
		return
	}
	if stored.Pending {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}

	for h, v := range stored.Headers {
		w.Header().Set(h, v)
	}
	w.Header().Set(ReplayHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// replayScope keeps keys private to the caller and the target resource.
func replayScope(r *http.Request) string {
	return strings.Join([]string{UserIDFromContext(r.Context()), r.Method, strings.TrimRight(r.URL.Path, "/")}, "|")
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
