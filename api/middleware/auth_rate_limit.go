package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/marquezdaniela/reciclaje-municipal/api/responses"
	pkgerrors "github.com/marquezdaniela/reciclaje-municipal/pkg/errors"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

// RateLimitStore increments a counter that expires after ttl.
type RateLimitStore interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
}

// maxThrottledBody bounds how much of a login or register body is buffered
// to find the identity field.
const maxThrottledBody = 64 << 10

// AuthRateLimitPolicy throttles one auth surface by client address and by
// the identity named in the body.
type AuthRateLimitPolicy struct {
	surface string
	window  time.Duration
	rules   []throttleRule
}

type throttleRule struct {
	dimension string
	limit     int64
	subject   func(r *http.Request, body []byte) string
}

// NewAuthRateLimitPolicy builds a policy for surface. A non-positive limit
// turns that dimension off.
func NewAuthRateLimitPolicy(surface string, window time.Duration, ipLimit, identityLimit int) AuthRateLimitPolicy {
	p := AuthRateLimitPolicy{surface: strings.ToLower(strings.TrimSpace(surface)), window: window}
	if p.surface == "" {
		p.surface = "auth"
	}
	if ipLimit > 0 {
		p.rules = append(p.rules, throttleRule{
			dimension: "ip",
			limit:     int64(ipLimit),
			subject:   func(r *http.Request, _ []byte) string { return clientIP(r) },
		})
	}
	if identityLimit > 0 {
		p.rules = append(p.rules, throttleRule{
			dimension: "identity",
			limit:     int64(identityLimit),
			subject: func(_ *http.Request, body []byte) string {
				if id := strings.ToLower(strings.TrimSpace(extractIdentity(body))); id != "" {
					return hashValue(id)
				}
				return ""
			},
		})
	}
	return p
}

func (p AuthRateLimitPolicy) active() bool { return p.window > 0 && len(p.rules) > 0 }

func (p AuthRateLimitPolicy) needsBody() bool {
	for _, rule := range p.rules {
		if rule.dimension == "identity" {
			return true
		}
	}
	return false
}

func (p AuthRateLimitPolicy) key(dimension, subject string) string {
	return "rl:" + dimension + ":" + p.surface + ":" + subject
}

// AuthRateLimit applies policy before the login or register handler runs.
// Store failures surface as DEPENDENCY errors rather than letting credential
// guessing through unmetered.
func AuthRateLimit(policy AuthRateLimitPolicy, store RateLimitStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var body []byte
			if policy.needsBody() && r.Body != nil {
				var err error
				body, err = io.ReadAll(io.LimitReader(r.Body, maxThrottledBody))
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			for _, rule := range policy.rules {
				subject := rule.subject(r, body)
				if subject == "" {
					continue
				}
				count, err := store.IncrWithTTL(ctx, policy.key(rule.dimension, subject), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting unavailable"))
					return
				}
				if count > rule.limit {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"surface":   policy.surface,
							"dimension": rule.dimension,
							"subject":   subject,
							"attempts":  count,
							"limit":     rule.limit,
						}), "auth.rate_limit.blocked")
					}
					w.Header().Set("Retry-After", strconv.Itoa(int(policy.window.Seconds())))
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first well-formed X-Forwarded-For hop, then
// X-Real-IP, then the socket peer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

// extractIdentity returns login, username or email, first non-empty wins.
func extractIdentity(payload []byte) string {
	var body struct {
		Login    string `json:"login"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	for _, v := range []string{body.Login, body.Username, body.Email} {
		if v != "" {
			return v
		}
	}
	return ""
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
