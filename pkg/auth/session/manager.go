// Package session keeps one refresh session per access token id in redis.
// Only a sha256 digest of the refresh token is stored.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	redisclient "github.com/marquezdaniela/reciclaje-municipal/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	AccessSessionKey(accessID string) string
}

// record binds the refresh digest to its user, so a token presented with
// another user's access token is refused.
type record struct {
	UserID string `json:"uid"`
	Digest string `json:"rt_sha256"`
}

type Manager struct {
	store store
	ttl   time.Duration
}

// AccessSessionChecker is what the auth middleware needs.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager sizes sessions by the refresh ttl, which has to outlive the
// access token it backs.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	if ttl <= access {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, access)
	}
	return &Manager{store: client, ttl: ttl}, nil
}

// NewAccessID is the JWT jti and the session key.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate opens a session for accessID and returns its refresh token.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	switch {
	case strings.TrimSpace(accessID) == "":
		return "", errors.New("access id is required")
	case userID == uuid.Nil:
		return "", errors.New("user id is required")
	}
	token, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.save(ctx, accessID, record{UserID: userID.String(), Digest: digest(token)}); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate trades a valid refresh token for a new access id and token. The
// old session is consumed atomically: of two concurrent rotations with the
// same token only one wins.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	key := m.store.AccessSessionKey(oldAccessID)
	raw, rec, err := m.load(ctx, key)
	if err != nil {
		return "", "", err
	}
	if rec.UserID != userID.String() || subtle.ConstantTimeCompare([]byte(rec.Digest), []byte(digest(provided))) != 1 {
		return "", "", ErrInvalidRefreshToken
	}
	consumed, err := m.store.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return "", "", fmt.Errorf("consume session: %w", err)
	}
	if !consumed {
		return "", "", ErrInvalidRefreshToken
	}

	accessID := NewAccessID()
	token, err := newRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := m.save(ctx, accessID, record{UserID: rec.UserID, Digest: digest(token)}); err != nil {
		return "", "", err
	}
	return accessID, token, nil
}

func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errors.New("access id is required")
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

// HasSession reports whether accessID was neither revoked nor rotated away.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errors.New("access id is required")
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case redisclient.IsNil(err):
		return false, nil
	}
	return false, err
}

func (m *Manager) save(ctx context.Context, accessID string, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(raw), m.ttl)
}

// load returns the stored value verbatim alongside its decoded form; the
// raw value is what CompareAndDelete matches on.
func (m *Manager) load(ctx context.Context, key string) (string, record, error) {
	raw, err := m.store.Get(ctx, key)
	if redisclient.IsNil(err) {
		return "", record{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return "", record{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.Digest == "" {
		return "", record{}, ErrInvalidRefreshToken
	}
	return raw, rec, nil
}

func newRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
