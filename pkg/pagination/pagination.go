// Package pagination implements keyset paging over (requested_at DESC,
// id DESC). Cursors are opaque to clients.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is the sort key of the last row a client has seen.
type Cursor struct {
	At time.Time `json:"t"`
	ID int64     `json:"id"`
}

// NormalizeLimit maps non-positive limits to the default and caps the rest.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// LimitWithBuffer is the row count to fetch: one extra tells whether
// another page follows.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

func EncodeCursor(c Cursor) string {
	raw, _ := json.Marshal(Cursor{At: c.At.UTC(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a client cursor. Blank input means the first page
// and yields nil.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if c.ID <= 0 || c.At.IsZero() {
		return nil, errors.New("cursor is incomplete")
	}
	return &c, nil
}

// Trim cuts rows fetched with LimitWithBuffer(size) down to one page and
// returns the cursor of the next page, or "" on the last one.
func Trim[T any](rows []T, size int, key func(T) Cursor) ([]T, string) {
	size = NormalizeLimit(size)
	if len(rows) <= size {
		return rows, ""
	}
	rows = rows[:size]
	return rows, EncodeCursor(key(rows[size-1]))
}
