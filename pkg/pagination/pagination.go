// Package pagination implements keyset cursors for admin listings.
package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100

	cursorVersion = "v1"
	separator     = "~"
)

var ErrMalformedCursor = errors.New("malformed cursor")

// Key is the (timestamp, id) position of the last row a page returned.
// Listings sort by At descending and break ties on ID descending.
type Key struct {
	At time.Time
	ID uuid.UUID
}

// Window is a normalized page request.
type Window struct {
	Limit int
	After *Key
}

// Fetch is the number of rows to load so a following page can be detected.
func (w Window) Fetch() int {
	return w.Limit + 1
}

// Clamp applies DefaultLimit to non-positive values and caps at MaxLimit.
func Clamp(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// NewWindow clamps limit and decodes the opaque cursor token, if any.
func NewWindow(limit int, token string) (Window, error) {
	w := Window{Limit: Clamp(limit)}
	after, err := Decode(token)
	if err != nil {
		return Window{}, err
	}
	w.After = after
	return w, nil
}

// Cut trims rows fetched with w.Fetch() down to one page and returns the
// token for the next page, or "" when rows was the last page.
func Cut[T any](w Window, rows []T, key func(T) Key) ([]T, string) {
	if len(rows) <= w.Limit {
		return rows, ""
	}
	page := rows[:w.Limit]
	return page, Encode(key(page[len(page)-1]))
}

// Encode renders k as an opaque URL-safe token.
func Encode(k Key) string {
	raw := strings.Join([]string{
		cursorVersion,
		k.At.UTC().Format(time.RFC3339Nano),
		k.ID.String(),
	}, separator)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses a token produced by Encode. An empty token yields nil.
func Decode(token string) (*Key, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCursor, err)
	}
	parts := strings.Split(string(raw), separator)
	if len(parts) != 3 || parts[0] != cursorVersion {
		return nil, ErrMalformedCursor
	}

	at, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", ErrMalformedCursor, err)
	}
	id, err := uuid.Parse(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: id: %v", ErrMalformedCursor, err)
	}
	return &Key{At: at, ID: id}, nil
}
