// Package pagination implements opaque cursors for newest-first feeds.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrInvalidCursor is returned for a cursor that was not produced by Encode.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

type cursor struct {
	LastID string `json:"last_id"`
}

// Page is one slice of a feed. ContinueCursor is empty when IsDone is true.
type Page[T any] struct {
	Page           []T    `json:"page"`
	ContinueCursor string `json:"continueCursor"`
	IsDone         bool   `json:"isDone"`
}

// Encode returns a cursor that resumes strictly after lastID.
func Encode(lastID string) string {
	raw, _ := json.Marshal(cursor{LastID: lastID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode returns the id a cursor resumes after. The empty cursor decodes to
// the empty id, meaning the newest page.
func Decode(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return "", ErrInvalidCursor
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.LastID == "" {
		return "", ErrInvalidCursor
	}
	return c.LastID, nil
}

// Limit clamps a requested page size into [1, max], falling back to def.
func Limit(requested, def, max int) int {
	if requested <= 0 {
		requested = def
	}
	if max > 0 && requested > max {
		requested = max
	}
	if requested < 1 {
		requested = 1
	}
	return requested
}
