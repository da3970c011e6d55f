package storage

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks a position in a capture listing for pagination. It carries
// the last normalized URL served so the next page resumes after it.
type Cursor struct {
	LastURL  string `json:"url"`
	LastTime int64  `json:"ts"` // Unix timestamp in nanoseconds
}

// EncodeCursor encodes a cursor to a base64 URL-safe string.
// Returns empty string if cursor is nil or invalid.
func EncodeCursor(c *Cursor) string {
	if c == nil || c.LastURL == "" {
		return ""
	}

	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}

	return base64.URLEncoding.EncodeToString(data)
}

// DecodeCursor decodes a base64-encoded cursor string.
// Returns nil and no error for empty cursor (first page).
// Returns error if cursor is malformed.
func DecodeCursor(encoded string) (*Cursor, error) {
	if encoded == "" {
		return nil, nil // First page
	}

	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor format: %w", err)
	}

	if c.LastURL == "" {
		return nil, fmt.Errorf("invalid cursor: missing URL")
	}

	return &c, nil
}
