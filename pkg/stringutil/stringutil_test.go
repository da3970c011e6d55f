package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEllipsis(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{"fits", "hello world", 20, "hello world"},
		{"exact length", "12345", 5, "12345"},
		{"truncated", "The quick brown fox jumps over the lazy dog", 16, "The quick bro..."},
		{"no room for ellipsis", "abcdefg", 3, "abc"},
		{"padded input", "   padded string   ", 10, "padded ..."},
		{"multiline flattened", "foo\nbar\r\nbaz", 10, "foo bar..."},
		{"empty", "", 5, ""},
		{"zero length", "something", 0, ""},
		{"negative length", "something", -1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Ellipsis(tt.input, tt.maxLength))
		})
	}
}
