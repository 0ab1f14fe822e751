package events

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"short body unchanged", "hello", "hello"},
		{"exactly at limit", strings.Repeat("a", 140), strings.Repeat("a", 140)},
		{"over limit truncated", strings.Repeat("a", 200), strings.Repeat("a", 140)},
		{
			// é is two bytes; byte 140 falls inside the rune straddling
			// the boundary and the whole rune must be dropped.
			"multibyte rune at boundary",
			strings.Repeat("a", 139) + "ééé",
			strings.Repeat("a", 139),
		},
		{
			"multibyte body truncated",
			strings.Repeat("日", 60),
			strings.Repeat("日", 46),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.body)
			if got != tt.want {
				t.Errorf("Preview() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Preview() produced invalid UTF-8: %q", got)
			}
		})
	}
}
