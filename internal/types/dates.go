package types

import (
	"strings"
	"time"
)

// dateLayouts are the accepted input formats, tried in order. The
// PocketBase-style layout with a space separator is kept for records
// imported from the previous portal.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000Z",
	"2006-01-02 15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a date or timestamp string. Date-only values are
// interpreted as midnight UTC. The boolean is false for empty or
// unparseable input.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDatePtr is ParseDate returning nil when the input is absent or invalid.
func ParseDatePtr(s string) *time.Time {
	t, ok := ParseDate(s)
	if !ok {
		return nil
	}
	return &t
}

// storageLayout keeps a fixed-width fraction so stored timestamps sort
// lexically in time order.
const storageLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTimestamp renders an instant for storage.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(storageLayout)
}
