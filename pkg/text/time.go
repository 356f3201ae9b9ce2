package text

import (
	"strings"
	"time"
)

// layouts seen in Valkyrie metadata, Rails dumps and sqlite snapshots. Layouts
// without a zone are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime reads a timestamp in any of the layouts above
func ParseTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NormalizeTimestamp renders a timestamp as RFC 3339 UTC keeping any
// fractional seconds, or "" when the input is blank or unreadable
func NormalizeTimestamp(raw string) string {
	t, ok := ParseTime(raw)
	if !ok {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
