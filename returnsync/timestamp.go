package returnsync

import (
	"strings"
	"time"

	"github.com/Uptime-ops/uptime-returns-sub000/config"
)

// Layouts the Warehance API has been observed to emit, tried in order.
// Offset-less values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// NormalizeTimestamp parses an upstream date string into a UTC instant.
// A nil result means the timestamp is unknown, not an error; callers
// compare nil against nil as "unchanged".
func NormalizeTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	config.GetLogger().WithField("value", raw).Debug("unparseable timestamp from api")
	return nil
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
