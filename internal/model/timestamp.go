package model

import (
	"strings"
	"time"
)

// DateFormat is the key format of daily bars and aggregate rows.
const DateFormat = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999", // naive ISO, upstream stamps UTC without offset
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	DateFormat,
}

// ParseTimestamp parses the ISO-8601 variants the upstream and the store
// produce. Values without an offset are taken as UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate normalizes a date or timestamp string to YYYY-MM-DD.
func ParseDate(s string) (string, bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return "", false
	}
	return t.Format(DateFormat), true
}

// MinuteKey normalizes a timestamp to UTC truncated to the minute, so that
// lexical order of keys equals time order.
func MinuteKey(s string) (string, bool) {
	t, ok := ParseTimestamp(s)
	if !ok {
		return "", false
	}
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339), true
}

// UTCDate returns the UTC calendar date of t.
func UTCDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}
