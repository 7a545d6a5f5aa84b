package util

import "time"

const (
	ISO8601Format = "2006-01-02T15:04:05.000Z07:00"
)

// TimeToISO8601Str renders t in UTC with millisecond precision.
func TimeToISO8601Str(t time.Time) string {
	return t.UTC().Format(ISO8601Format)
}

// ParseISO8601 accepts any RFC 3339 timestamp, with or without fractional seconds.
func ParseISO8601(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
