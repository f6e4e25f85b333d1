package storage

import "time"

// TimeLayout is fixed width, so UTC timestamps written with it order
// correctly when SQLite compares them as text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a stored timestamp. Any RFC 3339 form is accepted so
// rows written by hand or by older builds still load.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
