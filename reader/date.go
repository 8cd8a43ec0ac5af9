package reader

import (
	"fmt"
	"time"
)

const (
	dateLayout    = "2006-01-02"
	secondsPerDay = 24 * 60 * 60
)

// DaysOf converts t to days since 1970-01-01 in UTC, ignoring the time of day.
func DaysOf(t time.Time) int32 {
	secs := t.Unix()
	days := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		days--
	}
	return int32(days)
}

// ParseDate converts a YYYY-MM-DD date to days since 1970-01-01.
func ParseDate(s string) (int32, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse date %q: %w", s, err)
	}
	return DaysOf(t), nil
}

// FormatDate converts days since 1970-01-01 to YYYY-MM-DD.
func FormatDate(days int32) string {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC().Format(dateLayout)
}
