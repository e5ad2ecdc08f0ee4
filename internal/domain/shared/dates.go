package shared

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// NormalizeDate truncates t to midnight UTC of its calendar day in t's own location.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, NewDomainError(CodeInvalidInput, "invalid date, expected YYYY-MM-DD: "+s)
	}
	return t, nil
}

// CountDays returns the number of calendar days in [start, end] inclusive
// without enumerating them. Returns ErrInvalidDateRange when end precedes start.
func CountDays(start, end time.Time) (int64, error) {
	start, end = NormalizeDate(start), NormalizeDate(end)
	if end.Before(start) {
		return 0, ErrInvalidDateRange
	}
	// Unix seconds, not end.Sub(start): a Duration saturates after ~292 years
	return (end.Unix()-start.Unix())/secondsPerDay + 1, nil
}

// DaysInRange returns every date in [start, end] inclusive, normalized.
// Returns ErrInvalidDateRange when end precedes start or when the range
// holds more than maxDays dates; maxDays <= 0 means no limit.
func DaysInRange(start, end time.Time, maxDays int) ([]time.Time, error) {
	n, err := CountDays(start, end)
	if err != nil {
		return nil, err
	}
	if maxDays > 0 && n > int64(maxDays) {
		return nil, NewDomainError(CodeInvalidDateRange,
			fmt.Sprintf("range spans %d days, at most %d allowed", n, maxDays))
	}
	start = NormalizeDate(start)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days, nil
}
