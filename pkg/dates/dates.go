// Package dates parses the calendar dates and instants accepted in query
// strings and request bodies.
package dates

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// Parse accepts "2006-01-02" or RFC 3339. Dates become midnight UTC.
func Parse(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), nil
}

// ParseUpper is Parse for an inclusive upper bound: a bare date covers the
// whole day.
func ParseUpper(s string) (time.Time, error) {
	t, err := Parse(s)
	if err != nil {
		return t, err
	}
	if len(s) == len(DateLayout) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
