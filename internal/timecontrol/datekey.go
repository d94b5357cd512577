package timecontrol

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar day.
const DateLayout = "2006-01-02"

// DateKey is a local calendar day in YYYY-MM-DD form. It carries no time and no zone.
type DateKey string

// accepted timestamp layouts for NormalizeDateString, tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// NormalizeDate returns the calendar day t falls on in loc.
// A nil loc means t's own location.
func NormalizeDate(t time.Time, loc *time.Location) DateKey {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return DateKey(t.Format(DateLayout))
}

// NormalizeDateString converts a date or timestamp string to its local calendar day.
// Strings already shaped like YYYY-MM-DD are returned unchanged. Anything that
// cannot be parsed yields the zero key.
func NormalizeDateString(s string, loc *time.Location) DateKey {
	s = strings.TrimSpace(s)
	if looksLikeDateKey(s) {
		return DateKey(s)
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timestampLayouts {
		// zone-less layouts are read as local wall time
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return NormalizeDate(t, loc)
		}
	}
	return ""
}

// ParseDateKey validates s as a real calendar day.
func ParseDateKey(s string) (DateKey, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	return DateKey(t.Format(DateLayout)), nil
}

func looksLikeDateKey(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch i {
		case 4, 7:
			if c != '-' {
				return false
			}
		default:
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// String implements fmt.Stringer.
func (d DateKey) String() string { return string(d) }

// IsZero reports whether d is the zero key.
func (d DateKey) IsZero() bool { return d == "" }

// Time returns local midnight of d in loc.
func (d DateKey) Time(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, string(d), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Weekday returns the day of week of d. Invalid keys report Sunday and false.
func (d DateKey) Weekday() (time.Weekday, bool) {
	t, ok := d.Time(time.UTC)
	if !ok {
		return time.Sunday, false
	}
	return t.Weekday(), true
}

// AddDays shifts d by n calendar days.
func (d DateKey) AddDays(n int) DateKey {
	t, ok := d.Time(time.UTC)
	if !ok {
		return ""
	}
	return DateKey(t.AddDate(0, 0, n).Format(DateLayout))
}

// Before reports whether d is earlier than other. Canonical keys order lexically.
func (d DateKey) Before(other DateKey) bool { return d < other }

// After reports whether d is later than other.
func (d DateKey) After(other DateKey) bool { return d > other }

// Within reports whether from <= d <= to.
func (d DateKey) Within(from, to DateKey) bool {
	return !d.IsZero() && !d.Before(from) && !d.After(to)
}
